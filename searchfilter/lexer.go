package searchfilter

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokString
	tokOp
	tokColon
	tokComma
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// SyntaxError reports malformed filter source.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("searchfilter: %s at position %d", e.Msg, e.Pos)
}

func errorf(pos int, format string, args ...any) error {
	return &SyntaxError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// Operators ordered so that two-symbol operators match first.
var _operators = []string{">=", "<=", "!=", ">", "<", "=", "%"}

func isWordRune(r rune) bool {
	if unicode.IsSpace(r) {
		return false
	}

	return !strings.ContainsRune(`()[],:"'<>=!%`, r)
}

func lex(src string) ([]token, error) {
	runes := []rune(src)
	tokens := make([]token, 0, len(runes)/2+1)

	for i := 0; i < len(runes); {
		r := runes[i]

		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++
		case r == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++
		case r == '[':
			tokens = append(tokens, token{kind: tokLBracket, text: "[", pos: i})
			i++
		case r == ']':
			tokens = append(tokens, token{kind: tokRBracket, text: "]", pos: i})
			i++
		case r == ',':
			tokens = append(tokens, token{kind: tokComma, text: ",", pos: i})
			i++
		case r == ':':
			tokens = append(tokens, token{kind: tokColon, text: ":", pos: i})
			i++
		case r == '"' || r == '\'':
			text, next, err := lexString(runes, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokString, text: text, pos: i})
			i = next
		case strings.ContainsRune("<>=!%", r):
			op := matchOperator(runes[i:])
			if op == "" {
				return nil, errorf(i, "unexpected symbol %q", r)
			}
			tokens = append(tokens, token{kind: tokOp, text: op, pos: i})
			i += len(op)
		default:
			start := i
			for i < len(runes) && isWordRune(runes[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokWord, text: string(runes[start:i]), pos: start})
		}
	}

	return append(tokens, token{kind: tokEOF, pos: len(runes)}), nil
}

func matchOperator(runes []rune) string {
	for _, op := range _operators {
		if len(runes) >= len(op) && string(runes[:len(op)]) == op {
			return op
		}
	}

	return ""
}

func lexString(runes []rune, start int) (string, int, error) {
	quote := runes[start]
	var sb strings.Builder

	for i := start + 1; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case '\\':
			if i+1 >= len(runes) {
				return "", 0, errorf(i, "unterminated escape")
			}
			i++
			switch runes[i] {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			default:
				sb.WriteRune(runes[i])
			}
		case quote:
			return sb.String(), i + 1, nil
		default:
			sb.WriteRune(r)
		}
	}

	return "", 0, errorf(start, "unterminated string")
}
