package searchfilter

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var _dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

type parser struct {
	tokens []token
	pos    int
}

// Parse parses src into an AST. Empty sources are a syntax error.
func Parse(src string) (Node, error) {
	tokens, err := lex(src)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens}
	if p.peek().kind == tokEOF {
		return nil, errorf(0, "empty filter")
	}

	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	if tok := p.peek(); tok.kind != tokEOF {
		return nil, errorf(tok.pos, "unexpected %q", tok.text)
	}

	return node, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) peekAt(offset int) token {
	if p.pos+offset >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}

	return p.tokens[p.pos+offset]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}

	return tok
}

// isKeyword reports whether the current token is the connective kw rather
// than a field that happens to share its name.
func (p *parser) isKeyword(kw string) bool {
	tok := p.peek()
	return tok.kind == tokWord &&
		strings.EqualFold(tok.text, kw) &&
		p.peekAt(1).kind != tokColon
}

func (p *parser) parseOr() (Node, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	terms := []Node{first}
	for p.peek().kind == tokComma || p.isKeyword("or") {
		p.next()

		term, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}

	if len(terms) == 1 {
		return first, nil
	}

	return Or{Terms: terms}, nil
}

func (p *parser) parseAnd() (Node, error) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	terms := []Node{first}
	for {
		if p.isKeyword("and") {
			p.next()
		} else if !p.startsUnary() {
			break
		}

		term, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}

	if len(terms) == 1 {
		return first, nil
	}

	return And{Terms: terms}, nil
}

func (p *parser) startsUnary() bool {
	switch p.peek().kind {
	case tokLParen:
		return true
	case tokWord:
		return !p.isKeyword("or")
	default:
		return false
	}
}

func (p *parser) parseUnary() (Node, error) {
	tok := p.next()

	switch tok.kind {
	case tokLParen:
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, errorf(closing.pos, "expected ')'")
		}
		return node, nil
	case tokWord:
		return p.parseTerm(tok)
	case tokEOF:
		return nil, errorf(tok.pos, "unexpected end of filter")
	default:
		return nil, errorf(tok.pos, "unexpected %q", tok.text)
	}
}

func (p *parser) parseTerm(field token) (Node, error) {
	if colon := p.next(); colon.kind != tokColon {
		return nil, errorf(colon.pos, "expected ':' after field %q", field.text)
	}

	term := Term{Field: field.text, Pos: field.pos}
	if p.peek().kind == tokOp {
		term.Op = p.next().text
	}

	value, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	term.Value = value

	return term, nil
}

func (p *parser) parseValue() (Value, error) {
	tok := p.next()

	switch tok.kind {
	case tokString:
		return Value{Kind: KindString, Text: tok.text}, nil
	case tokWord:
		return literal(tok)
	case tokLBracket:
		return p.parseList(tok)
	case tokEOF:
		return Value{}, errorf(tok.pos, "missing value")
	default:
		return Value{}, errorf(tok.pos, "unexpected %q, expected value", tok.text)
	}
}

func (p *parser) parseList(open token) (Value, error) {
	list := Value{Kind: KindList}

	for {
		item, err := p.parseValue()
		if err != nil {
			return Value{}, err
		}
		if item.Kind == KindList {
			return Value{}, errorf(open.pos, "nested lists are not allowed")
		}
		list.List = append(list.List, item)

		switch sep := p.next(); sep.kind {
		case tokComma:
			continue
		case tokRBracket:
			list.Text = list.String()
			return list, nil
		default:
			return Value{}, errorf(sep.pos, "expected ',' or ']'")
		}
	}
}

func literal(tok token) (Value, error) {
	text := tok.text
	v := Value{Kind: KindWord, Text: text}

	switch strings.ToLower(text) {
	case "true":
		v.Kind, v.Bool = KindBool, true
		return v, nil
	case "false":
		v.Kind = KindBool
		return v, nil
	}

	if _dateRe.MatchString(text) {
		date, err := time.Parse(DateLayout, text)
		if err != nil {
			return Value{}, errorf(tok.pos, "invalid date %q", text)
		}
		v.Kind, v.Date = KindDate, date
		return v, nil
	}

	if looksNumeric(text) {
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			v.Kind, v.Integer, v.Int, v.Number = KindNumber, true, n, float64(n)
			return v, nil
		}
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			v.Kind, v.Number = KindNumber, f
			return v, nil
		}
	}

	return v, nil
}

func looksNumeric(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '-' || s[0] == '+' {
		s = s[1:]
	}

	return s != "" && (s[0] >= '0' && s[0] <= '9' || s[0] == '.')
}
