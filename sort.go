package goresource

import "strings"

// CompileSort reads a comma separated sort string such as "-balance,+name".
// A leading '-' sorts descending, '+' or no prefix ascending. A repeated
// field keeps its last occurrence. Fields missing from allowed are dropped
// silently.
func CompileSort(allowed FieldSet, src string) Orderings {
	ret := Orderings{}

	for _, token := range strings.Split(src, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		direction := DirectionASC
		switch token[0] {
		case '-':
			direction = DirectionDESC
			token = token[1:]
		case '+':
			token = token[1:]
		}

		if _, ok := allowed[token]; !ok {
			continue
		}

		ret = ret.Set(OrderBy{Column: token, Direction: direction})
	}

	return ret
}
