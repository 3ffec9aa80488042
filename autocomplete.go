package dbmo

import (
	"fmt"
	"strings"
	"unicode"
)

// CompleteInsert appends the VALUES clause to an INSERT that lists only its columns:
//
//	INSERT INTO t (a, b)  ->  INSERT INTO t (a, b) VALUES(@a, @b)
func CompleteInsert(sql string, prefix rune) (string, error) {
	cols, _, _, err := fieldPart(sql)
	if err != nil {
		return "", err
	}
	marks := make([]string, len(cols))
	for i, c := range cols {
		marks[i] = string(prefix) + unquoteIdent(c)
	}
	return strings.TrimRightFunc(sql, unicode.IsSpace) + " VALUES(" + strings.Join(marks, ", ") + ")", nil
}

// CompleteUpdate turns the column list of an UPDATE into a SET clause:
//
//	UPDATE t (a, b) WHERE id=@id  ->  UPDATE t SET a=@a, b=@b WHERE id=@id
//
// A quoted column keeps its quotes on the left of the assignment.
func CompleteUpdate(sql string, prefix rune) (string, error) {
	cols, open, closing, err := fieldPart(sql)
	if err != nil {
		return "", err
	}
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + "=" + string(prefix) + unquoteIdent(c)
	}
	out := strings.TrimSpace(sql[:open]) + " SET " + strings.Join(sets, ", ")
	if rest := strings.TrimSpace(sql[closing+1:]); rest != "" {
		out += " " + rest
	}
	return out, nil
}

// fieldPart returns the column entries between the first '(' and the first ')' after it,
// with all whitespace removed.
func fieldPart(sql string) (cols []string, open, closing int, err error) {
	open = strings.IndexByte(sql, '(')
	if open < 0 {
		return nil, 0, 0, fmt.Errorf("%w: missing column list parenthesis in [%s]", ErrAutoComplete, sql)
	}
	rel := strings.IndexByte(sql[open+1:], ')')
	if rel < 0 {
		return nil, 0, 0, fmt.Errorf("%w: missing closing parenthesis in [%s]", ErrAutoComplete, sql)
	}
	closing = open + 1 + rel
	list := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, sql[open+1:closing])
	cols = strings.Split(list, ",")
	for _, c := range cols {
		if c == "" || unquoteIdent(c) == "" {
			return nil, 0, 0, fmt.Errorf("%w: empty column entry in [%s]", ErrAutoComplete, sql)
		}
	}
	return cols, open, closing, nil
}

// unquoteIdent strips [], "" and `` delimiters from a column name.
func unquoteIdent(c string) string {
	return strings.Trim(c, "[]\"`")
}
