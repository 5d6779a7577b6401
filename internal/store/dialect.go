package store

import (
	"strconv"
	"strings"
)

// dialect captures the SQL differences between PostgreSQL and SQLite. All
// other statement text is shared.
type dialect struct {
	name string

	// placeholder renders the n-th (1-based) bind parameter.
	placeholder func(n int) string

	// regexOp is the infix regular-expression match operator.
	regexOp string

	// containsFn is a two-argument function returning the 1-based position
	// of a substring, 0 when absent.
	containsFn string

	// tagElems expands a JSON array column into rows with a "value" column.
	tagElems func(col string) string

	// types replaces $SERIAL, $FLOAT, $BOOL, $TIME and $JSON in DDL.
	types *strings.Replacer
}

var postgresDialect = dialect{
	name:        "postgres",
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	regexOp:     "~",
	containsFn:  "strpos",
	tagElems: func(col string) string {
		return "jsonb_array_elements_text(" + col + ") AS t(value)"
	},
	types: strings.NewReplacer(
		"$SERIAL", "BIGSERIAL PRIMARY KEY",
		"$FLOAT", "DOUBLE PRECISION",
		"$BOOL", "BOOLEAN",
		"$TIME", "TIMESTAMPTZ",
		"$JSON", "JSONB",
	),
}

var sqliteDialect = dialect{
	name:        "sqlite",
	placeholder: func(int) string { return "?" },
	regexOp:     "REGEXP",
	containsFn:  "instr",
	tagElems: func(col string) string {
		return "json_each(" + col + ") AS t"
	},
	types: strings.NewReplacer(
		"$SERIAL", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"$FLOAT", "REAL",
		"$BOOL", "INTEGER",
		"$TIME", "DATETIME",
		"$JSON", "TEXT",
	),
}

// stmt accumulates SQL text and its bind arguments so placeholders are
// numbered correctly for either dialect.
type stmt struct {
	d    dialect
	sb   strings.Builder
	args []any
}

func (d dialect) stmt(parts ...string) *stmt {
	s := &stmt{d: d}
	for _, p := range parts {
		s.sb.WriteString(p)
	}
	return s
}

// arg binds v and returns its placeholder.
func (s *stmt) arg(v any) string {
	s.args = append(s.args, v)
	return s.d.placeholder(len(s.args))
}

func (s *stmt) add(parts ...string) *stmt {
	for _, p := range parts {
		s.sb.WriteString(p)
	}
	return s
}

func (s *stmt) String() string { return s.sb.String() }

// contains renders "col contains needle" (or its negation).
func (s *stmt) contains(col string, needle string, negate bool) string {
	op := " > 0"
	if negate {
		op = " = 0"
	}
	return s.d.containsFn + "(" + col + ", " + s.arg(needle) + ")" + op
}

// matches renders "col matches the regular expression re".
func (s *stmt) matches(col, re string) string {
	return col + " " + s.d.regexOp + " " + s.arg(re)
}

// anyTagMatches renders "some element of the JSON tags column matches re".
func (s *stmt) anyTagMatches(col, re string) string {
	return "EXISTS (SELECT 1 FROM " + s.d.tagElems(col) + " WHERE t.value " + s.d.regexOp + " " + s.arg(re) + ")"
}
