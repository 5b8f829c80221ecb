package repo

import (
	"fmt"
	"strings"
)

// Join concatenates non-empty SQL fragments with a single space.
func Join(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}

// FormatLimitOffset returns a LIMIT/OFFSET fragment, omitting either part
// when it is not positive.
func FormatLimitOffset(limit, offset int) string {
	switch {
	case limit > 0 && offset > 0:
		return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
	case limit > 0:
		return fmt.Sprintf("LIMIT %d", limit)
	case offset > 0:
		return fmt.Sprintf("OFFSET %d", offset)
	default:
		return ""
	}
}

type SortByField[T ~string] struct {
	Field     T
	Ascending bool
}

type SortBy[T ~string] struct {
	Fields []SortByField[T]
}

// OrderBy renders an ORDER BY fragment using the column mapping. Unknown
// fields are skipped so a caller-supplied sort can never inject raw SQL.
func OrderBy[T ~string](sort SortBy[T], columns map[T]string) string {
	exprs := make([]string, 0, len(sort.Fields))
	for _, f := range sort.Fields {
		col, ok := columns[f.Field]
		if !ok {
			continue
		}
		dir := "DESC"
		if f.Ascending {
			dir = "ASC"
		}
		exprs = append(exprs, col+" "+dir)
	}
	if len(exprs) == 0 {
		return ""
	}
	return "ORDER BY " + strings.Join(exprs, ", ")
}

// Clauses accumulates SQL condition or assignment fragments together with
// their positional arguments, tracking the running placeholder index.
// Fragments are emitted in Add order, so generated SQL is deterministic for a
// given sequence of calls.
type Clauses struct {
	parts []string
	args  []any
	next  int
}

// NewClauses starts a builder whose first placeholder is $startIndex.
func NewClauses(startIndex int) *Clauses {
	if startIndex < 1 {
		startIndex = 1
	}
	return &Clauses{next: startIndex}
}

// Add appends a fragment containing exactly one %d verb for the placeholder
// index, for example "status = $%d", and binds value to it.
func (c *Clauses) Add(expr string, value any) *Clauses {
	c.parts = append(c.parts, fmt.Sprintf(expr, c.next))
	c.args = append(c.args, value)
	c.next++
	return c
}

// AddRaw appends a fragment that binds no argument (for example
// "is_active = true").
func (c *Clauses) AddRaw(expr string) *Clauses {
	c.parts = append(c.parts, expr)
	return c
}

func (c *Clauses) Empty() bool     { return len(c.parts) == 0 }
func (c *Clauses) Len() int        { return len(c.parts) }
func (c *Clauses) Args() []any     { return c.args }
func (c *Clauses) NextIndex() int  { return c.next }
func (c *Clauses) Parts() []string { return c.parts }

// Where renders the fragments joined with AND, without the WHERE keyword.
func (c *Clauses) Where() string {
	return strings.Join(c.parts, " AND ")
}

// Set renders the fragments joined with commas for an UPDATE ... SET list.
func (c *Clauses) Set() string {
	return strings.Join(c.parts, ", ")
}
