package repo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatLimitOffset(t *testing.T) {
	require.Equal(t, "LIMIT 20 OFFSET 40", FormatLimitOffset(20, 40))
	require.Equal(t, "LIMIT 20", FormatLimitOffset(20, 0))
	require.Equal(t, "OFFSET 40", FormatLimitOffset(0, 40))
	require.Equal(t, "", FormatLimitOffset(0, 0))
	require.Equal(t, "", FormatLimitOffset(-1, -1))
}

func TestJoin(t *testing.T) {
	require.Equal(t, "SELECT 1 FROM jobs WHERE id = $1", Join("SELECT 1", "FROM jobs", "", "WHERE id = $1", "  "))
}

func TestOrderBy(t *testing.T) {
	type field string
	columns := map[field]string{
		"createdAt": "created_at",
		"name":      "last_name",
	}

	sort := SortBy[field]{Fields: []SortByField[field]{
		{Field: "name", Ascending: true},
		{Field: "createdAt"},
	}}
	require.Equal(t, "ORDER BY last_name ASC, created_at DESC", OrderBy(sort, columns))

	// Unknown fields are dropped, not interpolated.
	sort = SortBy[field]{Fields: []SortByField[field]{{Field: "name; DROP TABLE jobs"}}}
	require.Equal(t, "", OrderBy(sort, columns))
}

func TestClausesPlaceholderSequencing(t *testing.T) {
	c := NewClauses(2)
	c.Add("tenant_id = $%d", "t1").
		Add("status = $%d", "pending").
		AddRaw("is_active = true").
		Add("created_at >= $%d", "2026-01-01")

	require.Equal(t, "tenant_id = $2 AND status = $3 AND is_active = true AND created_at >= $4", c.Where())
	require.Equal(t, []any{"t1", "pending", "2026-01-01"}, c.Args())
	require.Equal(t, 5, c.NextIndex())
}

func TestClausesDeterminism(t *testing.T) {
	build := func() *Clauses {
		return NewClauses(1).
			Add("first_name = $%d", "Ada").
			Add("last_name = $%d", "Lovelace")
	}
	a, b := build(), build()
	require.Equal(t, a.Set(), b.Set())
	require.Equal(t, a.Args(), b.Args())
	require.Equal(t, "first_name = $1, last_name = $2", a.Set())
}

func TestClausesEmpty(t *testing.T) {
	c := NewClauses(1)
	require.True(t, c.Empty())
	require.Equal(t, "", c.Where())
}
