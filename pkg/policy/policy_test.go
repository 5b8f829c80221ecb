package policy

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type grantsStub struct {
	limits map[Role]decimal.Decimal
}

func (g *grantsStub) DiscountLimit(ctx context.Context, role Role) (decimal.Decimal, bool, error) {
	limit, ok := g.limits[role]
	return limit, ok, nil
}

func TestMaxDiscountPercentDefaults(t *testing.T) {
	e := NewEvaluator(nil)

	cases := map[Role]int64{
		RoleAdmin:   50,
		RoleManager: 30,
		RoleStaff:   20,
	}
	for role, want := range cases {
		limit, err := e.MaxDiscountPercent(context.Background(), role)
		require.NoError(t, err)
		require.True(t, limit.Equal(decimal.NewFromInt(want)), "role %s", role)
	}

	limit, err := e.MaxDiscountPercent(context.Background(), Role("intern"))
	require.NoError(t, err)
	require.True(t, limit.IsZero())
}

func TestMaxDiscountPercentGrantOverridesDefault(t *testing.T) {
	e := NewEvaluator(&grantsStub{limits: map[Role]decimal.Decimal{
		RoleStaff: decimal.NewFromInt(5),
	}})

	limit, err := e.MaxDiscountPercent(context.Background(), RoleStaff)
	require.NoError(t, err)
	require.True(t, limit.Equal(decimal.NewFromInt(5)))

	// Miss in grants falls through to the default table.
	limit, err = e.MaxDiscountPercent(context.Background(), RoleManager)
	require.NoError(t, err)
	require.True(t, limit.Equal(decimal.NewFromInt(30)))
}

func TestCanOverridePrice(t *testing.T) {
	e := NewEvaluator(nil)
	require.True(t, e.CanOverridePrice(RoleAdmin))
	require.True(t, e.CanOverridePrice(RoleManager))
	require.False(t, e.CanOverridePrice(RoleStaff))
}
