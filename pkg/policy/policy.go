// Package policy centralizes the fallback permission decisions that were
// historically re-implemented per service with slightly different rules. When
// no explicit grant is stored for a tenant, the default-decision table below
// applies.
package policy

import (
	"context"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleStaff:
		return true
	}
	return false
}

// Default-decision table:
//
//	role     max discount %  price override
//	admin    50              yes
//	manager  30              yes
//	staff    20              no
var defaultDiscountLimits = map[Role]decimal.Decimal{
	RoleAdmin:   decimal.NewFromInt(50),
	RoleManager: decimal.NewFromInt(30),
	RoleStaff:   decimal.NewFromInt(20),
}

// Grants resolves tenant-specific overrides. A nil lookup or a miss falls
// back to the default table.
type Grants interface {
	DiscountLimit(ctx context.Context, role Role) (decimal.Decimal, bool, error)
}

type Evaluator struct {
	grants Grants
}

func NewEvaluator(grants Grants) *Evaluator {
	return &Evaluator{grants: grants}
}

// MaxDiscountPercent returns the largest discount, as a percentage of base
// price, the role may apply without approval.
func (e *Evaluator) MaxDiscountPercent(ctx context.Context, role Role) (decimal.Decimal, error) {
	if e != nil && e.grants != nil {
		limit, ok, err := e.grants.DiscountLimit(ctx, role)
		if err != nil {
			return decimal.Zero, err
		}
		if ok {
			return limit, nil
		}
	}
	if limit, ok := defaultDiscountLimits[role]; ok {
		return limit, nil
	}
	return decimal.Zero, nil
}

// CanOverridePrice reports whether the role may replace a job's base price.
func (e *Evaluator) CanOverridePrice(role Role) bool {
	return role == RoleAdmin || role == RoleManager
}
