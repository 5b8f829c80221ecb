package job

import (
	"strings"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound         = gerrors.New("job not found")
	ErrNoFieldsToUpdate = gerrors.New("no fields to update")
	ErrNegativePrice    = gerrors.New("price must not be negative")
	ErrDiscountTooLarge = gerrors.New("discount exceeds base price")
)

type Job struct {
	id           uuid.UUID
	tenantID     uuid.UUID
	customerID   uuid.UUID
	departmentID uuid.UUID // Nil until the job is routed
	title        string
	description  string
	scheduledAt  *time.Time
	basePrice    decimal.Decimal
	discount     decimal.Decimal
	finalPrice   decimal.Decimal
	status       Status
	startedAt    *time.Time
	completedAt  *time.Time
	isActive     bool
	createdBy    uuid.UUID
	createdAt    time.Time
	updatedAt    time.Time
}

func New(
	tenantID, customerID uuid.UUID,
	title, description string,
	basePrice decimal.Decimal,
	scheduledAt *time.Time,
	createdBy uuid.UUID,
) (Job, error) {
	if basePrice.IsNegative() {
		return Job{}, ErrNegativePrice
	}
	return Job{
		tenantID:    tenantID,
		customerID:  customerID,
		title:       strings.TrimSpace(title),
		description: strings.TrimSpace(description),
		scheduledAt: scheduledAt,
		basePrice:   basePrice,
		discount:    decimal.Zero,
		finalPrice:  basePrice,
		status:      StatusPending,
		isActive:    true,
		createdBy:   createdBy,
	}, nil
}

func Hydrate(
	id, tenantID, customerID, departmentID uuid.UUID,
	title, description string,
	scheduledAt *time.Time,
	basePrice, discount, finalPrice decimal.Decimal,
	status Status,
	startedAt, completedAt *time.Time,
	isActive bool,
	createdBy uuid.UUID,
	createdAt, updatedAt time.Time,
) Job {
	return Job{
		id:           id,
		tenantID:     tenantID,
		customerID:   customerID,
		departmentID: departmentID,
		title:        title,
		description:  description,
		scheduledAt:  scheduledAt,
		basePrice:    basePrice,
		discount:     discount,
		finalPrice:   finalPrice,
		status:       status,
		startedAt:    startedAt,
		completedAt:  completedAt,
		isActive:     isActive,
		createdBy:    createdBy,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

func (j Job) ID() uuid.UUID                { return j.id }
func (j Job) TenantID() uuid.UUID          { return j.tenantID }
func (j Job) CustomerID() uuid.UUID        { return j.customerID }
func (j Job) DepartmentID() uuid.UUID      { return j.departmentID }
func (j Job) Title() string                { return j.title }
func (j Job) Description() string          { return j.description }
func (j Job) ScheduledAt() *time.Time      { return j.scheduledAt }
func (j Job) BasePrice() decimal.Decimal   { return j.basePrice }
func (j Job) Discount() decimal.Decimal    { return j.discount }
func (j Job) FinalPrice() decimal.Decimal  { return j.finalPrice }
func (j Job) Status() Status               { return j.status }
func (j Job) StartedAt() *time.Time        { return j.startedAt }
func (j Job) CompletedAt() *time.Time      { return j.completedAt }
func (j Job) IsActive() bool               { return j.isActive }
func (j Job) CreatedBy() uuid.UUID         { return j.createdBy }
func (j Job) CreatedAt() time.Time         { return j.createdAt }
func (j Job) UpdatedAt() time.Time         { return j.updatedAt }

func (j Job) Routed() bool { return j.departmentID != uuid.Nil }

func (j Job) WithDepartment(departmentID uuid.UUID) Job {
	j.departmentID = departmentID
	return j
}

func (j Job) WithDetails(title, description string) Job {
	j.title = strings.TrimSpace(title)
	j.description = strings.TrimSpace(description)
	return j
}

func (j Job) WithSchedule(scheduledAt *time.Time) Job {
	j.scheduledAt = scheduledAt
	return j
}

// WithPricing replaces base price and discount and recomputes the final
// price. Discounts never push the final price below zero.
func (j Job) WithPricing(basePrice, discount decimal.Decimal) (Job, error) {
	if basePrice.IsNegative() || discount.IsNegative() {
		return Job{}, ErrNegativePrice
	}
	if discount.GreaterThan(basePrice) {
		return Job{}, ErrDiscountTooLarge
	}
	j.basePrice = basePrice
	j.discount = discount
	j.finalPrice = basePrice.Sub(discount)
	return j, nil
}

// DiscountPercent reports the discount as a percentage of the base price.
// A zero base price yields zero.
func (j Job) DiscountPercent() decimal.Decimal {
	if j.basePrice.IsZero() {
		return decimal.Zero
	}
	return j.discount.Div(j.basePrice).Mul(decimal.NewFromInt(100))
}

type Snapshot struct {
	CustomerID   string `json:"customer_id"`
	DepartmentID string `json:"department_id,omitempty"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	BasePrice    string `json:"base_price"`
	Discount     string `json:"discount"`
	FinalPrice   string `json:"final_price"`
	Status       string `json:"status"`
	IsActive     bool   `json:"is_active"`
}

func (j Job) Snapshot() Snapshot {
	s := Snapshot{
		CustomerID:  j.customerID.String(),
		Title:       j.title,
		Description: j.description,
		BasePrice:   j.basePrice.String(),
		Discount:    j.discount.String(),
		FinalPrice:  j.finalPrice.String(),
		Status:      string(j.status),
		IsActive:    j.isActive,
	}
	if j.departmentID != uuid.Nil {
		s.DepartmentID = j.departmentID.String()
	}
	return s
}
