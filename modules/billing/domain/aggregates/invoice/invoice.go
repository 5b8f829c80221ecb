package invoice

import (
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = gerrors.New("invoice not found")
	ErrNumberTaken       = gerrors.New("invoice number already in use")
	ErrNoLineItems       = gerrors.New("invoice needs at least one line item")
	ErrNotDraft          = gerrors.New("invoice is no longer a draft")
	ErrIllegalTransition = gerrors.New("illegal invoice status transition")
)

type Status string

const (
	StatusDraft  Status = "draft"
	StatusIssued Status = "issued"
	StatusPaid   Status = "paid"
	StatusVoid   Status = "void"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusIssued, StatusPaid, StatusVoid:
		return true
	}
	return false
}

// CanTransition: draft→issued→paid, void from draft or issued. Paid and void
// are terminal.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusDraft:
		return next == StatusIssued || next == StatusVoid
	case StatusIssued:
		return next == StatusPaid || next == StatusVoid
	}
	return false
}

type LineItem struct {
	ID          uuid.UUID
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

func (li LineItem) Amount() decimal.Decimal {
	return li.Quantity.Mul(li.UnitPrice)
}

type Invoice struct {
	id         uuid.UUID
	tenantID   uuid.UUID
	jobID      uuid.UUID
	customerID uuid.UUID
	number     string
	currency   string
	taxRate    decimal.Decimal // percent
	lineItems  []LineItem
	status     Status
	issuedAt   *time.Time
	paidAt     *time.Time
	createdBy  uuid.UUID
	createdAt  time.Time
	updatedAt  time.Time
}

func New(
	tenantID, jobID, customerID uuid.UUID,
	number, currency string,
	taxRate decimal.Decimal,
	lineItems []LineItem,
	createdBy uuid.UUID,
) (Invoice, error) {
	if len(lineItems) == 0 {
		return Invoice{}, ErrNoLineItems
	}
	return Invoice{
		tenantID:   tenantID,
		jobID:      jobID,
		customerID: customerID,
		number:     strings.TrimSpace(number),
		currency:   strings.ToUpper(strings.TrimSpace(currency)),
		taxRate:    taxRate,
		lineItems:  lineItems,
		status:     StatusDraft,
		createdBy:  createdBy,
	}, nil
}

func Hydrate(
	id, tenantID, jobID, customerID uuid.UUID,
	number, currency string,
	taxRate decimal.Decimal,
	lineItems []LineItem,
	status Status,
	issuedAt, paidAt *time.Time,
	createdBy uuid.UUID,
	createdAt, updatedAt time.Time,
) Invoice {
	return Invoice{
		id:         id,
		tenantID:   tenantID,
		jobID:      jobID,
		customerID: customerID,
		number:     number,
		currency:   currency,
		taxRate:    taxRate,
		lineItems:  lineItems,
		status:     status,
		issuedAt:   issuedAt,
		paidAt:     paidAt,
		createdBy:  createdBy,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}
}

func (i Invoice) ID() uuid.UUID            { return i.id }
func (i Invoice) TenantID() uuid.UUID      { return i.tenantID }
func (i Invoice) JobID() uuid.UUID         { return i.jobID }
func (i Invoice) CustomerID() uuid.UUID    { return i.customerID }
func (i Invoice) Number() string           { return i.number }
func (i Invoice) Currency() string         { return i.currency }
func (i Invoice) TaxRate() decimal.Decimal { return i.taxRate }
func (i Invoice) Status() Status           { return i.status }
func (i Invoice) IssuedAt() *time.Time     { return i.issuedAt }
func (i Invoice) PaidAt() *time.Time       { return i.paidAt }
func (i Invoice) CreatedBy() uuid.UUID     { return i.createdBy }
func (i Invoice) CreatedAt() time.Time     { return i.createdAt }
func (i Invoice) UpdatedAt() time.Time     { return i.updatedAt }

func (i Invoice) LineItems() []LineItem {
	out := make([]LineItem, len(i.lineItems))
	copy(out, i.lineItems)
	return out
}

func (i Invoice) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, li := range i.lineItems {
		sum = sum.Add(li.Amount())
	}
	return sum
}

func (i Invoice) Tax() decimal.Decimal {
	return i.Subtotal().Mul(i.taxRate).Div(decimal.NewFromInt(100)).Round(2)
}

func (i Invoice) Total() decimal.Decimal {
	return i.Subtotal().Add(i.Tax())
}

// TotalMoney renders the total in the invoice currency for display and
// payment hand-off. Amounts are carried as decimals internally; money is a
// presentation of the final figure only.
func (i Invoice) TotalMoney() *money.Money {
	currency := money.GetCurrency(i.currency)
	if currency == nil {
		currency = money.GetCurrency(money.USD)
	}
	scaled := i.Total().Shift(int32(currency.Fraction)).Round(0)
	return money.New(scaled.IntPart(), currency.Code)
}

// WithLineItems replaces the line items on a draft.
func (i Invoice) WithLineItems(items []LineItem) (Invoice, error) {
	if i.status != StatusDraft {
		return Invoice{}, ErrNotDraft
	}
	if len(items) == 0 {
		return Invoice{}, ErrNoLineItems
	}
	i.lineItems = items
	return i, nil
}

func (i Invoice) WithTaxRate(rate decimal.Decimal) (Invoice, error) {
	if i.status != StatusDraft {
		return Invoice{}, ErrNotDraft
	}
	i.taxRate = rate
	return i, nil
}

type Snapshot struct {
	JobID      string `json:"job_id"`
	CustomerID string `json:"customer_id"`
	Number     string `json:"number"`
	Currency   string `json:"currency"`
	Subtotal   string `json:"subtotal"`
	Tax        string `json:"tax"`
	Total      string `json:"total"`
	Status     string `json:"status"`
	Lines      int    `json:"lines"`
}

func (i Invoice) Snapshot() Snapshot {
	return Snapshot{
		JobID:      i.jobID.String(),
		CustomerID: i.customerID.String(),
		Number:     i.number,
		Currency:   i.currency,
		Subtotal:   i.Subtotal().String(),
		Tax:        i.Tax().String(),
		Total:      i.Total().String(),
		Status:     string(i.status),
		Lines:      len(i.lineItems),
	}
}
