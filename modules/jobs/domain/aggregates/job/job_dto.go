package job

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fieldrow/fieldrow/pkg/constants"
)

type CreateDTO struct {
	CustomerID   uuid.UUID `validate:"required"`
	DepartmentID uuid.UUID
	Title        string `validate:"required,min=2,max=255"`
	Description  string `validate:"max=4000"`
	BasePrice    decimal.Decimal
	ScheduledAt  *time.Time
}

func (d *CreateDTO) Normalize() {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
}

func (d *CreateDTO) Validate() error {
	d.Normalize()
	if err := constants.Validate.Struct(d); err != nil {
		return err
	}
	if d.BasePrice.IsNegative() {
		return ErrNegativePrice
	}
	return nil
}
