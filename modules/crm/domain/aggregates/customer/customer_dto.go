package customer

import (
	"strings"

	"github.com/fieldrow/fieldrow/pkg/constants"
)

type CreateDTO struct {
	FirstName string `json:"first_name" validate:"required,max=255"`
	LastName  string `json:"last_name" validate:"required,max=255"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"omitempty,max=64"`
	Address   string `json:"address" validate:"omitempty,max=1024"`
	Notes     string `json:"notes"`
}

func (d *CreateDTO) Normalize() {
	d.FirstName = strings.TrimSpace(d.FirstName)
	d.LastName = strings.TrimSpace(d.LastName)
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	d.Phone = strings.TrimSpace(d.Phone)
	d.Address = strings.TrimSpace(d.Address)
}

func (d *CreateDTO) Validate() error {
	d.Normalize()
	return constants.Validate.Struct(d)
}

type UpdateDTO struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=255"`
	LastName  *string `json:"last_name" validate:"omitempty,max=255"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Phone     *string `json:"phone" validate:"omitempty,max=64"`
	Address   *string `json:"address" validate:"omitempty,max=1024"`
	Notes     *string `json:"notes"`
}

func (d *UpdateDTO) Patch() Patch {
	return Patch{
		FirstName: d.FirstName,
		LastName:  d.LastName,
		Email:     d.Email,
		Phone:     d.Phone,
		Address:   d.Address,
		Notes:     d.Notes,
	}
}

func (d *UpdateDTO) Validate() error {
	if d.Email != nil {
		*d.Email = strings.ToLower(strings.TrimSpace(*d.Email))
	}
	return constants.Validate.Struct(d)
}
