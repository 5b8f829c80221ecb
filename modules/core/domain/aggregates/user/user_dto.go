package user

import (
	"strings"

	"github.com/fieldrow/fieldrow/pkg/constants"
	"github.com/fieldrow/fieldrow/pkg/policy"
)

type CreateDTO struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"required,max=255"`
	LastName  string `json:"last_name" validate:"required,max=255"`
	Password  string `json:"password" validate:"required,min=8"`
	Role      string `json:"role" validate:"required,oneof=admin manager staff"`
}

func (d *CreateDTO) Normalize() {
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	d.FirstName = strings.TrimSpace(d.FirstName)
	d.LastName = strings.TrimSpace(d.LastName)
}

func (d *CreateDTO) Validate() error {
	d.Normalize()
	return constants.Validate.Struct(d)
}

func (d *CreateDTO) PolicyRole() policy.Role { return policy.Role(d.Role) }
