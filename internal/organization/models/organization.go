package models

import (
	"fmt"
	"regexp"
	"time"

	id "amlstat/pkg/domain"
	dErrors "amlstat/pkg/domain-errors"
)

// Type is the sector an organization reports for.
type Type string

const (
	TypeRegulator      Type = "regulator"
	TypeBank           Type = "bank"
	TypeMFI            Type = "mfi"
	TypeInsurance      Type = "insurance"
	TypeSecurities     Type = "securities"
	TypeExchangeBureau Type = "exchange_bureau"
	TypeOther          Type = "other"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeRegulator, TypeBank, TypeMFI, TypeInsurance, TypeSecurities, TypeExchangeBureau, TypeOther:
		return true
	}
	return false
}

const (
	MaxNameLen    = 128
	MaxAddressLen = 512
	MaxPhoneLen   = 32
)

var codePattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_-]{1,31}$`)

// Contact holds optional organization contact details.
type Contact struct {
	Email   string `json:"contact_email"`
	Phone   string `json:"contact_phone"`
	Address string `json:"address"`
}

// Organization is a reporting entity.
//
// Invariants:
//   - Code is unique (case-insensitive), stored uppercase
//   - Name is non-empty and at most 128 characters
//   - Type is one of the known sectors
//   - Active toggles between true and false only through Deactivate/Reactivate
//
// Deactivated organizations keep their data; their members can no longer
// log in or open submissions.
type Organization struct {
	ID   id.OrganizationID `json:"id"`
	Code string            `json:"code"`
	Name string            `json:"name"`
	Type Type              `json:"type"`
	Contact
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (o *Organization) IsActive() bool {
	return o.Active
}

// CanDeactivate checks if the organization can transition to inactive.
// Use with ApplyDeactivation in Execute callbacks.
func (o *Organization) CanDeactivate() error {
	if !o.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "organization is already inactive")
	}
	return nil
}

func (o *Organization) ApplyDeactivation(now time.Time) {
	o.Active = false
	o.UpdatedAt = now
}

// CanReactivate checks if the organization can transition to active.
// Use with ApplyReactivation in Execute callbacks.
func (o *Organization) CanReactivate() error {
	if o.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "organization is already active")
	}
	return nil
}

func (o *Organization) ApplyReactivation(now time.Time) {
	o.Active = true
	o.UpdatedAt = now
}

func NewOrganization(orgID id.OrganizationID, code, name string, orgType Type, contact Contact, now time.Time) (*Organization, error) {
	if err := validateCode(code); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if !orgType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("unknown organization type %q", orgType))
	}
	if err := contact.validate(); err != nil {
		return nil, err
	}
	return &Organization{
		ID:        orgID,
		Code:      code,
		Name:      name,
		Type:      orgType,
		Contact:   contact,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func validateCode(code string) error {
	if !codePattern.MatchString(code) {
		return dErrors.New(dErrors.CodeInvariantViolation,
			"organization code must be 2-32 characters of A-Z, 0-9, '_' or '-'")
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "organization name cannot be empty")
	}
	if len(name) > MaxNameLen {
		return dErrors.New(dErrors.CodeInvariantViolation, "organization name must be 128 characters or less")
	}
	return nil
}
