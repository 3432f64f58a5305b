package models

import (
	"strings"

	dErrors "amlstat/pkg/domain-errors"
	"amlstat/pkg/email"
)

type CreateOrganizationRequest struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	Type         Type   `json:"type"`
	ContactEmail string `json:"contact_email"`
	ContactPhone string `json:"contact_phone"`
	Address      string `json:"address"`
}

func (r *CreateOrganizationRequest) Normalize() {
	r.Code = strings.ToUpper(strings.TrimSpace(r.Code))
	r.Name = strings.TrimSpace(r.Name)
	r.Type = Type(strings.ToLower(strings.TrimSpace(string(r.Type))))
	r.ContactEmail = email.Normalize(r.ContactEmail)
	r.ContactPhone = strings.TrimSpace(r.ContactPhone)
	r.Address = strings.TrimSpace(r.Address)
}

func (r *CreateOrganizationRequest) Contact() Contact {
	return Contact{Email: r.ContactEmail, Phone: r.ContactPhone, Address: r.Address}
}

// UpdateOrganizationRequest patches mutable fields. Nil fields are left as is.
type UpdateOrganizationRequest struct {
	Name         *string `json:"name"`
	Type         *Type   `json:"type"`
	ContactEmail *string `json:"contact_email"`
	ContactPhone *string `json:"contact_phone"`
	Address      *string `json:"address"`
}

func (r *UpdateOrganizationRequest) Normalize() {
	trim := func(p *string) {
		if p != nil {
			*p = strings.TrimSpace(*p)
		}
	}
	trim(r.Name)
	trim(r.ContactPhone)
	trim(r.Address)
	if r.ContactEmail != nil {
		*r.ContactEmail = email.Normalize(*r.ContactEmail)
	}
	if r.Type != nil {
		*r.Type = Type(strings.ToLower(strings.TrimSpace(string(*r.Type))))
	}
}

func (r *UpdateOrganizationRequest) IsEmpty() bool {
	return r.Name == nil && r.Type == nil && r.ContactEmail == nil && r.ContactPhone == nil && r.Address == nil
}

// Apply validates the patch against o and returns the patched copy.
func (r *UpdateOrganizationRequest) Apply(o Organization) (Organization, error) {
	if r.Name != nil {
		if err := validateName(*r.Name); err != nil {
			return Organization{}, err
		}
		o.Name = *r.Name
	}
	if r.Type != nil {
		if !r.Type.IsValid() {
			return Organization{}, dErrors.New(dErrors.CodeInvariantViolation, "unknown organization type "+string(*r.Type))
		}
		o.Type = *r.Type
	}
	if r.ContactEmail != nil {
		o.Email = *r.ContactEmail
	}
	if r.ContactPhone != nil {
		o.Phone = *r.ContactPhone
	}
	if r.Address != nil {
		o.Address = *r.Address
	}
	if err := o.Contact.validate(); err != nil {
		return Organization{}, err
	}
	return o, nil
}

func (c Contact) validate() error {
	if c.Email != "" {
		if !email.IsValid(c.Email) {
			return dErrors.New(dErrors.CodeInvariantViolation, "contact email is invalid")
		}
	}
	if len(c.Phone) > MaxPhoneLen {
		return dErrors.New(dErrors.CodeInvariantViolation, "contact phone must be 32 characters or less")
	}
	if len(c.Address) > MaxAddressLen {
		return dErrors.New(dErrors.CodeInvariantViolation, "address must be 512 characters or less")
	}
	return nil
}
