package models

import (
	"time"

	id "amlstat/pkg/domain"
	dErrors "amlstat/pkg/domain-errors"
	"amlstat/pkg/email"
)

const (
	MinPasswordLen = 8
	// bcrypt ignores input beyond 72 bytes.
	MaxPasswordLen = 72
	MaxNameLen     = 128
)

// User is an account that can log in.
//
// Invariants:
//   - Email is normalized (lowercase, trimmed) and unique
//   - org_admin and org_user accounts reference an organization; admins do not
//   - PasswordHash is a bcrypt hash and never leaves the service
type User struct {
	ID             id.UserID          `json:"id"`
	Email          string             `json:"email"`
	Name           string             `json:"name"`
	PasswordHash   string             `json:"-"`
	Role           id.Role            `json:"role"`
	OrganizationID *id.OrganizationID `json:"organization_id,omitempty"`
	Active         bool               `json:"active"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

func NewUser(userID id.UserID, address, name, passwordHash string, role id.Role, orgID *id.OrganizationID, now time.Time) (*User, error) {
	address = email.Normalize(address)
	if !email.IsValid(address) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "email is invalid")
	}
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown role "+string(role))
	}
	if role.RequiresOrganization() && orgID == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "role "+string(role)+" requires an organization")
	}
	if role == id.RoleAdmin && orgID != nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "administrators do not belong to an organization")
	}
	if passwordHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "password hash is required")
	}
	if name == "" {
		name = email.DisplayName(address)
	}
	if len(name) > MaxNameLen {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "name must be 128 characters or less")
	}
	var org *id.OrganizationID
	if orgID != nil {
		o := *orgID
		org = &o
	}
	return &User{
		ID:             userID,
		Email:          address,
		Name:           name,
		PasswordHash:   passwordHash,
		Role:           role,
		OrganizationID: org,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (u *User) IsActive() bool {
	return u.Active
}

// CanDeactivate checks if the account can transition to inactive.
// Use with ApplyDeactivation in Execute callbacks.
func (u *User) CanDeactivate() error {
	if !u.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "user is already inactive")
	}
	return nil
}

func (u *User) ApplyDeactivation(now time.Time) {
	u.Active = false
	u.UpdatedAt = now
}

// Principal is the identity this account acts as once authenticated.
func (u *User) Principal() id.Principal {
	p := id.Principal{UserID: u.ID, Email: u.Email, Role: u.Role}
	if u.OrganizationID != nil {
		orgID := *u.OrganizationID
		p.OrganizationID = &orgID
	}
	return p
}

// Clone returns a copy that shares no pointers with u.
func (u *User) Clone() *User {
	c := *u
	if u.OrganizationID != nil {
		orgID := *u.OrganizationID
		c.OrganizationID = &orgID
	}
	return &c
}
