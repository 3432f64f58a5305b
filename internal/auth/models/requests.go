package models

import (
	"strings"
	"time"

	id "amlstat/pkg/domain"
	dErrors "amlstat/pkg/domain-errors"
	"amlstat/pkg/email"
)

type CreateUserRequest struct {
	Email          string             `json:"email"`
	Password       string             `json:"password"`
	Name           string             `json:"name"`
	Role           id.Role            `json:"role"`
	OrganizationID *id.OrganizationID `json:"organization_id"`
}

func (r *CreateUserRequest) Normalize() {
	r.Email = email.Normalize(r.Email)
	r.Name = strings.TrimSpace(r.Name)
	r.Role = id.Role(strings.ToLower(strings.TrimSpace(string(r.Role))))
}

// Validate checks input that never reaches the model, such as the plaintext
// password.
func (r *CreateUserRequest) Validate() error {
	if r.Email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if len(r.Password) < MinPasswordLen {
		return dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}
	if len(r.Password) > MaxPasswordLen {
		return dErrors.New(dErrors.CodeValidation, "password must be 72 bytes or less")
	}
	if !r.Role.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "role must be one of admin, org_admin, org_user")
	}
	if r.Role.RequiresOrganization() && r.OrganizationID == nil {
		return dErrors.New(dErrors.CodeValidation, "organization_id is required for role "+string(r.Role))
	}
	if r.Role == id.RoleAdmin && r.OrganizationID != nil {
		return dErrors.New(dErrors.CodeValidation, "administrators cannot belong to an organization")
	}
	return nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Normalize() {
	r.Email = email.Normalize(r.Email)
}

func (r *LoginRequest) Validate() error {
	if r.Email == "" || r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "email and password are required")
	}
	return nil
}

// LoginResult is returned to a caller that authenticated successfully.
type LoginResult struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        *User     `json:"user"`
}
