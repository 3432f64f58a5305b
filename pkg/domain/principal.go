package domain

import (
	"strings"

	dErrors "amlstat/pkg/domain-errors"
)

// Role is the authorization role of an account.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOrgAdmin Role = "org_admin"
	RoleOrgUser  Role = "org_user"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleOrgAdmin, RoleOrgUser:
		return true
	}
	return false
}

// RequiresOrganization reports whether accounts with this role must belong to an organization.
func (r Role) RequiresOrganization() bool {
	return r == RoleOrgAdmin || r == RoleOrgUser
}

// ParseRole validates a role string.
func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(strings.ToLower(s)))
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown role")
	}
	return r, nil
}

// Principal is the verified identity on whose behalf an operation runs.
// It is passed explicitly into every service operation.
type Principal struct {
	UserID         UserID
	Email          string
	Role           Role
	OrganizationID *OrganizationID
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// BelongsTo reports whether the principal is a member of the organization.
// System administrators without an organization belong to none.
func (p Principal) BelongsTo(orgID OrganizationID) bool {
	return p.OrganizationID != nil && *p.OrganizationID == orgID
}

// CanAccessOrganization reports whether the principal may read data owned by orgID.
func (p Principal) CanAccessOrganization(orgID OrganizationID) bool {
	return p.IsAdmin() || p.BelongsTo(orgID)
}
