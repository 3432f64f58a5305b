package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "amlstat/pkg/domain"
	dErrors "amlstat/pkg/domain-errors"
)

func TestNewUser(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	orgID := id.NewOrganizationID()

	t.Run("normalizes email and derives a name", func(t *testing.T) {
		u, err := NewUser(id.NewUserID(), " Jane.Doe@Bank.Example ", "", "hash", id.RoleOrgUser, &orgID, now)
		require.NoError(t, err)
		assert.Equal(t, "jane.doe@bank.example", u.Email)
		assert.Equal(t, "Jane Doe", u.Name)
		assert.True(t, u.Active)
		assert.Equal(t, orgID, *u.OrganizationID)
	})

	tests := []struct {
		name  string
		email string
		role  id.Role
		org   *id.OrganizationID
	}{
		{"invalid email", "nope", id.RoleOrgUser, &orgID},
		{"member without organization", "a@b.io", id.RoleOrgAdmin, nil},
		{"admin with organization", "a@b.io", id.RoleAdmin, &orgID},
		{"unknown role", "a@b.io", id.Role("auditor"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewUser(id.NewUserID(), tt.email, "", "hash", tt.role, tt.org, now)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation), "got %v", err)
		})
	}
}

func TestUserDeactivation(t *testing.T) {
	now := time.Now()
	u, err := NewUser(id.NewUserID(), "admin@regulator.example", "Admin", "hash", id.RoleAdmin, nil, now)
	require.NoError(t, err)

	require.NoError(t, u.CanDeactivate())
	u.ApplyDeactivation(now.Add(time.Minute))
	assert.False(t, u.IsActive())
	assert.Equal(t, now.Add(time.Minute), u.UpdatedAt)
	assert.Error(t, u.CanDeactivate())
}

func TestUserPrincipal(t *testing.T) {
	orgID := id.NewOrganizationID()
	u, err := NewUser(id.NewUserID(), "officer@bank.example", "", "hash", id.RoleOrgAdmin, &orgID, time.Now())
	require.NoError(t, err)

	p := u.Principal()
	assert.Equal(t, u.ID, p.UserID)
	assert.Equal(t, id.RoleOrgAdmin, p.Role)
	assert.True(t, p.BelongsTo(orgID))

	clone := u.Clone()
	*clone.OrganizationID = id.NewOrganizationID()
	assert.Equal(t, orgID, *u.OrganizationID)
}

func TestCreateUserRequestValidate(t *testing.T) {
	orgID := id.NewOrganizationID()
	valid := CreateUserRequest{Email: "a@b.io", Password: "long-enough", Role: id.RoleOrgUser, OrganizationID: &orgID}
	require.NoError(t, valid.Validate())

	short := valid
	short.Password = "short"
	assert.True(t, dErrors.HasCode(short.Validate(), dErrors.CodeValidation))

	noOrg := valid
	noOrg.OrganizationID = nil
	assert.True(t, dErrors.HasCode(noOrg.Validate(), dErrors.CodeValidation))

	req := CreateUserRequest{Email: " X@Y.IO ", Role: " ORG_USER "}
	req.Normalize()
	assert.Equal(t, "x@y.io", req.Email)
	assert.Equal(t, id.RoleOrgUser, req.Role)
}
