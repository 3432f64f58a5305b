package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "amlstat/pkg/domain"
	dErrors "amlstat/pkg/domain-errors"
	authmw "amlstat/pkg/platform/middleware/auth"
)

var jwtService = NewJWTService(
	"test-signing-key",
	"test-issuer",
	"test-audience",
)
var orgID = id.NewOrganizationID()
var principal = id.Principal{
	UserID:         id.NewUserID(),
	Email:          "officer@bank.example",
	Role:           id.RoleOrgAdmin,
	OrganizationID: &orgID,
}
var expiresIn = time.Hour

func Test_GenerateAccessToken(t *testing.T) {
	token, expiresAt, err := jwtService.GenerateAccessToken(principal, expiresIn)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(expiresIn), expiresAt, time.Minute)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, principal.UserID.String(), claims.UserID)
	assert.Equal(t, principal.Email, claims.Email)
	assert.Equal(t, "org_admin", claims.Role)
	assert.Equal(t, orgID.String(), claims.OrganizationID)
	assert.WithinDuration(t, expiresAt, claims.ExpiresAt.Time, time.Second)
}

func Test_GenerateAccessToken_AdminHasNoOrganization(t *testing.T) {
	admin := id.Principal{UserID: id.NewUserID(), Email: "root@regulator.example", Role: id.RoleAdmin}
	token, _, err := jwtService.GenerateAccessToken(admin, expiresIn)
	require.NoError(t, err)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Empty(t, claims.OrganizationID)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Equal(t, "invalid token", dErrors.MessageOf(err))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	token, _, err := jwtService.GenerateAccessToken(principal, -time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Equal(t, "token has expired", dErrors.MessageOf(err))
}

func Test_ValidateToken_WrongKeyOrAudience(t *testing.T) {
	token, _, err := NewJWTService("other-key", "test-issuer", "test-audience").GenerateAccessToken(principal, expiresIn)
	require.NoError(t, err)
	_, err = jwtService.ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	token, _, err = NewJWTService("test-signing-key", "test-issuer", "someone-else").GenerateAccessToken(principal, expiresIn)
	require.NoError(t, err)
	_, err = jwtService.ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_AdapterProducesPrincipal(t *testing.T) {
	token, _, err := jwtService.GenerateAccessToken(principal, expiresIn)
	require.NoError(t, err)

	claims, err := NewJWTServiceAdapter(jwtService).ValidateToken(token)
	require.NoError(t, err)

	p, err := authmw.PrincipalFromClaims(claims)
	require.NoError(t, err)
	assert.Equal(t, principal, p)
}
