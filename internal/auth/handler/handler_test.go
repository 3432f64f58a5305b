package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"amlstat/internal/auth/models"
	"amlstat/internal/auth/service"
	userstore "amlstat/internal/auth/store/user"
	"amlstat/internal/jwttoken"
	orgmodels "amlstat/internal/organization/models"
	orgstore "amlstat/internal/organization/store"
	id "amlstat/pkg/domain"
	"amlstat/pkg/platform/middleware/auth"
)

const adminPassword = "admin-password-1"

type testEnv struct {
	router http.Handler
	org    *orgmodels.Organization
}

// newTestEnv wires login, token verification and the admin routes the same
// way the server does, over in-memory stores with a bootstrapped admin.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	orgs := orgstore.NewInMemory()
	jwt := jwttoken.NewJWTService("handler-test-key", "amlstat", "amlstat-api")
	svc := service.New(userstore.New(), orgs, jwt,
		service.WithLogger(logger),
		service.WithBcryptCost(bcrypt.MinCost),
	)
	created, err := svc.BootstrapAdmin(context.Background(), "root@regulator.example", adminPassword)
	require.NoError(t, err)
	require.True(t, created)

	org, err := orgmodels.NewOrganization(id.NewOrganizationID(), "BANK", "Bank", orgmodels.TypeBank, orgmodels.Contact{}, time.Now())
	require.NoError(t, err)
	require.NoError(t, orgs.CreateIfCodeAvailable(context.Background(), org))

	h := New(svc, logger)
	r := chi.NewRouter()
	h.RegisterPublic(r)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(jwttoken.NewJWTServiceAdapter(jwt), logger))
		h.Register(r)
	})
	return &testEnv{router: r, org: org}
}

func (e *testEnv) do(t *testing.T, token, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := e.do(t, "", http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result models.LoginResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	return result.AccessToken
}

func TestAccountAdministration(t *testing.T) {
	env := newTestEnv(t)
	adminToken := env.login(t, "root@regulator.example", adminPassword)

	rec := env.do(t, adminToken, http.MethodPost, "/admin/users", map[string]any{
		"email":           "officer@bank.example",
		"password":        "officer-password",
		"role":            "org_admin",
		"organization_id": env.org.ID.String(),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password")
	var officer models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &officer))

	officerToken := env.login(t, "officer@bank.example", "officer-password")
	rec = env.do(t, officerToken, http.MethodGet, "/admin/users", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, adminToken, http.MethodGet, "/admin/users?organization_id="+env.org.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)

	rec = env.do(t, adminToken, http.MethodPost, "/admin/users/"+officer.ID.String()+"/deactivate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, "", http.MethodPost, "/auth/login", map[string]string{"email": "officer@bank.example", "password": "officer-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginAndRequestErrors(t *testing.T) {
	env := newTestEnv(t)
	adminToken := env.login(t, "root@regulator.example", adminPassword)

	tests := []struct {
		name   string
		token  string
		method string
		path   string
		body   any
		status int
	}{
		{"wrong password", "", http.MethodPost, "/auth/login", map[string]string{"email": "root@regulator.example", "password": "nope-nope"}, http.StatusUnauthorized},
		{"missing fields", "", http.MethodPost, "/auth/login", map[string]string{"email": "root@regulator.example"}, http.StatusBadRequest},
		{"unknown field", "", http.MethodPost, "/auth/login", map[string]string{"username": "root"}, http.StatusBadRequest},
		{"no token", "", http.MethodGet, "/admin/users", nil, http.StatusUnauthorized},
		{"garbage token", "garbage", http.MethodGet, "/admin/users", nil, http.StatusUnauthorized},
		{"bad filter", adminToken, http.MethodGet, "/admin/users?organization_id=nope", nil, http.StatusBadRequest},
		{"bad user id", adminToken, http.MethodPost, "/admin/users/nope/deactivate", nil, http.StatusBadRequest},
		{"duplicate email", adminToken, http.MethodPost, "/admin/users", map[string]any{"email": "ROOT@regulator.example", "password": "long-password", "role": "admin"}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.token, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}
