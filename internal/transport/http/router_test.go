package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	authhandler "amlstat/internal/auth/handler"
	authservice "amlstat/internal/auth/service"
	userstore "amlstat/internal/auth/store/user"
	"amlstat/internal/jwttoken"
	orgstore "amlstat/internal/organization/store"
	"amlstat/internal/platform/metrics"
	"amlstat/pkg/platform/httputil"
	"amlstat/pkg/platform/middleware/auth"
	"amlstat/pkg/testutil"
)

// whoami echoes the authenticated principal.
type whoami struct{}

func (whoami) Register(r chi.Router) {
	r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
		p, _ := auth.GetPrincipal(r.Context())
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"email": p.Email, "role": string(p.Role)})
	})
}

func newRouter(t *testing.T, checks map[string]HealthCheck) (http.Handler, *prometheus.Registry) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jwt := jwttoken.NewJWTService("router-test-key", "amlstat", "amlstat-api")
	svc := authservice.New(userstore.New(), orgstore.NewInMemory(), jwt,
		authservice.WithLogger(logger),
		authservice.WithBcryptCost(bcrypt.MinCost),
	)
	_, err := svc.BootstrapAdmin(context.Background(), "root@regulator.example", "admin-password-1")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	authH := authhandler.New(svc, logger)
	router := NewRouter(Dependencies{
		Logger:       logger,
		Tokens:       jwttoken.NewJWTServiceAdapter(jwt),
		Metrics:      metrics.NewWithRegistry(reg),
		Gatherer:     reg,
		HealthChecks: checks,
		Public:       []PublicRouteRegistrar{authH},
		Modules:      []RouteRegistrar{authH, whoami{}},
	})
	return router, reg
}

func serve(router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Run("all checks pass", func(t *testing.T) {
		router, _ := newRouter(t, map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
		})
		rec := serve(router, http.MethodGet, "/health", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok","checks":{"postgres":"ok"}}`, rec.Body.String())
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("failing dependency degrades", func(t *testing.T) {
		router, _ := newRouter(t, map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		})
		rec := serve(router, http.MethodGet, "/health", "", "")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.JSONEq(t, `{"status":"degraded","checks":{"postgres":"ok","redis":"unavailable"}}`, rec.Body.String())
	})

	t.Run("no dependencies configured", func(t *testing.T) {
		router, _ := newRouter(t, nil)
		rec := serve(router, http.MethodGet, "/health", "", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})
}

func TestAuthenticatedRoutes(t *testing.T) {
	router, _ := newRouter(t, nil)

	testutil.Given(t, "no bearer token", func(t *testing.T) {
		rec := serve(router, http.MethodGet, "/whoami", "", "")
		testutil.AssertStatusAndError(t, rec, http.StatusUnauthorized, "unauthorized")
	})

	testutil.Given(t, "a token from login", func(t *testing.T) {
		rec := serve(router, http.MethodPost, "/auth/login", "",
			`{"email":"root@regulator.example","password":"admin-password-1"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		login := testutil.UnmarshalResponse[struct {
			AccessToken string `json:"access_token"`
		}](t, rec)
		require.NotEmpty(t, login.AccessToken)

		testutil.When(t, "calling a module route", func(t *testing.T) {
			rec := serve(router, http.MethodGet, "/whoami", login.AccessToken, "")

			testutil.Then(t, "the principal from the token is in context", func(t *testing.T) {
				require.Equal(t, http.StatusOK, rec.Code)
				assert.JSONEq(t, `{"email":"root@regulator.example","role":"admin"}`, rec.Body.String())
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			})
		})
	})
}

func TestUnknownRouteIsJSONNotFound(t *testing.T) {
	router, _ := newRouter(t, nil)
	rec := serve(router, http.MethodGet, "/nowhere", "", "")
	testutil.AssertStatusAndError(t, rec, http.StatusNotFound, "not_found")
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newRouter(t, nil)
	serve(router, http.MethodGet, "/health", "", "")

	rec := serve(router, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `amlstat_http_requests_total{method="GET",route="/health",status="200"} 1`)
}
