package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"amlstat/pkg/domain"
	request "amlstat/pkg/platform/middleware/request"
)

// JWTValidator defines the interface for validating access tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims is the verified identity carried by an access token.
type JWTClaims struct {
	UserID         string
	Email          string
	Role           string
	OrganizationID string
}

type contextKeyPrincipal struct{}

// ContextKeyPrincipal is exported for tests that build authenticated requests.
var ContextKeyPrincipal = contextKeyPrincipal{}

// GetPrincipal retrieves the authenticated principal placed by RequireAuth.
// Handlers pass the returned value explicitly into services.
func GetPrincipal(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(ContextKeyPrincipal).(domain.Principal)
	return p, ok
}

// WithPrincipal attaches a principal to a context.
func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, p)
}

// PrincipalFromClaims converts verified claims into a Principal.
func PrincipalFromClaims(claims *JWTClaims) (domain.Principal, error) {
	userID, err := domain.ParseUserID(claims.UserID)
	if err != nil {
		return domain.Principal{}, err
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return domain.Principal{}, err
	}
	p := domain.Principal{UserID: userID, Email: claims.Email, Role: role}
	if claims.OrganizationID != "" {
		orgID, err := domain.ParseOrganizationID(claims.OrganizationID)
		if err != nil {
			return domain.Principal{}, err
		}
		p.OrganizationID = &orgID
	}
	if role.RequiresOrganization() && p.OrganizationID == nil {
		return domain.Principal{}, fmt.Errorf("role %s requires an organization", role)
	}
	return p, nil
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := request.GetRequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			principal, err := PrincipalFromClaims(claims)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - malformed claims",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, principal)))
		})
	}
}
