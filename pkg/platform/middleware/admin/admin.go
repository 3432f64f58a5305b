package admin

import (
	"log/slog"
	"net/http"

	"amlstat/pkg/domain"
	"amlstat/pkg/platform/middleware/auth"
	request "amlstat/pkg/platform/middleware/request"
)

// RequireRole admits only principals holding one of roles. It must run after
// auth.RequireAuth.
func RequireRole(logger *slog.Logger, roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			principal, ok := auth.GetPrincipal(ctx)
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"authentication required"}`))
				return
			}
			for _, role := range roles {
				if principal.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			logger.WarnContext(ctx, "role check failed",
				"user_id", principal.UserID,
				"role", principal.Role,
				"request_id", request.GetRequestID(ctx),
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"insufficient role"}`))
		})
	}
}

// RequireAdmin admits only system administrators.
func RequireAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	return RequireRole(logger, domain.RoleAdmin)
}
