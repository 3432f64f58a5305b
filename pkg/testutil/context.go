package testutil

import (
	"net/http"

	id "amlstat/pkg/domain"
	authmw "amlstat/pkg/platform/middleware/auth"
)

// HeaderTestPrincipal names the principal a test request runs as.
const HeaderTestPrincipal = "X-Test-Principal"

// WithPrincipal adds a principal to the request context.
// This simulates what the auth middleware does for authenticated requests.
func WithPrincipal(req *http.Request, p id.Principal) *http.Request {
	return req.WithContext(authmw.WithPrincipal(req.Context(), p))
}

// AsPrincipal marks the request to run as the named principal; see PrincipalHeader.
func AsPrincipal(req *http.Request, name string) *http.Request {
	if name != "" {
		req.Header.Set(HeaderTestPrincipal, name)
	}
	return req
}

// PrincipalHeader stands in for RequireAuth in handler tests: the
// X-Test-Principal header selects one of the given principals. Unknown or
// missing names leave the request unauthenticated.
func PrincipalHeader(principals map[string]id.Principal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p, ok := principals[r.Header.Get(HeaderTestPrincipal)]; ok {
				r = WithPrincipal(r, p)
			}
			next.ServeHTTP(w, r)
		})
	}
}
