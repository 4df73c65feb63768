package auth

import (
	"net/http"
)

const (
	RoleViewer   = "viewer"
	RoleOperator = "operator"
)

// RequireRole lets a request through when its token carries role, or the
// operator role which implies every other.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			claims := ClaimsFromContext(req.Context())
			if claims == nil {
				writeError(w, http.StatusForbidden, "no claims in context")
				return
			}
			if claims.Role != role && claims.Role != RoleOperator {
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}
