package middleware

import (
	"context"
	"net/http"
)

type AdminStore interface {
	Get(ctx context.Context, userID string) (isAdmin, isSuper bool, roles []string, err error)
}

// RequireAdmin gates a route on admin membership plus an optional role.
// Super admins pass every role check.
func RequireAdmin(adminStore AdminStore, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			isAdmin, isSuper, roles, err := adminStore.Get(r.Context(), userID)
			if err != nil {
				http.Error(w, "unable to verify admin", http.StatusInternalServerError)
				return
			}
			if !isAdmin {
				http.Error(w, "admin privileges required", http.StatusForbidden)
				return
			}
			if isSuper || role == "" {
				next.ServeHTTP(w, r)
				return
			}
			for _, granted := range roles {
				if granted == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "missing required role", http.StatusForbidden)
		})
	}
}
