package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubAdminStore struct {
	isAdmin bool
	isSuper bool
	roles   []string
	err     error
}

func (s stubAdminStore) Get(_ context.Context, _ string) (bool, bool, []string, error) {
	return s.isAdmin, s.isSuper, s.roles, s.err
}

func requestAsUser(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	return req.WithContext(context.WithValue(req.Context(), userIDKey, userID))
}

func TestRequireAdmin(t *testing.T) {
	cases := []struct {
		name     string
		store    stubAdminStore
		role     string
		withUser bool
		want     int
	}{
		{"no user in context", stubAdminStore{}, "CanViewAudit", false, http.StatusUnauthorized},
		{"not an admin", stubAdminStore{}, "CanViewAudit", true, http.StatusForbidden},
		{"admin without role", stubAdminStore{isAdmin: true, roles: []string{"CanManageAccounts"}}, "CanViewAudit", true, http.StatusForbidden},
		{"admin with role", stubAdminStore{isAdmin: true, roles: []string{"CanViewAudit"}}, "CanViewAudit", true, http.StatusOK},
		{"super admin bypasses roles", stubAdminStore{isAdmin: true, isSuper: true}, "CanViewAudit", true, http.StatusOK},
		{"any admin when no role required", stubAdminStore{isAdmin: true}, "", true, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := RequireAdmin(tc.store, tc.role)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.withUser {
				req = requestAsUser("u1")
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}
