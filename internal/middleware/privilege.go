package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/audiodrop/audiodrop/internal/auth"
)

type contextKey string

const privilegeKey contextKey = "privilege"

// Privilege returns a middleware that verifies a bearer session token
// (if any) and stores the resulting privilege in the request context.
// Absent or invalid tokens yield PrivilegeNone rather than an error;
// handlers decide what each privilege may do.
func Privilege(am auth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			priv := auth.PrivilegeNone
			if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
				if p, err := am.Verify(strings.TrimPrefix(header, "Bearer ")); err == nil {
					priv = p
				}
			}
			ctx := context.WithValue(r.Context(), privilegeKey, priv)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrivilegeFrom extracts the privilege a request carries.
func PrivilegeFrom(ctx context.Context) auth.Privilege {
	if p, ok := ctx.Value(privilegeKey).(auth.Privilege); ok {
		return p
	}
	return auth.PrivilegeNone
}
