// Package authtest lets handler tests pick the caller per request without
// issuing session tokens.
package authtest

import (
	"net/http"

	"venuly/internal/auth"
	"venuly/internal/models"
)

const (
	userHeader = "X-Test-User"
	roleHeader = "X-Test-Role"
)

// Middleware attaches the identity named by As to the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(userHeader); id != "" {
			r = r.WithContext(auth.WithIdentity(r.Context(), &auth.Identity{
				UserID: id,
				Role:   models.Role(r.Header.Get(roleHeader)),
			}))
		}
		next.ServeHTTP(w, r)
	})
}

// As marks req as sent by userID holding role. An empty userID leaves it anonymous.
func As(req *http.Request, userID string, role models.Role) *http.Request {
	if userID != "" {
		req.Header.Set(userHeader, userID)
		req.Header.Set(roleHeader, string(role))
	}
	return req
}
