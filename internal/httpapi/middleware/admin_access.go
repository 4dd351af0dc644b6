package middleware

import (
	"errors"
	"net/http"

	"github.com/timgst1/adminguard/internal/ability"
	"github.com/timgst1/adminguard/internal/authz"
)

// AdminAccess builds the request's authorization adapter. Users that may not
// access the admin panel never reach next.
func AdminAccess(b *authz.Builder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if b == nil {
				http.Error(w, "authorization not configured", http.StatusInternalServerError)
				return
			}
			ad, err := b.Adapter(r.Context())
			if err != nil {
				if errors.Is(err, ability.ErrAccessDenied) {
					http.Error(w, "forbidden", http.StatusForbidden)
					return
				}
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(authz.WithAdapter(r.Context(), ad)))
		})
	}
}
