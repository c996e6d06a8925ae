// Package requesttime pins a single "now" per HTTP request. Session
// expiry, age arithmetic, and audit timestamps within one request all
// observe the same instant.
package requesttime

import (
	"net/http"
	"time"

	"verity/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request and
// stores it in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
