// Package metadata propagates request correlation and client metadata
// into the context, where services and audit events read it without
// importing net/http.
package metadata

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"verity/pkg/requestcontext"
)

// RequestIDHeader is honored when the caller supplies its own
// correlation ID; otherwise one is generated.
const RequestIDHeader = "X-Request-ID"

// RequestMetadata attaches the request ID and client IP to the context
// and echoes the ID back on the response. Apply early in the chain.
func RequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := r.Context()
		ctx = requestcontext.WithRequestID(ctx, requestID)
		ctx = requestcontext.WithClientIP(ctx, clientIP(r))

		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP prefers the forwarded chain's first hop over the socket peer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return strings.TrimSpace(real)
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}
