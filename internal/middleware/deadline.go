package middleware

import (
	"context"
	"net/http"
	"time"
)

// WithDeadline attaches a context deadline of d (REQUEST_DEADLINE_SECONDS)
// to every request, so I/O that honors ctx is cancelled once d passes. It
// writes no response of its own when the deadline passes: there is no 504
// here, handlers that ignore ctx cancellation run to completion, and the
// client gets whatever the handler eventually writes. The same d applies
// to every route.
func WithDeadline(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
