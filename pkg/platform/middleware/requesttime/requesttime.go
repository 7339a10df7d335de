// Package requesttime pins one "now" per request so every log line and audit
// event produced while serving it agrees on the time.
package requesttime

import (
	"net/http"
	"time"

	"propreg/pkg/requestcontext"
)

// Middleware stores the request start time in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
