package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	dErrors "vetclinic/pkg/domain-errors"
	"vetclinic/pkg/platform/httputil"
)

// Timeout bounds the request context. If the handler gives up on the deadline
// without writing, the client gets a 504.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			rec := recorderFrom(w)
			next.ServeHTTP(rec, r.WithContext(ctx))

			if !rec.wroteHeader && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				httputil.WriteError(rec, dErrors.New(dErrors.CodeTimeout, "request timed out"))
			}
		})
	}
}
