package middleware

import (
	"mime"
	"net/http"

	dErrors "vetclinic/pkg/domain-errors"
	"vetclinic/pkg/platform/httputil"
)

// ContentTypeJSON rejects request bodies that are not declared as JSON.
// Requests without a body pass through.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength == 0 && r.Header.Get("Content-Type") == "" {
			next.ServeHTTP(w, r)
			return
		}
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "application/json" {
			w.Header().Set("Accept", "application/json")
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Content-Type must be application/json"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
