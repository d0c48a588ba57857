package gateway

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestID propagates X-Request-ID, generating one when the caller sent none.
// Handlers read it back from the response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = "req_" + uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
	})
}
