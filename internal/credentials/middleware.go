package credentials

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/af-corp/medullar-gateway/internal/httputil"
)

// Middleware returns a chi middleware that takes the Medullar API key from the
// Bearer token and stores it in the request context.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := w.Header().Get("X-Request-ID")

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httputil.WriteAuthError(w, reqID, "Missing Authorization header. Use: Authorization: Bearer <medullar-api-key>")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token == authHeader {
				httputil.WriteAuthError(w, reqID, "Invalid Authorization format. Use: Authorization: Bearer <medullar-api-key>")
				return
			}
			token = strings.TrimSpace(token)
			if token == "" {
				httputil.WriteAuthError(w, reqID, "Empty API key")
				return
			}

			slog.Debug("credential attached", "request_id", reqID, "credential", SafePrefix(token))

			ctx := ContextWithCredential(r.Context(), &Credential{APIKey: token})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
