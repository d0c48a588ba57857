package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/af-corp/medullar-gateway/internal/credentials"
	"github.com/af-corp/medullar-gateway/internal/httputil"
	"github.com/af-corp/medullar-gateway/internal/telemetry"
)

const (
	defaultRPM = 60

	headerRateLimitRequests          = "X-RateLimit-Limit-Requests"
	headerRateLimitRemainingRequests = "X-RateLimit-Remaining-Requests"
	headerRateLimitReset             = "X-RateLimit-Reset-Requests"
	headerRetryAfter                 = "Retry-After"
)

// Checker is satisfied by *Limiter.
type Checker interface {
	Check(ctx context.Context, key string, limit int64, window time.Duration) (LimitResult, error)
}

// Middleware returns chi middleware that enforces a per-credential requests
// per minute limit. rpm is read on every request so config reloads apply.
func Middleware(limiter Checker, rpm func() int, metrics *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := w.Header().Get("X-Request-ID")

			cred, ok := credentials.FromContext(r.Context())
			if !ok {
				// Unauthenticated requests are rejected by the credentials middleware
				next.ServeHTTP(w, r)
				return
			}

			limit := defaultRPM
			if rpm != nil && rpm() > 0 {
				limit = rpm()
			}

			fingerprint := credentials.Fingerprint(cred.APIKey)
			result, _ := limiter.Check(r.Context(), "rpm:"+fingerprint, int64(limit), time.Minute)

			// Always set rate limit headers
			w.Header().Set(headerRateLimitRequests, strconv.Itoa(limit))
			w.Header().Set(headerRateLimitRemainingRequests, strconv.FormatInt(result.Remaining, 10))
			w.Header().Set(headerRateLimitReset, result.ResetAt.Format(time.RFC3339))

			if !result.Allowed {
				slog.Warn("rate limit exceeded",
					"request_id", reqID,
					"credential", credentials.SafePrefix(cred.APIKey),
					"dimension", "rpm",
					"limit", limit,
				)
				if metrics != nil {
					metrics.RecordRateLimitHit("rpm")
				}
				w.Header().Set(headerRetryAfter, strconv.Itoa(int(result.RetryAfter.Seconds())))
				httputil.WriteRateLimitError(w, reqID,
					fmt.Sprintf("Rate limit exceeded: %d requests per minute. Retry after %s", limit, result.ResetAt.Format(time.RFC3339)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
