package middlewares

import (
	"fmt"
	"net/http"

	"github.com/ss14tools/verilink/internal/observability/logger"
	"github.com/ss14tools/verilink/internal/rate"
)

// WithRateLimit throttles per client IP. Fails open when the limiter backend
// is unreachable so a Redis outage does not take the auth flow down with it.
func WithRateLimit(limiter rate.Limiter, scope string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := scope + ":" + ClientIP(r)
			res, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Named("ratelimit").Warn("limiter unavailable, failing open",
					logger.Key(key), logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", res.Remaining))
			if !res.Allowed {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(res.RetryAfter.Seconds())+1))
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
