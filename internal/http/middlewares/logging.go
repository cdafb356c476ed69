package middlewares

import (
	"net/http"
	"time"

	"github.com/ss14tools/verilink/internal/metrics"
	"github.com/ss14tools/verilink/internal/observability/logger"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// WithLogging emits one structured access log line per request and records
// the latency histogram under the given handler label.
func WithLogging(handler string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			elapsed := time.Since(start)
			metrics.HTTPDuration.WithLabelValues(handler).Observe(float64(elapsed.Milliseconds()))
			logger.Named("http").Info("request",
				logger.RequestID(RequestIDFrom(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.Status(rec.status),
				logger.Duration(elapsed),
				logger.ClientIP(ClientIP(r)),
			)
		})
	}
}
