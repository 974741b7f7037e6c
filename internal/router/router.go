package router

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-salon/internal/auth"
	"github.com/ovaphlow/pitchfork/service-salon/internal/booking"
	"github.com/ovaphlow/pitchfork/service-salon/internal/maintenance"
	"github.com/ovaphlow/pitchfork/service-salon/internal/worker"
	"github.com/ovaphlow/pitchfork/service-salon/pkg/metrics"
	"github.com/ovaphlow/pitchfork/service-salon/pkg/utilities"
)

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

func (lrw *loggingResponseWriter) statusCode() int {
	if lrw.status == 0 {
		return http.StatusOK
	}
	return lrw.status
}

const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestIDFrom returns the id assigned by RequestIDMiddleware.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestIDMiddleware keeps an incoming X-Request-ID or assigns a KSUID.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" || len(id) > 128 {
				id = utilities.NewKSUID()
			}
			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
		})
	}
}

// LoggingMiddleware returns a middleware that logs requests at debug level using the provided sugared logger.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			logger.Debugw("http request",
				"request_id", RequestIDFrom(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", lrw.statusCode(),
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// MetricsMiddleware records request counts and latency by matched route pattern.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(lrw.statusCode())).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// SecurityHeadersMiddleware returns a middleware that sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Prevent MIME sniffing
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// Clickjacking protection
			w.Header().Set("X-Frame-Options", "DENY")

			w.Header().Set("Referrer-Policy", "no-referrer")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none';")
			}

			// HSTS only over TLS
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Deps are the handlers the router mounts.
type Deps struct {
	Auth        *auth.Service
	Bookings    *booking.Handler
	Workers     *worker.Handler
	Maintenance *maintenance.Handler
	Logger      *zap.SugaredLogger
}

// RegisterRoutes mounts HTTP handlers using the standard library's http.ServeMux.
func RegisterRoutes(d Deps) http.Handler {
	mux := http.NewServeMux()
	staff := d.Auth.RequireFunc

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	// bookings
	mux.HandleFunc("POST /api/bookings", d.Bookings.Create)
	mux.HandleFunc("GET /api/bookings", d.Bookings.List)
	mux.Handle("DELETE /api/bookings", staff(d.Bookings.DeleteByQuery))
	mux.Handle("GET /api/bookings/worker", staff(d.Bookings.ListForWorker))
	mux.HandleFunc("GET /api/bookings/{id}", d.Bookings.Get)
	mux.Handle("DELETE /api/bookings/{id}", staff(d.Bookings.Delete))
	mux.HandleFunc("POST /api/bookings/cancel/{token}", d.Bookings.Cancel)

	// workers
	mux.HandleFunc("POST /api/workers/signup", d.Workers.Signup)
	mux.HandleFunc("GET /api/workers/validate/{token}", d.Workers.Validate)
	mux.HandleFunc("POST /api/workers/login", d.Workers.Login)
	mux.Handle("GET /api/workers/me", staff(d.Workers.Me))
	mux.Handle("PUT /api/workers/me", staff(d.Workers.UpdateMe))
	mux.Handle("DELETE /api/workers/me", staff(d.Workers.DeleteMe))
	mux.HandleFunc("POST /api/workers/password-reset-request", d.Workers.RequestPasswordReset)
	mux.HandleFunc("POST /api/workers/password-reset", d.Workers.PerformPasswordReset)

	// scheduled maintenance
	mux.HandleFunc("GET /api/cron/cleanup-bookings", d.Maintenance.Trigger)
	mux.HandleFunc("POST /api/cron/cleanup-bookings", d.Maintenance.Trigger)

	var handler http.Handler = mux
	handler = SecurityHeadersMiddleware()(handler)
	handler = MetricsMiddleware()(handler)
	handler = LoggingMiddleware(d.Logger)(handler)
	handler = RequestIDMiddleware()(handler)
	return handler
}
