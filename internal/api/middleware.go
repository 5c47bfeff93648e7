package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/omnixys/omnixys-person-service/internal/app"
	"github.com/omnixys/omnixys-person-service/internal/domain"
	"github.com/omnixys/omnixys-person-service/internal/logging"
)

const mutationRateLimitScope = "mutation"

// RequestLogger logs one line per request and makes a request-scoped entry
// available through logging.FromContext.
func RequestLogger(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			entry := logger.WithFields(logrus.Fields{
				"component":  "api",
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
			})
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(logging.WithContext(r.Context(), entry)))

			entry.WithFields(logrus.Fields{
				"status":      ww.Status(),
				"duration_ms": time.Since(start).Milliseconds(),
			}).Info("request handled")
		})
	}
}

// RequireRoles lets callers through that hold at least one of roles.
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := logging.FromContext(r.Context(), logging.Nop())
			caller, ok := CallerFrom(r.Context())
			if !ok {
				writeError(w, log, &domain.UnauthorizedError{Reason: "authentication required"})
				return
			}
			if !caller.HasAnyRole(roles...) {
				writeError(w, log, &domain.AccessForbiddenError{Username: caller.Username, Roles: caller.Roles})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MutationRateLimit counts POST, PUT and DELETE requests per caller, or per
// client address for anonymous requests, in a one minute window. Limiter
// failures let the request through.
func MutationRateLimit(limiter app.RateLimiter, perMinute int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || perMinute <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodDelete {
				next.ServeHTTP(w, r)
				return
			}

			log := logging.FromContext(r.Context(), logging.Nop())
			subject := "ip:" + r.RemoteAddr
			if caller, ok := CallerFrom(r.Context()); ok && caller.Username != "" {
				subject = "user:" + caller.Username
			}

			count, retryAfter, err := limiter.ConsumeRateLimit(r.Context(), mutationRateLimitScope, subject, perMinute, time.Minute)
			if err != nil {
				log.WithError(err).Warn("rate limiter unavailable; allowing request")
				next.ServeHTTP(w, r)
				return
			}
			if count > perMinute {
				writeError(w, log, &domain.RateLimitedError{RetryAfterSeconds: retryAfter})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
