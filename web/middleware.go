package web

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/voxbridge/voxbridge/adapters/metrics"
	appsvc "github.com/voxbridge/voxbridge/app"
	"github.com/voxbridge/voxbridge/ports"
)

type contextKey string

const identityKey contextKey = "identity"

// IdentityFrom extracts the verified caller from the request context.
func IdentityFrom(ctx context.Context) (ports.Identity, bool) {
	id, ok := ctx.Value(identityKey).(ports.Identity)
	return id, ok
}

// withIdentity returns a context carrying the verified caller.
func withIdentity(ctx context.Context, id ports.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// RequireAuth verifies the bearer token and stores the caller identity
// in the request context.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token", "Authorization header with bearer token required")
			return
		}

		id, err := h.verifier.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token", "Token is invalid or expired")
			return
		}

		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
	})
}

// RequireAdmin rejects non-admin callers. Must run after RequireAuth.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok || !id.IsAdmin {
			writeError(w, http.StatusForbidden, "admin_required", "Admin privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAccount enforces account standing on metered endpoints.
// Must run after RequireAuth.
func (h *Handler) RequireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_token", "Authentication required")
			return
		}

		decision := h.accounts.Authorize(r.Context(), id.UserID)
		if !decision.Allowed {
			msg := "Account is suspended"
			if decision.Reason == appsvc.GateReasonBlocked {
				msg = "Account is blocked"
				if decision.Detail != "" {
					msg += ": " + decision.Detail
				}
			}
			writeError(w, http.StatusForbidden, decision.Reason, msg)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewLoggingMiddleware logs HTTP requests.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			// Skip logging for health checks and metrics
			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/metrics" {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

// NewMetricsMiddleware records request counts and latencies.
func NewMetricsMiddleware(m *metrics.Collector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" || strings.HasPrefix(r.URL.Path, "/health") {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := strconv.Itoa(ww.Status())
			m.RequestsTotal.WithLabelValues(r.Method, status).Inc()
			m.RequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
		})
	}
}
