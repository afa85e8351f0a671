package http_auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"nodove/auth/internal/domain/models"
	"nodove/auth/internal/lib/logger/sl"
	"nodove/auth/internal/services/auth"
	"nodove/auth/pkg/utils"
)

// Authorize runs the gate on every request. Requests without a usable access token
// pass through unauthenticated; blocked users and block cache failures are denied.
func (h *Handler) Authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := h.auth.Authorize(r.Context(), accessTokenFrom(r))
		if err != nil {
			if errors.Is(err, auth.ErrUserBlocked) {
				h.metrics.Event("gate", "blocked")
				Error(w, http.StatusForbidden, CodeUserBlocked, "user is blocked")
				return
			}
			h.metrics.Event("gate", "error")
			h.log.Error("authorization gate failed", sl.Err(err))
			Error(w, http.StatusInternalServerError, CodeInternalError, "internal error")
			return
		}

		if principal != nil {
			r = r.WithContext(auth.WithPrincipal(r.Context(), principal))
		}

		next.ServeHTTP(w, r)
	})
}

// RequireRole admits authenticated principals holding one of roles.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := auth.PrincipalFrom(r.Context())
			if p == nil {
				Error(w, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
				return
			}
			if !p.HasAnyRole(roles...) {
				Error(w, http.StatusForbidden, CodeForbidden, "insufficient role")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// trustProxies applies chi's RealIP only to requests whose peer is a trusted proxy,
// so other clients cannot choose the address the login limiter keys on.
func (h *Handler) trustProxies(next http.Handler) http.Handler {
	realIP := middleware.RealIP(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if utils.FromTrustedProxy(r, h.proxies) {
			realIP.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// logRequests writes one line per request.
func (h *Handler) logRequests(next http.Handler) http.Handler {
	log := h.log.With(slog.String("component", "middleware/logger"))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entry := log.With(
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		start := time.Now()
		defer func() {
			entry.Info("request completed",
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.String("duration", time.Since(start).String()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// observe records request latency by route pattern.
func (h *Handler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		h.metrics.RequestDuration.
			WithLabelValues("http", route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())

		if status >= http.StatusBadRequest {
			h.metrics.ErrorCounter.WithLabelValues("http", strconv.Itoa(status)).Inc()
		}
	})
}
