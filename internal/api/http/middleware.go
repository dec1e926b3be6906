package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/middleware"
)

// observe reports every request to Metrics under its route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if s.svc.Metrics == nil {
			return
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		s.svc.Metrics.ObserveHTTP(r.Method, route, strconv.Itoa(code), time.Since(start))
	})
}

// authenticate requires a valid bearer token.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.svc.JWTAuth == nil {
			writeError(w, http.StatusServiceUnavailable, "authentication is not configured")
			return
		}
		token, err := jwtauth.VerifyRequest(s.svc.JWTAuth, r, jwtauth.TokenFromHeader)
		if err != nil || token == nil {
			slog.Default().InfoContext(r.Context(), "unauthorized request",
				slog.String("path", r.URL.Path),
				slog.String("ip", middleware.GetClientIP(r.Context())),
			)
			writeError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
			return
		}
		ctx := jwtauth.NewContext(r.Context(), token, nil)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func subject(r *http.Request) string {
	token, _, err := jwtauth.FromContext(r.Context())
	if err != nil || token == nil {
		return ""
	}
	return token.Subject()
}
