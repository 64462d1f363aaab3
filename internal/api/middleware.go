package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	xerrors "ProofFlow-Chain/internal/errors"
	"ProofFlow-Chain/internal/observability/metrics"
)

// observe 记录请求指标，handler 标签使用路由模板避免基数膨胀。
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		pattern := routePattern(r)
		elapsed := time.Since(start)
		metrics.ObserveHTTPRequest(pattern, r.Method, status, elapsed)
		s.logger.Debug("request served",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("method", r.Method),
			slog.String("route", pattern),
			slog.Int("status", status),
			slog.Duration("elapsed", elapsed),
		)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			metrics.RecordRateLimited(routePattern(r))
			w.Header().Set("Retry-After", "60")
			writeError(w, xerrors.New(xerrors.CodeRateLimited, "请求过于频繁，请稍后再试"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return "unmatched"
}
