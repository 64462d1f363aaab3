package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"ProofFlow-Chain/internal/lifecycle"
	"ProofFlow-Chain/internal/observability/metrics"
	"ProofFlow-Chain/internal/proof"
	"ProofFlow-Chain/internal/query"
	"ProofFlow-Chain/internal/reasoning"
	"ProofFlow-Chain/internal/store"
	"ProofFlow-Chain/pkg/logger"
)

// Lifecycle 是 API 依赖的写入能力。
type Lifecycle interface {
	Submit(ctx context.Context, req lifecycle.SubmitRequest) (*proof.Proof, error)
	Redrive(ctx context.Context, id string) (*proof.Proof, error)
}

// Queries 是 API 依赖的只读能力。
type Queries interface {
	GetByID(ctx context.Context, id string) (*proof.Proof, error)
	ListRecent(ctx context.Context, limit int, requester string, statuses ...proof.Status) ([]*proof.Proof, error)
	Stats(ctx context.Context) store.Stats
	Verify(ctx context.Context, id string) (query.Report, error)
}

// Server 负责暴露 REST 接口。
type Server struct {
	addr           string
	engine         reasoning.Engine
	lifecycle      Lifecycle
	queries        Queries
	limiter        *rate.Limiter
	requestTimeout time.Duration
	logger         *slog.Logger
}

// Option 定制 Server。
type Option func(*Server)

// WithRateLimit 设置全局每分钟请求上限，非正值关闭限流。
func WithRateLimit(perMinute int) Option {
	return func(s *Server) {
		if perMinute <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60), perMinute)
	}
}

// WithRequestTimeout 限制单个请求的处理时间，主要约束模型调用。
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithLogger 指定请求日志使用的 logger。
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, engine reasoning.Engine, lc Lifecycle, queries Queries, opts ...Option) *Server {
	s := &Server{
		addr:           addr,
		engine:         engine,
		lifecycle:      lc,
		queries:        queries,
		limiter:        rate.NewLimiter(rate.Limit(100.0/60), 100),
		requestTimeout: 90 * time.Second,
		logger:         logger.Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler 返回完整的路由树。
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Handle("/metrics", metrics.Handler())
	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/health", s.handleHealth)

		api.Group(func(limited chi.Router) {
			limited.Use(s.rateLimit)
			limited.Post("/reason", s.handleReason)
			limited.Get("/proofs", s.handleListProofs)
			limited.Get("/stats", s.handleStats)
			limited.Get("/proof/{proofId}", s.handleGetProof)
			limited.Get("/proof/{proofId}/verify", s.handleVerify)
			limited.Post("/proof/{proofId}/anchor", s.handleRedrive)
		})
	})
	return r
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info("API 服务已启动", slog.String("addr", s.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
