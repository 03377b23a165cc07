package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/rfdstore/internal/metrics"
	"github.com/hitoshi/rfdstore/internal/middleware"
	"github.com/hitoshi/rfdstore/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Collector         metrics.MetricsCollector

	// RFDレコード
	RFDRepo     repository.RFDRepository
	SyncService SyncServiceInterface

	// ヘルスチェック
	Pinger repository.Pinger

	// メトリクス公開
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders → CORS → Metrics
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewMetricsMiddleware(deps.Collector))

	rfdHandler := NewRFDHandler(deps.RFDRepo, deps.SyncService, deps.Collector)
	healthHandler := NewHealthHandler(deps.Pinger)

	// --- レート制限の外のルート ---

	r.Get("/health", healthHandler.Health)
	r.Handle("/metrics", metrics.Handler(deps.Gatherer))

	// --- APIルート ---
	// ミドルウェアスタック: RateLimit(General)、書き込み系はRateLimit(Sync)を追加
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/rfds", func(r chi.Router) {
			r.Get("/", rfdHandler.ListRFDs)

			r.Route("/{number}", func(r chi.Router) {
				r.Get("/", rfdHandler.GetRFD)
				r.With(deps.RateLimiter.SyncMiddleware()).Put("/", rfdHandler.PutRFD)
				r.With(deps.RateLimiter.SyncMiddleware()).Delete("/", rfdHandler.DeleteRFD)
			})
		})
	})

	return r
}
