package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/loreboard/internal/metrics"
	"github.com/hitoshi/loreboard/internal/middleware"
	"github.com/hitoshi/loreboard/internal/realtime"
	"github.com/hitoshi/loreboard/internal/security"
	"github.com/prometheus/client_golang/prometheus"
)

// HealthChecker はヘルスチェックに必要なインターフェース。
// *sql.DBがそのまま満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 投稿
	PostService PostServiceInterface
	PostConfig  PostHandlerConfig
	Renderer    security.TextRenderService

	// リアルタイム配信
	Hub          *realtime.Hub
	EventsConfig EventsHandlerConfig

	// 運用
	HealthChecker HealthChecker
	Metrics       *metrics.Recorder
	Gatherer      prometheus.Gatherer
	Logger        *slog.Logger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging
//
// CSRF検証は状態変更を受けるルートグループに、レート制限は/apiと/authに適用する。
// /healthと/metricsは軽量に保つためチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, deps.Metrics)
	postHandler := NewPostHandler(deps.PostService, deps.Renderer, deps.PostConfig)
	eventsHandler := NewEventsHandler(deps.Hub, deps.EventsConfig, deps.Metrics)

	// --- 運用エンドポイント（ログ・レート制限の外） ---

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if deps.HealthChecker != nil {
			if err := deps.HealthChecker.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.Gatherer != nil {
		r.Get("/metrics", metrics.Handler(deps.Gatherer).ServeHTTP)
	}

	// --- APIルート ---

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Metrics))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(middleware.NewOptionalSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

		// 認証ルート
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", authHandler.SignUp)
			r.Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
			r.Patch("/me", authHandler.UpdateMe)
		})

		// 投稿ルート
		r.Route("/api/posts", func(r chi.Router) {
			r.Get("/", postHandler.List)

			// 作成と削除はセッション必須
			r.Group(func(r chi.Router) {
				r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
				// POST /api/posts - 投稿作成（作成専用レート制限を追加）
				r.With(deps.RateLimiter.PostCreateMiddleware()).Post("/", postHandler.Create)
				r.Delete("/{id}", postHandler.Delete)
			})
		})

		// SSEストリーム
		r.Get("/api/realtime/posts", eventsHandler.Stream)
	})

	return r
}
