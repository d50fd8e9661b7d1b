// Package app はアプリケーションの起動と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/loreboard/internal/auth"
	"github.com/hitoshi/loreboard/internal/config"
	"github.com/hitoshi/loreboard/internal/database"
	"github.com/hitoshi/loreboard/internal/fallback"
	"github.com/hitoshi/loreboard/internal/handler"
	"github.com/hitoshi/loreboard/internal/logger"
	"github.com/hitoshi/loreboard/internal/metrics"
	"github.com/hitoshi/loreboard/internal/middleware"
	"github.com/hitoshi/loreboard/internal/model"
	"github.com/hitoshi/loreboard/internal/post"
	"github.com/hitoshi/loreboard/internal/realtime"
	"github.com/hitoshi/loreboard/internal/repository"
	"github.com/hitoshi/loreboard/internal/security"
	"github.com/hitoshi/loreboard/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// .envがあれば読み込み、環境変数からConfigを読み込み、
// JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. .envファイルの読み込み（存在しない場合は環境変数のみ使用）
	_ = godotenv.Load()

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	// fallback はデータベースを使わないため、必須環境変数を要求しない
	if cmd == CommandFallback {
		logger.SetupDefault(w)
		_ = godotenv.Load()
		return runFallback(config.LoadFallback())
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeed:
		return runSeed(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	postRepo := repository.NewPostgresPostRepo(db)

	// 3. メトリクスとリアルタイム配信の初期化
	registry := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(registry)
	hub := realtime.NewHub()

	// 4. ドメインサービスの初期化
	authService := auth.NewService(
		userRepo, sessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)
	postService := post.NewService(postRepo, hub, recorder)
	renderer := security.NewTextRenderer()

	// 5. レートリミッターの構築（configはreq/min単位、rate.Limitはreq/sec単位）
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.PostCreateRate = rate.Limit(float64(cfg.RateLimitPostCreate) / 60.0)
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 6. ルーターの構築
	deps := &handler.RouterDeps{
		HealthChecker:     db,
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		PostService: postService,
		PostConfig: handler.PostHandlerConfig{
			DefaultLimit: cfg.FeedDefaultLimit,
		},
		Renderer: renderer,

		Hub: hub,
		EventsConfig: handler.EventsHandlerConfig{
			HeartbeatInterval: cfg.RealtimeHeartbeat,
		},

		Metrics:  recorder,
		Gatherer: registry,
		Logger:   slog.Default(),
	}

	router := handler.NewRouter(deps)

	// 7. 期限切れセッションの定期削除ジョブ
	jobCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()
	cleanupJob := cleanup.NewSessionCleanupJob(db, slog.Default())
	go cleanupJob.Start(jobCtx, time.Hour)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// SSE接続があるためWriteTimeoutは設定しない
		IdleTimeout: 60 * time.Second,
	}

	return serveWithGracefulShutdown(server, "API server")
}

// runFallback は静的ファイル+JSONファイル版サーバーで起動する。
// ホストされたAPIの代わりに使うデプロイ構成で、認証もDBも使わない。
func runFallback(cfg *config.Config) error {
	store := fallback.NewStore(cfg.FallbackDataPath)
	srv := fallback.NewServer(store, cfg.PublicDir)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("fallback server configuration",
		slog.String("public_dir", cfg.PublicDir),
		slog.String("data_path", cfg.FallbackDataPath),
	)

	return serveWithGracefulShutdown(server, "fallback server")
}

// serveWithGracefulShutdown はHTTPサーバーを起動し、
// SIGINT/SIGTERM受信時にグレースフルシャットダウンを行う。
func serveWithGracefulShutdown(server *http.Server, name string) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info(name+" starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down " + name + "...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info(name + " stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// seedBodies はseedサブコマンドが挿入するデモ投稿の本文。
var seedBodies = []string{
	"A stray spell orb drifted through the east cloister, humming like bees until a Sight student sketched its orbit.",
	"Touch apprentices wove a tapestry ward so dense it softened every footstep in the moonlit hall.",
	"Sound faculty tuned the bells to the heartbeat of the library—silence now thuds softly between shelves.",
	"Smell/Taste novices brewed a tea that tastes like first snowfall; it cleared every fogged mind in exams.",
	"Sight trackers mapped a comet tail over the observatory—its glow traced the old ward-lines perfectly.",
	"Touch mentors added braille runes to the dueling circle; the floor thrums when your stance is true.",
	"Sound keepers report the wind tunnel harmonized on its own, as if practicing scales before class.",
	"Smell/Taste alchemists infused the greenhouse with rosemary vapor; memories surfaced like bubbles.",
}

// runSeed はデモ投稿を1件挿入する。
// SEED_USER_IDが設定されていればそのユーザーの投稿として、
// なければ匿名投稿として挿入する。
func runSeed(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	postRepo := repository.NewPostgresPostRepo(db)

	seedPost := &model.Post{
		ID:     uuid.New().String(),
		UserID: os.Getenv("SEED_USER_ID"),
		Body:   seedBodies[rand.Intn(len(seedBodies))],
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := postRepo.Create(ctx, seedPost); err != nil {
		return fmt.Errorf("failed to seed post: %w", err)
	}

	slog.Info("seed post created",
		slog.String("post_id", seedPost.ID),
		slog.String("body", seedPost.Body),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
