// Package app はアプリケーションの起動とワイヤリングを提供する。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/folio/blogapi/internal/auth"
	"github.com/folio/blogapi/internal/config"
	"github.com/folio/blogapi/internal/contact"
	"github.com/folio/blogapi/internal/database"
	"github.com/folio/blogapi/internal/engagement"
	"github.com/folio/blogapi/internal/handler"
	"github.com/folio/blogapi/internal/logger"
	"github.com/folio/blogapi/internal/metrics"
	"github.com/folio/blogapi/internal/middleware"
	"github.com/folio/blogapi/internal/post"
	"github.com/folio/blogapi/internal/repository"
	"github.com/folio/blogapi/internal/security"
	"github.com/folio/blogapi/internal/user"
	"github.com/folio/blogapi/internal/worker/reconcile"
)

// jwksFetchTimeout はJWKS取得1回あたりのタイムアウト。
const jwksFetchTimeout = 10 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、設定されたレベルでJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(ctx context.Context, w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたレベルで再設定する（Validate済みのためエラーにならない）
	level, _ := logger.ParseLevel(cfg.LogLevel)
	logger.SetupDefault(w, level)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, known := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := Init(ctx, w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	if !known {
		slog.Warn("unknown command, falling back to serve", slog.String("arg", args[0]))
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("env", cfg.AppEnv),
		slog.String("identity_provider", cfg.IdentityProvider),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandReconcile:
		return runReconcile(ctx, cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.WaitForDB(ctx, db, cfg.DatabaseConnectAttempts); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established",
		slog.String("driver", cfg.DatabaseDriver),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	// 2. ワイヤリング
	router, closeFn, err := NewHandler(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeFn()

	// 3. カウンタ整合ジョブ
	if cfg.CounterReconcileInterval > 0 {
		job := reconcile.NewJob(db, slog.Default())
		go job.Start(ctx, cfg.CounterReconcileInterval)
		slog.Info("counter reconciliation scheduled",
			slog.Duration("interval", cfg.CounterReconcileInterval),
		)
	}

	// 4. HTTPサーバーの起動
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// NewHandler はリポジトリ → サービス → ハンドラーを組み立て、ルーターを返す。
// 返される関数は外部IdPの鍵更新などのバックグラウンド処理を停止する。
func NewHandler(ctx context.Context, cfg *config.Config, db *sqlx.DB) (http.Handler, func(), error) {
	// 1. リポジトリの初期化
	userRepo := repository.NewSQLUserRepo(db)
	postRepo := repository.NewSQLPostRepo(db)
	interactionRepo := repository.NewSQLInteractionRepo(db)
	commentRepo := repository.NewSQLCommentRepo(db)
	contactRepo := repository.NewSQLContactRepo(db)

	// 2. セキュリティサービスの初期化
	sanitizer := security.NewSanitizer()
	urlGuard := security.NewURLGuard()

	// 3. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db.DB, cfg.DatabaseDriver),
	)
	collector := metrics.NewCollector(reg)

	// 4. 認証
	verifier, closeVerifier, err := newIdentityVerifier(ctx, cfg, urlGuard)
	if err != nil {
		return nil, nil, err
	}
	issuer, err := auth.NewTokenIssuer(auth.TokenConfig{
		Secret:    []byte(cfg.JWTSecret),
		Algorithm: cfg.JWTAlgorithm,
		TTL:       cfg.TokenTTL(),
	})
	if err != nil {
		closeVerifier()
		return nil, nil, fmt.Errorf("failed to create token issuer: %w", err)
	}

	// 5. ドメインサービスの初期化
	directory := user.NewDirectory(userRepo, sanitizer, urlGuard, user.Config{
		AdminEmails:     cfg.AdminEmails,
		ReevaluateAdmin: cfg.AdminReevaluateOnLogin,
	})
	authService := auth.NewService(verifier, directory, issuer, collector)
	postService := post.NewService(postRepo, sanitizer)
	ledger := engagement.NewLedger(postRepo, interactionRepo, commentRepo, sanitizer, collector)
	contactService := contact.NewService(contactRepo, sanitizer)

	// 6. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:                slog.Default(),
		Sessions:              issuer,
		CORSAllowedOrigins:    cfg.CORSAllowedOrigins,
		HSTS:                  cfg.IsProduction(),
		TrustForwardedHeaders: cfg.TrustForwardedHeaders,
		MutationLimiter:       middleware.NewSlidingWindowLimiter(cfg.RateLimitPerMinute, time.Minute),
		LoginLimiter:          middleware.NewLoginLimiter(cfg.RateLimitLoginPerMinute),
		PublicPerMinute:       cfg.RateLimitPublicPerMinute,
		Metrics:               collector,
		MetricsHandler:        metrics.Handler(reg),
		DB:                    db,

		AuthService: authService,
		AuthConfig:  handler.AuthHandlerConfig{AcceptUserData: cfg.IdentityProvider == config.ProviderDev},

		UserService: directory,

		PostService:       postService,
		PostAdminService:  postService,
		EngagementService: ledger,

		ContactService: contactService,
	})

	return router, closeVerifier, nil
}

// newIdentityVerifier は設定された外部IdPのVerifierを生成する。
// どのVerifierもIDENTITY_VERIFY_TIMEOUTで打ち切る。
func newIdentityVerifier(ctx context.Context, cfg *config.Config, guard security.URLGuard) (auth.Verifier, func(), error) {
	noop := func() {}

	switch cfg.IdentityProvider {
	case config.ProviderGoogle:
		v, err := auth.NewGoogleVerifier(auth.GoogleVerifierConfig{
			ClientID:       cfg.GoogleClientID,
			JWKSURL:        cfg.GoogleJWKSURL,
			HTTPClient:     guard.NewSafeClient(jwksFetchTimeout),
			RefreshTimeout: jwksFetchTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create google verifier: %w", err)
		}
		return auth.WithTimeout(v, cfg.IdentityVerifyTimeout), v.Close, nil

	case config.ProviderFirebase:
		v, err := auth.NewFirebaseVerifier(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create firebase verifier: %w", err)
		}
		return auth.WithTimeout(v, cfg.IdentityVerifyTimeout), noop, nil

	case config.ProviderDev:
		slog.Warn("using development identity verifier; identity tokens are not signature-checked")
		return auth.WithTimeout(auth.NewDevVerifier(), cfg.IdentityVerifyTimeout), noop, nil

	default:
		return nil, nil, fmt.Errorf("unsupported identity provider: %q", cfg.IdentityProvider)
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("driver", cfg.DatabaseDriver),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseDriver, cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runReconcile はカウンタ整合ジョブを1回だけ実行する。
// 手動でのデータ修正やリストアの後に使用する。
func runReconcile(ctx context.Context, cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.WaitForDB(ctx, db, cfg.DatabaseConnectAttempts); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := reconcile.NewJob(db, slog.Default()).Run(ctx); err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}
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

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
// URL形式でない場合（SQLiteのファイルパスなど）はそのまま返す。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return raw
	}
	return u.Redacted()
}
