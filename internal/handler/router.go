package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/folio/blogapi/internal/auth"
	"github.com/folio/blogapi/internal/middleware"
	"github.com/folio/blogapi/internal/model"
)

// Pinger はヘルスチェックで使うDB疎通確認のインターフェース。*sqlx.DBが実装する。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// MetricsRecorder はルーターのミドルウェアが記録するメトリクス。
type MetricsRecorder interface {
	middleware.RateLimitRecorder
	middleware.HTTPStatusRecorder
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger             *slog.Logger
	Sessions           auth.SessionVerifier
	CORSAllowedOrigins []string
	HSTS               bool
	// TrustForwardedHeaders が真の場合のみX-Forwarded-For等でRemoteAddrを置き換える。
	// 信頼できるリバースプロキシの背後で動かす場合に限って有効にする。
	TrustForwardedHeaders bool
	MutationLimiter       *middleware.SlidingWindowLimiter
	LoginLimiter          *middleware.LoginLimiter
	PublicPerMinute       int
	Metrics               MetricsRecorder
	MetricsHandler        http.Handler
	DB                    Pinger

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ユーザー
	UserService UserServiceInterface

	// 記事・エンゲージメント
	PostService       PostViewer
	PostAdminService  PostAdminService
	EngagementService EngagementServiceInterface

	// 連絡先
	ContactService ContactServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP（TrustForwardedHeaders時のみ） → Logging → Recovery → SecurityHeaders → CORS
//	→ (ルートごと) Login/Public/Sliding レート制限 → Session → AdminGate
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	recorder := deps.Metrics

	r.Use(chimw.RequestID)
	if deps.TrustForwardedHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewLoggingMiddleware(logger, recorder))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware(middleware.SecurityHeadersConfig{HSTS: deps.HSTS}))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Retry-After", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	postHandler := NewPostHandler(deps.PostService, deps.EngagementService, deps.UserService)
	commentHandler := NewCommentHandler(deps.EngagementService, deps.UserService)
	userHandler := NewUserHandler(deps.UserService, deps.EngagementService)
	adminHandler := NewAdminHandler(deps.PostAdminService)
	contactHandler := NewContactHandler(deps.ContactService)

	session := middleware.NewSessionMiddleware(deps.Sessions)
	optionalSession := middleware.NewOptionalSessionMiddleware(deps.Sessions)
	sliding := deps.MutationLimiter.Middleware(recorder)
	public := publicLimiter(deps.PublicPerMinute, recorder)

	// --- 認証不要のルート ---
	r.Get("/health", healthHandler(deps.DB))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(deps.LoginLimiter.Middleware(recorder))
			r.Post("/login", authHandler.Login)
			r.Post("/admin-login", authHandler.AdminLogin)
		})
		r.With(session).Get("/verify", authHandler.Verify)
	})

	r.With(public).Get("/api/posts", postHandler.ListPosts)
	r.With(public).Get("/api/contact-info", contactHandler.ListPublic)

	r.Route("/api/posts/{id}", func(r chi.Router) {
		// 公開ルート: 管理者トークンがあれば非公開記事も見える
		r.Group(func(r chi.Router) {
			r.Use(public, optionalSession)
			r.Get("/", postHandler.GetPost)
			r.Get("/comments", postHandler.ListComments)
		})

		r.Group(func(r chi.Router) {
			r.Use(session)
			r.Get("/like-status", postHandler.LikeStatus)
			r.Get("/save-status", postHandler.SaveStatus)

			r.With(sliding).Post("/like", postHandler.ToggleLike)
			r.With(sliding).Post("/save", postHandler.ToggleSave)
			r.With(sliding).Post("/comments", postHandler.CreateComment)
		})
	})

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(session)

		r.Route("/api/comments/{id}", func(r chi.Router) {
			r.Use(sliding)
			r.Put("/", commentHandler.UpdateComment)
			r.Delete("/", commentHandler.DeleteComment)
		})

		r.Route("/api/users/me", func(r chi.Router) {
			r.Get("/", userHandler.GetMe)
			r.With(sliding).Put("/", userHandler.UpdateMe)
			r.Get("/liked-posts", userHandler.ListLikedPosts)
			r.Get("/saved-posts", userHandler.ListSavedPosts)
			r.Get("/comments", userHandler.ListComments)
		})

		// 管理者専用
		r.Route("/api/admin/posts", func(r chi.Router) {
			r.Use(middleware.NewAdminGate(), sliding)
			r.Post("/", adminHandler.CreatePost)
			r.Put("/{id}", adminHandler.UpdatePost)
			r.Patch("/{id}/status", adminHandler.UpdatePostStatus)
			r.Delete("/{id}", adminHandler.DeletePost)
		})
		r.Route("/api/admin/contact-info", func(r chi.Router) {
			r.Use(middleware.NewAdminGate())
			r.Get("/", contactHandler.ListAll)
			r.With(sliding).Post("/", contactHandler.Create)
			r.With(sliding).Put("/{id}", contactHandler.Update)
			r.With(sliding).Delete("/{id}", contactHandler.Delete)
		})
	})

	return r
}

// publicLimiter は公開GETルート用のIP単位レート制限を返す。
func publicLimiter(perMinute int, recorder middleware.RateLimitRecorder) func(http.Handler) http.Handler {
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			slog.Warn("rate limit exceeded",
				slog.String("limiter", "public"),
				slog.String("client", middleware.ClientIP(r)),
				slog.String("path", r.URL.Path),
			)
			if recorder != nil {
				recorder.RecordRateLimited("public")
			}
			if w.Header().Get("Retry-After") == "" {
				w.Header().Set("Retry-After", "60")
			}
			middleware.WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitedError())
		}),
	)
}

// healthHandler はDBへの疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
