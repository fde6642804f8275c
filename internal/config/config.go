// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/folio/blogapi/internal/logger"
)

// 外部IdPの種類
const (
	ProviderGoogle   = "google"
	ProviderFirebase = "firebase"
	ProviderDev      = "dev"
)

const (
	envProduction  = "production"
	minSecretBytes = 16
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	AppEnv     string `env:"APP_ENV,default=development"`
	ServerPort string `env:"SERVER_PORT,default=8080"`
	LogLevel   string `env:"LOG_LEVEL,default=info"`

	// Database
	DatabaseDriver string `env:"DATABASE_DRIVER,default=postgres"`
	DatabaseURL    string `env:"DATABASE_URL,required"`
	// DatabaseConnectAttempts は起動時の接続確認の最大試行回数。
	DatabaseConnectAttempts int `env:"DATABASE_CONNECT_ATTEMPTS,default=10"`
	// CounterReconcileInterval はいいね数・保存数の整合ジョブの実行間隔。0で無効。
	CounterReconcileInterval time.Duration `env:"COUNTER_RECONCILE_INTERVAL,default=1h"`

	// Session token
	JWTSecret              string `env:"JWT_SECRET,required"`
	JWTAlgorithm           string `env:"JWT_ALGORITHM,default=HS256"`
	AccessTokenExpireHours int    `env:"ACCESS_TOKEN_EXPIRE_HOURS,default=24"`

	// Admin
	AdminEmails            []string `env:"AUTHORIZED_ADMIN_EMAILS"`
	AdminReevaluateOnLogin bool     `env:"ADMIN_REEVALUATE_ON_LOGIN,default=false"`

	// Identity provider
	IdentityProvider        string        `env:"IDENTITY_PROVIDER,default=google"`
	GoogleClientID          string        `env:"GOOGLE_CLIENT_ID"`
	GoogleJWKSURL           string        `env:"GOOGLE_JWKS_URL,default=https://www.googleapis.com/oauth2/v3/certs"`
	FirebaseProjectID       string        `env:"FIREBASE_PROJECT_ID"`
	FirebaseCredentialsFile string        `env:"FIREBASE_CREDENTIALS_FILE"`
	IdentityVerifyTimeout   time.Duration `env:"IDENTITY_VERIFY_TIMEOUT,default=10s"`

	// Rate limit
	RateLimitPerMinute       int `env:"RATE_LIMIT_PER_MINUTE,default=60"`
	RateLimitLoginPerMinute  int `env:"RATE_LIMIT_LOGIN_PER_MINUTE,default=10"`
	RateLimitPublicPerMinute int `env:"RATE_LIMIT_PUBLIC_PER_MINUTE,default=120"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:3000"`

	// Proxy
	// TrustForwardedHeaders はX-Forwarded-For等からクライアントIPを取るか。信頼できるプロキシの背後でのみ有効にする。
	TrustForwardedHeaders bool `env:"TRUST_FORWARDED_HEADERS,default=false"`
}

// Load は.envファイル（存在する場合）と環境変数からConfigを読み込み、検証する。
// 既に設定されている環境変数は.envの値で上書きしない。
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{}
	if err := envconfig.Process(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}
	cfg.AdminEmails = trimAll(cfg.AdminEmails)
	cfg.CORSAllowedOrigins = trimAll(cfg.CORSAllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は項目間の整合性を検証する。
func (c *Config) Validate() error {
	var problems []string

	if c.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL is required")
	}
	switch c.DatabaseDriver {
	case "postgres", "sqlite3":
	default:
		problems = append(problems, fmt.Sprintf("DATABASE_DRIVER must be postgres or sqlite3, got %q", c.DatabaseDriver))
	}

	if c.DatabaseConnectAttempts <= 0 {
		problems = append(problems, "DATABASE_CONNECT_ATTEMPTS must be positive")
	}
	if c.CounterReconcileInterval < 0 {
		problems = append(problems, "COUNTER_RECONCILE_INTERVAL must not be negative")
	}

	if len(c.JWTSecret) < minSecretBytes {
		problems = append(problems, fmt.Sprintf("JWT_SECRET must be at least %d bytes", minSecretBytes))
	}
	switch c.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		problems = append(problems, fmt.Sprintf("JWT_ALGORITHM must be HS256, HS384 or HS512, got %q", c.JWTAlgorithm))
	}
	if c.AccessTokenExpireHours <= 0 {
		problems = append(problems, "ACCESS_TOKEN_EXPIRE_HOURS must be positive")
	}

	switch c.IdentityProvider {
	case ProviderGoogle:
		if c.GoogleClientID == "" {
			problems = append(problems, "GOOGLE_CLIENT_ID is required when IDENTITY_PROVIDER=google")
		}
	case ProviderFirebase:
		if c.FirebaseProjectID == "" {
			problems = append(problems, "FIREBASE_PROJECT_ID is required when IDENTITY_PROVIDER=firebase")
		}
	case ProviderDev:
		if c.IsProduction() {
			problems = append(problems, "IDENTITY_PROVIDER=dev is not allowed when APP_ENV=production")
		}
	default:
		problems = append(problems, fmt.Sprintf("IDENTITY_PROVIDER must be google, firebase or dev, got %q", c.IdentityProvider))
	}
	if c.IdentityVerifyTimeout <= 0 {
		problems = append(problems, "IDENTITY_VERIFY_TIMEOUT must be positive")
	}

	if c.RateLimitPerMinute <= 0 || c.RateLimitLoginPerMinute <= 0 || c.RateLimitPublicPerMinute <= 0 {
		problems = append(problems, "rate limits must be positive")
	}

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// IsProduction は本番環境かを返す。
func (c *Config) IsProduction() bool {
	return c.AppEnv == envProduction
}

// TokenTTL はセッショントークンの有効期間を返す。
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireHours) * time.Hour
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
