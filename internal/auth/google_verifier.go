package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MicahParks/keyfunc"
	jwtv4 "github.com/golang-jwt/jwt/v4"

	"github.com/folio/blogapi/internal/model"
)

// DefaultGoogleJWKSURL はGoogleのIDトークン署名鍵の公開エンドポイント。
const DefaultGoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

// googleIssuers はGoogle IDトークンのiss値として許可する値。
var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

// GoogleVerifierConfig はGoogle IDトークン検証の設定。
type GoogleVerifierConfig struct {
	ClientID string
	JWKSURL  string

	// HTTPClient はJWKS取得に使用するクライアント。nilの場合はhttp.DefaultClient。
	HTTPClient      *http.Client
	RefreshInterval time.Duration
	RefreshTimeout  time.Duration
}

// GoogleVerifier はGoogleが発行したIDトークン（RS256 JWT）を検証する。
// 署名鍵はJWKSから取得し、バックグラウンドで定期更新する。未知のkidを受けた場合も再取得する。
type GoogleVerifier struct {
	jwks     *keyfunc.JWKS
	clientID string
}

// googleClaims はGoogle IDトークンのクレーム。
type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	jwtv4.RegisteredClaims
}

// NewGoogleVerifier はJWKSを取得してGoogleVerifierを生成する。
func NewGoogleVerifier(cfg GoogleVerifierConfig) (*GoogleVerifier, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("google client id is required")
	}
	if cfg.JWKSURL == "" {
		cfg.JWKSURL = DefaultGoogleJWKSURL
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = time.Hour
	}
	if cfg.RefreshTimeout == 0 {
		cfg.RefreshTimeout = 10 * time.Second
	}

	jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
		Client:            cfg.HTTPClient,
		RefreshInterval:   cfg.RefreshInterval,
		RefreshTimeout:    cfg.RefreshTimeout,
		RefreshRateLimit:  time.Minute,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			slog.Warn("failed to refresh google jwks", slog.String("error", err.Error()))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch google jwks: %w", err)
	}

	return &GoogleVerifier{jwks: jwks, clientID: cfg.ClientID}, nil
}

// Verify はIDトークンの署名、audience、issuer、有効期限を検証する。
func (v *GoogleVerifier) Verify(_ context.Context, token string) (*model.IdentityInfo, error) {
	claims := &googleClaims{}
	parsed, err := jwtv4.ParseWithClaims(token, claims, v.jwks.Keyfunc,
		jwtv4.WithValidMethods([]string{"RS256"}),
	)
	if err != nil {
		return nil, model.NewInvalidIdentityTokenError(err)
	}
	if !parsed.Valid {
		return nil, model.NewInvalidIdentityTokenError(errors.New("token is not valid"))
	}
	if !claims.VerifyAudience(v.clientID, true) {
		return nil, model.NewInvalidIdentityTokenError(errors.New("audience mismatch"))
	}
	if !validGoogleIssuer(claims) {
		return nil, model.NewInvalidIdentityTokenError(fmt.Errorf("unexpected issuer: %q", claims.Issuer))
	}

	info := &model.IdentityInfo{
		SubjectID:   claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
		AvatarURL:   claims.Picture,
	}
	if err := validateIdentity(info); err != nil {
		return nil, model.NewInvalidIdentityTokenError(err)
	}
	return info, nil
}

// Close はJWKSのバックグラウンド更新を停止する。
func (v *GoogleVerifier) Close() {
	v.jwks.EndBackground()
}

func validGoogleIssuer(claims *googleClaims) bool {
	for _, iss := range googleIssuers {
		if claims.VerifyIssuer(iss, true) {
			return true
		}
	}
	return false
}

// compile-time interface check
var _ Verifier = (*GoogleVerifier)(nil)
