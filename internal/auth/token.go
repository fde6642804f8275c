package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/folio/blogapi/internal/model"
)

// SessionClaims はセッショントークンに含めるクレーム。
// サーバー側には保存せず、署名付きの自己完結したトークンとして扱う。
type SessionClaims struct {
	Email     string `json:"email"`
	SubjectID string `json:"uid"`
	IsAdmin   bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// TokenConfig はセッショントークンの設定。
type TokenConfig struct {
	Secret    []byte
	Algorithm string        // HS256, HS384, HS512
	TTL       time.Duration // 有効期間
}

// TokenIssuer はセッショントークンを発行・検証する。
// 失効リストは持たないため、発行済みトークンは有効期限まで有効。
type TokenIssuer struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer はTokenIssuerを生成する。HMAC系以外のアルゴリズムはエラーにする。
func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("token ttl must be positive: %s", cfg.TTL)
	}
	method, ok := jwt.GetSigningMethod(cfg.Algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported token algorithm: %q", cfg.Algorithm)
	}

	return &TokenIssuer{
		secret: cfg.Secret,
		method: method,
		ttl:    cfg.TTL,
		now:    time.Now,
	}, nil
}

// WithClock はテスト用に時刻関数を差し替えたTokenIssuerを返す。
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	c := *t
	c.now = now
	return &c
}

// TTL はトークンの有効期間を返す。
func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// Issue はセッショントークンを発行する。
// 有効期限は発行時刻 + TTL。同じ入力と同じ時刻に対しては同じトークンを返す。
func (t *TokenIssuer) Issue(email, subjectID string, isAdmin bool) (string, *SessionClaims, error) {
	now := t.now()
	claims := &SessionClaims{
		Email:     email,
		SubjectID: subjectID,
		IsAdmin:   isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(t.method, claims).SignedString(t.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, claims, nil
}

// Verify はセッショントークンを検証してクレームを返す。
// 期限切れ（現在時刻 >= exp）はTOKEN_EXPIRED、それ以外の不正はTOKEN_INVALIDを返す。
func (t *TokenIssuer) Verify(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{t.method.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, model.NewTokenExpiredError()
		}
		return nil, model.NewTokenInvalidError(err)
	}

	if claims.Email == "" || claims.SubjectID == "" || claims.Subject != claims.SubjectID {
		return nil, model.NewTokenInvalidError(errors.New("malformed session claims"))
	}
	return claims, nil
}
