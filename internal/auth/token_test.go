package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio/blogapi/internal/model"
)

var issuedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestIssuer(t *testing.T, at time.Time) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(TokenConfig{
		Secret:    []byte("0123456789abcdef0123456789abcdef"),
		Algorithm: "HS256",
		TTL:       24 * time.Hour,
	})
	require.NoError(t, err)
	return issuer.WithClock(func() time.Time { return at })
}

func TestNewTokenIssuer_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  TokenConfig
	}{
		{"秘密鍵なし", TokenConfig{Algorithm: "HS256", TTL: time.Hour}},
		{"TTLがゼロ", TokenConfig{Secret: []byte("secret"), Algorithm: "HS256"}},
		{"RSAアルゴリズム", TokenConfig{Secret: []byte("secret"), Algorithm: "RS256", TTL: time.Hour}},
		{"none", TokenConfig{Secret: []byte("secret"), Algorithm: "none", TTL: time.Hour}},
		{"未知のアルゴリズム", TokenConfig{Secret: []byte("secret"), Algorithm: "XX999", TTL: time.Hour}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTokenIssuer(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestToken_RoundTrip(t *testing.T) {
	issuer := newTestIssuer(t, issuedAt)

	for _, isAdmin := range []bool{false, true} {
		token, issued, err := issuer.Issue("a@x.com", "u1", isAdmin)
		require.NoError(t, err)
		assert.True(t, issued.ExpiresAt.Time.Equal(issuedAt.Add(24*time.Hour)))

		claims, err := issuer.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", claims.Email)
		assert.Equal(t, "u1", claims.SubjectID)
		assert.Equal(t, "u1", claims.Subject)
		assert.Equal(t, isAdmin, claims.IsAdmin)
		assert.True(t, claims.IssuedAt.Time.Equal(issuedAt))
		assert.True(t, claims.ExpiresAt.Time.Equal(issuedAt.Add(24*time.Hour)))
	}
}

func TestToken_Expiry(t *testing.T) {
	token, _, err := newTestIssuer(t, issuedAt).Issue("a@x.com", "u1", false)
	require.NoError(t, err)

	_, err = newTestIssuer(t, issuedAt.Add(23*time.Hour+59*time.Minute)).Verify(token)
	assert.NoError(t, err)

	_, err = newTestIssuer(t, issuedAt.Add(24*time.Hour+1*time.Minute)).Verify(token)
	assert.True(t, model.IsCode(err, model.ErrCodeTokenExpired), "got %v", err)

	// 有効期限ちょうどは期限切れ
	_, err = newTestIssuer(t, issuedAt.Add(24*time.Hour)).Verify(token)
	assert.True(t, model.IsCode(err, model.ErrCodeTokenExpired), "got %v", err)
}

func TestToken_DeterministicForFixedClock(t *testing.T) {
	issuer := newTestIssuer(t, issuedAt)

	a, _, err := issuer.Issue("a@x.com", "u1", false)
	require.NoError(t, err)
	b, _, err := issuer.Issue("a@x.com", "u1", false)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestToken_Invalid(t *testing.T) {
	issuer := newTestIssuer(t, issuedAt)
	valid, _, err := issuer.Issue("a@x.com", "u1", false)
	require.NoError(t, err)

	otherKey, err := NewTokenIssuer(TokenConfig{Secret: []byte("another-secret-of-sufficient-len"), Algorithm: "HS256", TTL: time.Hour})
	require.NoError(t, err)
	foreign, _, err := otherKey.WithClock(func() time.Time { return issuedAt }).Issue("a@x.com", "u1", true)
	require.NoError(t, err)

	hs512, err := NewTokenIssuer(TokenConfig{Secret: []byte("0123456789abcdef0123456789abcdef"), Algorithm: "HS512", TTL: time.Hour})
	require.NoError(t, err)
	wrongAlg, _, err := hs512.WithClock(func() time.Time { return issuedAt }).Issue("a@x.com", "u1", false)
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &SessionClaims{
		Email:     "a@x.com",
		SubjectID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "u1",
		},
	}).SignedString([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	noEmail, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &SessionClaims{
		SubjectID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Hour)),
		},
	}).SignedString([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &SessionClaims{
		Email:     "a@x.com",
		SubjectID: "u1",
		IsAdmin:   true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"空文字列", ""},
		{"JWTでない", "not-a-token"},
		{"改ざん", valid[:len(valid)-2] + "xx"},
		{"別の鍵", foreign},
		{"別のアルゴリズム", wrongAlg},
		{"expなし", noExp},
		{"emailなし", noEmail},
		{"署名なし", unsigned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.Verify(tt.token)
			assert.True(t, model.IsCode(err, model.ErrCodeTokenInvalid), "got %v", err)
		})
	}
}
