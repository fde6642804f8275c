package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/folio/blogapi/internal/model"
)

// UserProvisioner はログイン時のユーザー解決に必要なインターフェース。
// user.Directoryが実装する。
type UserProvisioner interface {
	GetOrCreate(ctx context.Context, info model.IdentityInfo) (*model.User, error)
	IsWhitelisted(email string) bool
}

// LoginRecorder はログイン関連のメトリクス記録インターフェース。
type LoginRecorder interface {
	RecordLogin(result string)
	ObserveIdentityVerification(d time.Duration)
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	AccessToken string
	ExpiresAt   time.Time
	ExpiresIn   int64 // 秒
	IsAdmin     bool
	User        *model.User
}

// Service はログイン（外部IDトークン → ローカルユーザー → セッショントークン）を提供する。
type Service struct {
	verifier Verifier
	users    UserProvisioner
	tokens   *TokenIssuer
	metrics  LoginRecorder
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(verifier Verifier, users UserProvisioner, tokens *TokenIssuer, metrics LoginRecorder) *Service {
	return &Service{
		verifier: verifier,
		users:    users,
		tokens:   tokens,
		metrics:  metrics,
	}
}

// Login は外部IDトークンを検証し、ユーザーを解決してセッショントークンを発行する。
// トークンのis_adminはログイン時点のホワイトリスト判定で決まる。
func (s *Service) Login(ctx context.Context, identityToken string) (*LoginResult, error) {
	return s.login(ctx, identityToken, false)
}

// AdminLogin はLoginと同じだが、ホワイトリストに含まれないメールアドレスの場合は
// ユーザーを作成せずにFORBIDDENを返す。
func (s *Service) AdminLogin(ctx context.Context, identityToken string) (*LoginResult, error) {
	return s.login(ctx, identityToken, true)
}

// VerifySession はセッショントークンを検証する。
func (s *Service) VerifySession(token string) (*SessionClaims, error) {
	return s.tokens.Verify(token)
}

func (s *Service) login(ctx context.Context, identityToken string, adminOnly bool) (*LoginResult, error) {
	start := time.Now()
	info, err := s.verifier.Verify(ctx, identityToken)
	s.observeVerification(time.Since(start))
	if err != nil {
		s.recordLogin("invalid_identity")
		slog.Warn("identity verification failed", slog.String("error", err.Error()))
		if model.IsCode(err, model.ErrCodeInvalidIdentityToken) {
			return nil, err
		}
		return nil, model.NewInvalidIdentityTokenError(err)
	}

	isAdmin := s.users.IsWhitelisted(info.Email)
	if adminOnly && !isAdmin {
		s.recordLogin("forbidden")
		slog.Warn("admin login rejected", slog.String("subject_id", info.SubjectID))
		return nil, model.NewForbiddenError("管理者として登録されていません")
	}

	user, err := s.users.GetOrCreate(ctx, *info)
	if err != nil {
		s.recordLogin("error")
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	token, claims, err := s.tokens.Issue(user.Email, user.SubjectID, isAdmin)
	if err != nil {
		s.recordLogin("error")
		return nil, err
	}

	s.recordLogin("success")
	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.Bool("is_admin", isAdmin),
	)

	return &LoginResult{
		AccessToken: token,
		ExpiresAt:   claims.ExpiresAt.Time,
		ExpiresIn:   int64(s.tokens.TTL() / time.Second),
		IsAdmin:     isAdmin,
		User:        user,
	}, nil
}

func (s *Service) recordLogin(result string) {
	if s.metrics != nil {
		s.metrics.RecordLogin(result)
	}
}

func (s *Service) observeVerification(d time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveIdentityVerification(d)
	}
}
