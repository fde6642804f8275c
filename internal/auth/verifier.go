// Package auth は外部IDトークンの検証、セッショントークンの発行・検証、管理者認可を提供する。
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/folio/blogapi/internal/model"
)

// Verifier は外部IdPが発行したIDトークンを検証し、本人情報を取り出す。
// 失敗理由（署名不正、audience不一致、期限切れ等）は区別せず、
// すべてINVALID_IDENTITY_TOKENとして返す。
type Verifier interface {
	Verify(ctx context.Context, token string) (*model.IdentityInfo, error)
}

// VerifierFunc は関数をVerifierとして扱うためのアダプタ。
type VerifierFunc func(ctx context.Context, token string) (*model.IdentityInfo, error)

// Verify はVerifierを実装する。
func (f VerifierFunc) Verify(ctx context.Context, token string) (*model.IdentityInfo, error) {
	return f(ctx, token)
}

// timeoutVerifier は検証に上限時間を設けるVerifier。
type timeoutVerifier struct {
	next    Verifier
	timeout time.Duration
}

// WithTimeout は検証をtimeoutで打ち切るVerifierを返す。
// 下位のVerifierがコンテキストを無視してブロックしても、呼び出し側はtimeout後に戻る。
// タイムアウトを含むすべての失敗はINVALID_IDENTITY_TOKENになる。
func WithTimeout(next Verifier, timeout time.Duration) Verifier {
	return &timeoutVerifier{next: next, timeout: timeout}
}

type verifyResult struct {
	info *model.IdentityInfo
	err  error
}

// Verify はVerifierを実装する。
func (v *timeoutVerifier) Verify(ctx context.Context, token string) (*model.IdentityInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	ch := make(chan verifyResult, 1)
	go func() {
		info, err := v.next.Verify(ctx, token)
		ch <- verifyResult{info: info, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, model.NewInvalidIdentityTokenError(fmt.Errorf("identity verification aborted: %w", ctx.Err()))
	case r := <-ch:
		if r.err != nil {
			if model.IsCode(r.err, model.ErrCodeInvalidIdentityToken) {
				return nil, r.err
			}
			return nil, model.NewInvalidIdentityTokenError(r.err)
		}
		if err := validateIdentity(r.info); err != nil {
			return nil, model.NewInvalidIdentityTokenError(err)
		}
		return r.info, nil
	}
}

// validateIdentity は本人情報に必須項目が揃っているかを検証する。
func validateIdentity(info *model.IdentityInfo) error {
	if info == nil {
		return errors.New("empty identity")
	}
	if info.SubjectID == "" {
		return errors.New("missing subject id")
	}
	if info.Email == "" {
		return errors.New("missing email")
	}
	return nil
}

// DevVerifier は開発環境向けに、署名検証なしで本人情報のJSONを受け入れるVerifier。
// 本番設定では生成できない（config.Validateで拒否される）。
type DevVerifier struct{}

// devPayload は開発用トークンのJSON形式。
type devPayload struct {
	UID     string `json:"uid"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// NewDevVerifier はDevVerifierを生成する。
func NewDevVerifier() *DevVerifier {
	return &DevVerifier{}
}

// Verify はトークンを本人情報のJSONとして解釈する。
func (v *DevVerifier) Verify(_ context.Context, token string) (*model.IdentityInfo, error) {
	var p devPayload
	if err := json.NewDecoder(strings.NewReader(token)).Decode(&p); err != nil {
		return nil, model.NewInvalidIdentityTokenError(fmt.Errorf("malformed dev identity payload: %w", err))
	}
	info := &model.IdentityInfo{
		SubjectID:   p.UID,
		Email:       p.Email,
		DisplayName: p.Name,
		AvatarURL:   p.Picture,
	}
	if err := validateIdentity(info); err != nil {
		return nil, model.NewInvalidIdentityTokenError(err)
	}
	return info, nil
}

// compile-time interface check
var (
	_ Verifier = (*DevVerifier)(nil)
	_ Verifier = (*timeoutVerifier)(nil)
	_ Verifier = VerifierFunc(nil)
)
