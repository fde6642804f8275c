package auth

import "github.com/folio/blogapi/internal/model"

// SessionVerifier はセッショントークンの検証インターフェース。
type SessionVerifier interface {
	Verify(token string) (*SessionClaims, error)
}

// RequireAdmin はトークンを検証し、is_adminクレームが真でなければFORBIDDENを返す。
//
// is_adminは発行時点のスナップショットであり、ホワイトリストから外しても
// 発行済みトークンの有効期限までは管理者として扱われる。
func RequireAdmin(verifier SessionVerifier, token string) (*SessionClaims, error) {
	claims, err := verifier.Verify(token)
	if err != nil {
		return nil, err
	}
	if err := CheckAdmin(claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// CheckAdmin は検証済みクレームが管理者かを判定する。
func CheckAdmin(claims *SessionClaims) error {
	if claims == nil || !claims.IsAdmin {
		return model.NewForbiddenError("管理者権限が必要です")
	}
	return nil
}

// compile-time interface check
var _ SessionVerifier = (*TokenIssuer)(nil)
