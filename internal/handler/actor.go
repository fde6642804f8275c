package handler

import (
	"context"
	"net/http"

	"github.com/folio/blogapi/internal/auth"
	"github.com/folio/blogapi/internal/engagement"
	"github.com/folio/blogapi/internal/middleware"
	"github.com/folio/blogapi/internal/model"
)

// UserResolver はセッションのsubject IDをローカルユーザーに解決するインターフェース。
type UserResolver interface {
	// Lookup は未登録の場合nilを返す。
	Lookup(ctx context.Context, subjectID string) (*model.User, error)
	// Resolve は未登録の場合USER_NOT_FOUNDを返す。
	Resolve(ctx context.Context, subjectID string) (*model.User, error)
}

// requireClaims はセッションクレームを取得する。なければ401を書き込む。
func requireClaims(w http.ResponseWriter, r *http.Request) (*auth.SessionClaims, bool) {
	claims, err := middleware.ClaimsFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return nil, false
	}
	return claims, true
}

// resolveActor はセッションのユーザーを解決してActorを組み立てる。
// 失敗した場合はエラーレスポンスを書き込み、falseを返す。
func resolveActor(w http.ResponseWriter, r *http.Request, users UserResolver) (engagement.Actor, *model.User, bool) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return engagement.Actor{}, nil, false
	}
	user, err := users.Resolve(r.Context(), claims.SubjectID)
	if err != nil {
		handleServiceError(w, err)
		return engagement.Actor{}, nil, false
	}
	return engagement.Actor{UserID: user.ID, IsAdmin: claims.IsAdmin}, user, true
}

// optionalActor は公開ルート用のActorを返す。未認証ならゼロ値（匿名）。
func optionalActor(r *http.Request) engagement.Actor {
	claims, err := middleware.ClaimsFromContext(r.Context())
	if err != nil {
		return engagement.Actor{}
	}
	return engagement.Actor{IsAdmin: claims.IsAdmin}
}
