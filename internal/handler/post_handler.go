package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/folio/blogapi/internal/engagement"
	"github.com/folio/blogapi/internal/middleware"
	"github.com/folio/blogapi/internal/model"
)

// PostViewer は記事閲覧に必要なサービスインターフェース。
type PostViewer interface {
	View(ctx context.Context, id string, isAdmin bool) (*model.Post, error)
	ListPublished(ctx context.Context, filter model.PostFilter) ([]model.Post, error)
}

// EngagementServiceInterface はいいね・保存・コメントのサービスインターフェース。
type EngagementServiceInterface interface {
	ToggleLike(ctx context.Context, actor engagement.Actor, postID string) (*engagement.ToggleResult, error)
	ToggleSave(ctx context.Context, actor engagement.Actor, postID string) (*engagement.ToggleResult, error)
	HasLiked(ctx context.Context, postID, userID string) (bool, error)
	HasSaved(ctx context.Context, postID, userID string) (bool, error)
	ListLikedPosts(ctx context.Context, userID string) ([]model.InteractedPost, error)
	ListSavedPosts(ctx context.Context, userID string) ([]model.InteractedPost, error)

	CreateComment(ctx context.Context, actor engagement.Actor, postID, text string, parentID *string) (*model.Comment, error)
	UpdateComment(ctx context.Context, actor engagement.Actor, commentID, text string) (*model.Comment, error)
	DeleteComment(ctx context.Context, actor engagement.Actor, commentID string) error
	ListComments(ctx context.Context, actor engagement.Actor, postID string) ([]model.CommentView, error)
	ListUserComments(ctx context.Context, userID string) ([]model.UserCommentView, error)
}

// PostHandler は記事単位のエンゲージメントAPIのHTTPハンドラー。
type PostHandler struct {
	posts  PostViewer
	ledger EngagementServiceInterface
	users  UserResolver
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(posts PostViewer, ledger EngagementServiceInterface, users UserResolver) *PostHandler {
	return &PostHandler{
		posts:  posts,
		ledger: ledger,
		users:  users,
	}
}

// --- レスポンス型 ---

type likeResponse struct {
	Liked      bool `json:"liked"`
	LikesCount *int `json:"likes_count,omitempty"`
}

type saveResponse struct {
	Saved      bool `json:"saved"`
	SavesCount *int `json:"saves_count,omitempty"`
}

type createCommentRequest struct {
	Text            string  `json:"text"`
	ParentCommentID *string `json:"parent_comment_id,omitempty"`
}

type createdResponse struct {
	ID string `json:"id"`
}

// ListPosts は公開中の記事を新しい順に返す。
// GET /api/posts?category=&featured=&limit=&offset=
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	filter, ok := parsePostFilter(w, r)
	if !ok {
		return
	}

	posts, err := h.posts.ListPublished(r.Context(), filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if posts == nil {
		posts = []model.Post{}
	}
	writeJSON(w, http.StatusOK, posts)
}

// parsePostFilter はクエリパラメータを解析する。不正な値ならINVALID_REQUESTを書き込む。
func parsePostFilter(w http.ResponseWriter, r *http.Request) (model.PostFilter, bool) {
	q := r.URL.Query()
	filter := model.PostFilter{Category: q.Get("category")}

	if v := q.Get("featured"); v != "" {
		featured, err := strconv.ParseBool(v)
		if err != nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("featuredはtrueまたはfalseで指定してください"))
			return filter, false
		}
		filter.Featured = &featured
	}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &filter.Limit}, {"offset", &filter.Offset}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(p.name+"は整数で指定してください"))
			return filter, false
		}
		*p.dst = n
	}
	return filter, true
}

// GetPost は記事を返し、閲覧数を1増やす。
// GET /api/posts/{id}
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")
	actor := optionalActor(r)

	post, err := h.posts.View(r.Context(), postID, actor.IsAdmin)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// ToggleLike はいいねを切り替える。
// POST /api/posts/{id}/like
func (h *PostHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := resolveActor(w, r, h.users)
	if !ok {
		return
	}

	result, err := h.ledger.ToggleLike(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, likeResponse{Liked: result.Active, LikesCount: &result.Count})
}

// ToggleSave は保存を切り替える。
// POST /api/posts/{id}/save
func (h *PostHandler) ToggleSave(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := resolveActor(w, r, h.users)
	if !ok {
		return
	}

	result, err := h.ledger.ToggleSave(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saveResponse{Saved: result.Active, SavesCount: &result.Count})
}

// LikeStatus はいいね済みかを返す。ユーザーが未登録の場合はfalse。
// GET /api/posts/{id}/like-status
func (h *PostHandler) LikeStatus(w http.ResponseWriter, r *http.Request) {
	liked, ok := h.status(w, r, h.ledger.HasLiked)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, likeResponse{Liked: liked})
}

// SaveStatus は保存済みかを返す。ユーザーが未登録の場合はfalse。
// GET /api/posts/{id}/save-status
func (h *PostHandler) SaveStatus(w http.ResponseWriter, r *http.Request) {
	saved, ok := h.status(w, r, h.ledger.HasSaved)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, saveResponse{Saved: saved})
}

func (h *PostHandler) status(
	w http.ResponseWriter,
	r *http.Request,
	has func(ctx context.Context, postID, userID string) (bool, error),
) (bool, bool) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return false, false
	}
	user, err := h.users.Lookup(r.Context(), claims.SubjectID)
	if err != nil {
		handleServiceError(w, err)
		return false, false
	}
	if user == nil {
		return false, true
	}

	active, err := has(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return false, false
	}
	return active, true
}

// ListComments は記事のコメント一覧（削除済みを除く、古い順）を返す。
// GET /api/posts/{id}/comments
func (h *PostHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.ledger.ListComments(r.Context(), optionalActor(r), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if comments == nil {
		comments = []model.CommentView{}
	}
	writeJSON(w, http.StatusOK, comments)
}

// CreateComment はコメントを投稿する。
// POST /api/posts/{id}/comments
func (h *PostHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := resolveActor(w, r, h.users)
	if !ok {
		return
	}

	var req createCommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	comment, err := h.ledger.CreateComment(r.Context(), actor, chi.URLParam(r, "id"), req.Text, req.ParentCommentID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: comment.ID})
}
