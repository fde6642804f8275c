// Package engagement は記事に対するいいね・保存・コメントを管理する。
//
// いいね・保存はトグル操作で、行の追加・削除と記事のカウンタ更新を同一トランザクションで行う。
// コメントは返信ツリーを構成し、削除は論理削除のみ。
package engagement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/folio/blogapi/internal/model"
	"github.com/folio/blogapi/internal/repository"
	"github.com/folio/blogapi/internal/security"
)

// Actor は操作を行う認証済みユーザー。
// ゼロ値は未認証の閲覧者を表す。
type Actor struct {
	UserID  string
	IsAdmin bool
}

// Recorder はエンゲージメント操作のメトリクス記録インターフェース。
type Recorder interface {
	RecordToggle(kind model.InteractionKind, active bool)
	RecordCommentOp(op string)
}

// ToggleResult はトグル後の状態。
type ToggleResult struct {
	Active bool // true = いいね（保存）済み
	Count  int  // 更新後のカウンタ値
}

// Ledger はエンゲージメント操作のサービス層。
type Ledger struct {
	posts        repository.PostRepository
	interactions repository.InteractionRepository
	comments     repository.CommentRepository
	sanitizer    security.Sanitizer
	metrics      Recorder
	now          func() time.Time
}

// NewLedger はLedgerを生成する。metricsはnilでもよい。
func NewLedger(
	posts repository.PostRepository,
	interactions repository.InteractionRepository,
	comments repository.CommentRepository,
	sanitizer security.Sanitizer,
	metrics Recorder,
) *Ledger {
	return &Ledger{
		posts:        posts,
		interactions: interactions,
		comments:     comments,
		sanitizer:    sanitizer,
		metrics:      metrics,
		now:          time.Now,
	}
}

// WithClock はテスト用に時刻関数を差し替える。
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// ToggleLike はいいねをトグルする。
func (l *Ledger) ToggleLike(ctx context.Context, actor Actor, postID string) (*ToggleResult, error) {
	return l.toggle(ctx, model.InteractionLike, actor, postID)
}

// ToggleSave は保存をトグルする。
func (l *Ledger) ToggleSave(ctx context.Context, actor Actor, postID string) (*ToggleResult, error) {
	return l.toggle(ctx, model.InteractionSave, actor, postID)
}

func (l *Ledger) toggle(ctx context.Context, kind model.InteractionKind, actor Actor, postID string) (*ToggleResult, error) {
	if _, err := l.visiblePost(ctx, actor, postID); err != nil {
		return nil, err
	}

	active, count, err := l.interactions.Toggle(ctx, kind, postID, actor.UserID, l.clock())
	if err != nil {
		return nil, l.storageError("toggle "+string(kind), err)
	}

	if l.metrics != nil {
		l.metrics.RecordToggle(kind, active)
	}
	slog.Debug("interaction toggled",
		slog.String("kind", string(kind)),
		slog.String("post_id", postID),
		slog.String("user_id", actor.UserID),
		slog.Bool("active", active),
	)
	return &ToggleResult{Active: active, Count: count}, nil
}

// HasLiked はユーザーが記事にいいねしているかを返す。
func (l *Ledger) HasLiked(ctx context.Context, postID, userID string) (bool, error) {
	return l.exists(ctx, model.InteractionLike, postID, userID)
}

// HasSaved はユーザーが記事を保存しているかを返す。
func (l *Ledger) HasSaved(ctx context.Context, postID, userID string) (bool, error) {
	return l.exists(ctx, model.InteractionSave, postID, userID)
}

// exists は存在確認のみを行い、ストレージ障害以外では失敗しない。
func (l *Ledger) exists(ctx context.Context, kind model.InteractionKind, postID, userID string) (bool, error) {
	if !validID(postID) || !validID(userID) {
		return false, nil
	}
	ok, err := l.interactions.Exists(ctx, kind, postID, userID)
	if err != nil {
		return false, l.storageError("check "+string(kind), err)
	}
	return ok, nil
}

// ListLikedPosts はユーザーがいいねした公開記事を新しい順に返す。
func (l *Ledger) ListLikedPosts(ctx context.Context, userID string) ([]model.InteractedPost, error) {
	return l.listInteracted(ctx, model.InteractionLike, userID)
}

// ListSavedPosts はユーザーが保存した公開記事を新しい順に返す。
func (l *Ledger) ListSavedPosts(ctx context.Context, userID string) ([]model.InteractedPost, error) {
	return l.listInteracted(ctx, model.InteractionSave, userID)
}

func (l *Ledger) listInteracted(ctx context.Context, kind model.InteractionKind, userID string) ([]model.InteractedPost, error) {
	if !validID(userID) {
		return []model.InteractedPost{}, nil
	}
	posts, err := l.posts.ListInteractedByUser(ctx, kind, userID)
	if err != nil {
		return nil, l.storageError("list "+string(kind)+"d posts", err)
	}
	return posts, nil
}

// visiblePost はactorから参照可能な記事を返す。
// 管理者以外には公開中の記事のみが見え、それ以外はPOST_NOT_FOUNDになる。
func (l *Ledger) visiblePost(ctx context.Context, actor Actor, postID string) (*model.Post, error) {
	if !validID(postID) {
		return nil, model.NewPostNotFoundError(postID)
	}
	post, err := l.posts.FindByID(ctx, postID)
	if err != nil {
		return nil, l.storageError("find post", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(postID)
	}
	if post.Status != model.PostStatusPublished && !actor.IsAdmin {
		return nil, model.NewPostNotFoundError(postID)
	}
	return post, nil
}

// storageError はストレージ障害を詳細付きでログに記録し、STORAGE_ERRORに変換する。
func (l *Ledger) storageError(op string, err error) error {
	slog.Error("engagement storage failure",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	return model.NewStorageError(fmt.Errorf("%s: %w", op, err))
}

// clock はDBの精度に揃えたUTCの現在時刻を返す。
func (l *Ledger) clock() time.Time {
	return l.now().UTC().Truncate(time.Microsecond)
}

// validID はUUID形式のIDかを返す。
// 不正なIDをPostgreSQLのUUID列に渡すと型エラーになるため、事前に弾く。
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
