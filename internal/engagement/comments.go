package engagement

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/folio/blogapi/internal/model"
)

// MaxCommentLength はコメント本文の最大文字数。
const MaxCommentLength = 5000

// コメント操作のメトリクスラベル
const (
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
)

// CreateComment は記事にコメントを作成する。
// parentIDを指定する場合は同じ記事のコメントでなければならない。
// 論理削除済みのコメントにも返信できる。
func (l *Ledger) CreateComment(ctx context.Context, actor Actor, postID, text string, parentID *string) (*model.Comment, error) {
	if _, err := l.visiblePost(ctx, actor, postID); err != nil {
		return nil, err
	}

	body, err := l.commentText(text)
	if err != nil {
		return nil, err
	}

	if parentID != nil && *parentID == "" {
		parentID = nil
	}
	if parentID != nil {
		if err := l.checkParent(ctx, postID, *parentID); err != nil {
			return nil, err
		}
	}

	at := l.clock()
	comment := &model.Comment{
		ID:              uuid.New().String(),
		PostID:          postID,
		UserID:          actor.UserID,
		ParentCommentID: parentID,
		Text:            body,
		CreatedAt:       at,
		UpdatedAt:       at,
	}
	if err := l.comments.Create(ctx, comment); err != nil {
		return nil, l.storageError("create comment", err)
	}

	l.recordCommentOp(opCreate)
	slog.Info("comment created",
		slog.String("comment_id", comment.ID),
		slog.String("post_id", postID),
		slog.String("user_id", actor.UserID),
	)
	return comment, nil
}

// checkParent は親コメントが存在し、同じ記事に属するかを検証する。
func (l *Ledger) checkParent(ctx context.Context, postID, parentID string) error {
	if !validID(parentID) {
		return model.NewInvalidParentCommentError(parentID)
	}
	parent, err := l.comments.FindByID(ctx, parentID)
	if err != nil {
		return l.storageError("find parent comment", err)
	}
	if parent == nil || parent.PostID != postID {
		return model.NewInvalidParentCommentError(parentID)
	}
	return nil
}

// UpdateComment はコメント本文を更新し、編集済みにする。投稿者本人のみ実行できる。
func (l *Ledger) UpdateComment(ctx context.Context, actor Actor, commentID, text string) (*model.Comment, error) {
	comment, err := l.findComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.IsDeleted {
		return nil, model.NewCommentNotFoundError(commentID)
	}
	if comment.UserID != actor.UserID {
		return nil, model.NewForbiddenError("自分のコメントのみ編集できます")
	}

	body, err := l.commentText(text)
	if err != nil {
		return nil, err
	}

	at := l.clock()
	if err := l.comments.UpdateText(ctx, commentID, body, at); err != nil {
		return nil, l.storageError("update comment", err)
	}

	l.recordCommentOp(opUpdate)
	comment.Text = body
	comment.IsEdited = true
	comment.UpdatedAt = at
	return comment, nil
}

// DeleteComment はコメントを論理削除する。投稿者本人のみ実行できる。
// 返信は削除せず、削除済みコメントへの再度の削除は成功扱いにする。
func (l *Ledger) DeleteComment(ctx context.Context, actor Actor, commentID string) error {
	comment, err := l.findComment(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.UserID != actor.UserID {
		return model.NewForbiddenError("自分のコメントのみ削除できます")
	}
	if comment.IsDeleted {
		return nil
	}

	if err := l.comments.SoftDelete(ctx, commentID, l.clock()); err != nil {
		return l.storageError("delete comment", err)
	}

	l.recordCommentOp(opDelete)
	slog.Info("comment deleted",
		slog.String("comment_id", commentID),
		slog.String("user_id", actor.UserID),
	)
	return nil
}

// ListComments は記事の未削除コメントを古い順に返す。
func (l *Ledger) ListComments(ctx context.Context, actor Actor, postID string) ([]model.CommentView, error) {
	if _, err := l.visiblePost(ctx, actor, postID); err != nil {
		return nil, err
	}
	comments, err := l.comments.ListByPost(ctx, postID)
	if err != nil {
		return nil, l.storageError("list comments", err)
	}
	return comments, nil
}

// ListUserComments はユーザー自身の未削除コメントを新しい順に返す。
func (l *Ledger) ListUserComments(ctx context.Context, userID string) ([]model.UserCommentView, error) {
	if !validID(userID) {
		return []model.UserCommentView{}, nil
	}
	comments, err := l.comments.ListByUser(ctx, userID)
	if err != nil {
		return nil, l.storageError("list user comments", err)
	}
	return comments, nil
}

func (l *Ledger) findComment(ctx context.Context, commentID string) (*model.Comment, error) {
	if !validID(commentID) {
		return nil, model.NewCommentNotFoundError(commentID)
	}
	comment, err := l.comments.FindByID(ctx, commentID)
	if err != nil {
		return nil, l.storageError("find comment", err)
	}
	if comment == nil {
		return nil, model.NewCommentNotFoundError(commentID)
	}
	return comment, nil
}

// commentText は本文をプレーンテキスト化し、長さを検証する。
func (l *Ledger) commentText(text string) (string, error) {
	body := l.sanitizer.PlainText(text)
	if body == "" {
		return "", model.NewInvalidCommentTextError("コメントを入力してください")
	}
	if utf8.RuneCountInString(body) > MaxCommentLength {
		return "", model.NewInvalidCommentTextError(fmt.Sprintf("コメントは%d文字以内で入力してください", MaxCommentLength))
	}
	return body, nil
}

func (l *Ledger) recordCommentOp(op string) {
	if l.metrics != nil {
		l.metrics.RecordCommentOp(op)
	}
}
