package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/folio/blogapi/internal/model"
	"github.com/jmoiron/sqlx"
)

const commentColumns = `c.id, c.post_id, c.user_id, c.parent_comment_id, c.text,
	c.is_edited, c.is_deleted, c.created_at, c.updated_at`

// SQLCommentRepo はsqlxを使用したコメントリポジトリ。
type SQLCommentRepo struct {
	db *sqlx.DB
}

// NewSQLCommentRepo はSQLCommentRepoを生成する。
func NewSQLCommentRepo(db *sqlx.DB) *SQLCommentRepo {
	return &SQLCommentRepo{db: db}
}

// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
func (r *SQLCommentRepo) FindByID(ctx context.Context, id string) (*model.Comment, error) {
	comment := &model.Comment{}
	err := r.db.GetContext(ctx, comment,
		r.db.Rebind(`SELECT `+commentColumns+` FROM comments c WHERE c.id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find comment: %w", err)
	}
	return comment, nil
}

// Create はコメントを作成する。
func (r *SQLCommentRepo) Create(ctx context.Context, comment *model.Comment) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO comments (id, post_id, user_id, parent_comment_id, text, is_edited, is_deleted, created_at, updated_at)
		 VALUES (:id, :post_id, :user_id, :parent_comment_id, :text, :is_edited, :is_deleted, :created_at, :updated_at)`,
		comment,
	)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

// UpdateText は本文を更新し、編集済みフラグを立てる。
func (r *SQLCommentRepo) UpdateText(ctx context.Context, id, text string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		r.db.Rebind(`UPDATE comments SET text = ?, is_edited = ?, updated_at = ? WHERE id = ?`),
		text, true, at, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}
	return nil
}

// SoftDelete は論理削除フラグを立てる。
func (r *SQLCommentRepo) SoftDelete(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		r.db.Rebind(`UPDATE comments SET is_deleted = ?, updated_at = ? WHERE id = ?`),
		true, at, id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return nil
}

// ListByPost は記事の未削除コメントを古い順に返す。
func (r *SQLCommentRepo) ListByPost(ctx context.Context, postID string) ([]model.CommentView, error) {
	query := `SELECT ` + commentColumns + `,
	                 u.display_name AS author_name, u.photo_url AS author_photo
	          FROM comments c
	          JOIN users u ON u.id = c.user_id
	          WHERE c.post_id = ? AND c.is_deleted = ?
	          ORDER BY c.created_at ASC, c.id ASC`

	comments := []model.CommentView{}
	if err := r.db.SelectContext(ctx, &comments, r.db.Rebind(query), postID, false); err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}

// ListByUser はユーザーの未削除コメントを新しい順に返す。
func (r *SQLCommentRepo) ListByUser(ctx context.Context, userID string) ([]model.UserCommentView, error) {
	query := `SELECT ` + commentColumns + `,
	                 p.title AS post_title, p.slug AS post_slug
	          FROM comments c
	          JOIN posts p ON p.id = c.post_id
	          WHERE c.user_id = ? AND c.is_deleted = ?
	          ORDER BY c.created_at DESC, c.id DESC`

	comments := []model.UserCommentView{}
	if err := r.db.SelectContext(ctx, &comments, r.db.Rebind(query), userID, false); err != nil {
		return nil, fmt.Errorf("failed to list user comments: %w", err)
	}
	return comments, nil
}

// compile-time interface check
var _ CommentRepository = (*SQLCommentRepo)(nil)
