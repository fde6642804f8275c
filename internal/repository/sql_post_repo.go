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

const postColumns = `id, title, slug, excerpt, content, category, status, is_featured,
	likes_count, saves_count, views_count, created_at, updated_at`

// SQLPostRepo はsqlxを使用した記事リポジトリ。
type SQLPostRepo struct {
	db *sqlx.DB
}

// NewSQLPostRepo はSQLPostRepoを生成する。
func NewSQLPostRepo(db *sqlx.DB) *SQLPostRepo {
	return &SQLPostRepo{db: db}
}

// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
func (r *SQLPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	post := &model.Post{}
	err := r.db.GetContext(ctx, post, r.db.Rebind(`SELECT `+postColumns+` FROM posts WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}
	return post, nil
}

// Create は記事を作成する。
func (r *SQLPostRepo) Create(ctx context.Context, post *model.Post) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO posts (`+postColumns+`)
		 VALUES (:id, :title, :slug, :excerpt, :content, :category, :status, :is_featured,
		         :likes_count, :saves_count, :views_count, :created_at, :updated_at)`,
		post,
	)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

// Update は編集可能な列（タイトル、スラッグ、概要、本文、カテゴリ、公開状態、注目フラグ）を上書きする。
func (r *SQLPostRepo) Update(ctx context.Context, post *model.Post) (bool, error) {
	result, err := r.db.NamedExecContext(ctx,
		`UPDATE posts SET title = :title, slug = :slug, excerpt = :excerpt, content = :content,
		        category = :category, status = :status, is_featured = :is_featured, updated_at = :updated_at
		 WHERE id = :id`,
		post,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update post: %w", err)
	}
	return affected(result)
}

// ListPublished は公開中の記事を新しい順に返す。
func (r *SQLPostRepo) ListPublished(ctx context.Context, filter model.PostFilter) ([]model.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE status = ?`
	args := []any{string(model.PostStatusPublished)}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	if filter.Featured != nil {
		query += ` AND is_featured = ?`
		args = append(args, *filter.Featured)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	posts := []model.Post{}
	if err := r.db.SelectContext(ctx, &posts, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return posts, nil
}

// UpdateStatus は公開状態を更新する。
func (r *SQLPostRepo) UpdateStatus(ctx context.Context, id string, status model.PostStatus, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		r.db.Rebind(`UPDATE posts SET status = ?, updated_at = ? WHERE id = ?`),
		string(status), at, id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update post status: %w", err)
	}
	return affected(result)
}

// Delete は記事を削除する。
func (r *SQLPostRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM posts WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete post: %w", err)
	}
	return affected(result)
}

// IncrementViews は閲覧数を1増やす。
func (r *SQLPostRepo) IncrementViews(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE posts SET views_count = views_count + 1 WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to increment views: %w", err)
	}
	return nil
}

// ListInteractedByUser はユーザーがいいね（または保存）した公開記事を返す。
func (r *SQLPostRepo) ListInteractedByUser(ctx context.Context, kind model.InteractionKind, userID string) ([]model.InteractedPost, error) {
	t, err := interactionTableFor(kind)
	if err != nil {
		return nil, err
	}

	query := `SELECT p.id, p.title, p.slug, p.excerpt, p.content, p.category, p.status, p.is_featured,
	                 p.likes_count, p.saves_count, p.views_count, p.created_at, p.updated_at,
	                 i.created_at AS interacted_at
	          FROM ` + t.table + ` i
	          JOIN posts p ON p.id = i.post_id
	          WHERE i.user_id = ? AND p.status = ?
	          ORDER BY i.created_at DESC`

	posts := []model.InteractedPost{}
	if err := r.db.SelectContext(ctx, &posts, r.db.Rebind(query), userID, string(model.PostStatusPublished)); err != nil {
		return nil, fmt.Errorf("failed to list %s posts: %w", kind, err)
	}
	return posts, nil
}

// affected はUPDATE/DELETEで1行以上が変更されたかを返す。
func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// compile-time interface check
var _ PostRepository = (*SQLPostRepo)(nil)
