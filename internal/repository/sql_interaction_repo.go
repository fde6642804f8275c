package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/folio/blogapi/internal/database"
	"github.com/folio/blogapi/internal/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// interactionTable はインタラクション種別ごとのテーブル名とカウンタ列名。
type interactionTable struct {
	table   string
	counter string
}

var interactionTables = map[model.InteractionKind]interactionTable{
	model.InteractionLike: {table: "post_likes", counter: "likes_count"},
	model.InteractionSave: {table: "post_saves", counter: "saves_count"},
}

func interactionTableFor(kind model.InteractionKind) (interactionTable, error) {
	t, ok := interactionTables[kind]
	if !ok {
		return interactionTable{}, fmt.Errorf("unknown interaction kind: %q", kind)
	}
	return t, nil
}

// SQLInteractionRepo はsqlxを使用したいいね・保存リポジトリ。
type SQLInteractionRepo struct {
	db *sqlx.DB
}

// NewSQLInteractionRepo はSQLInteractionRepoを生成する。
func NewSQLInteractionRepo(db *sqlx.DB) *SQLInteractionRepo {
	return &SQLInteractionRepo{db: db}
}

// Toggle はいいね（または保存）を反転させ、記事のカウンタを同一トランザクションで更新する。
//
// DELETEで行を消せた場合のみカウンタを減らし、消せなかった場合は
// INSERT ... ON CONFLICT DO NOTHING で行を作り、実際に挿入できた場合のみカウンタを増やす。
// 同一ユーザーの同時トグルでも「カウンタ == 行数」が保たれる。
func (r *SQLInteractionRepo) Toggle(ctx context.Context, kind model.InteractionKind, postID, userID string, at time.Time) (bool, int, error) {
	t, err := interactionTableFor(kind)
	if err != nil {
		return false, 0, err
	}

	var active bool
	var count int
	err = database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx,
			tx.Rebind(`DELETE FROM `+t.table+` WHERE post_id = ? AND user_id = ?`),
			postID, userID,
		)
		if err != nil {
			return fmt.Errorf("failed to delete %s: %w", kind, err)
		}
		removed, err := affected(result)
		if err != nil {
			return err
		}

		if removed {
			active = false
			_, err = tx.ExecContext(ctx,
				tx.Rebind(`UPDATE posts SET `+t.counter+` = CASE WHEN `+t.counter+` > 0 THEN `+t.counter+` - 1 ELSE 0 END WHERE id = ?`),
				postID,
			)
			if err != nil {
				return fmt.Errorf("failed to decrement %s: %w", t.counter, err)
			}
		} else {
			active = true
			result, err := tx.ExecContext(ctx,
				tx.Rebind(`INSERT INTO `+t.table+` (id, post_id, user_id, created_at)
				           VALUES (?, ?, ?, ?)
				           ON CONFLICT (post_id, user_id) DO NOTHING`),
				uuid.New().String(), postID, userID, at,
			)
			if err != nil {
				return fmt.Errorf("failed to insert %s: %w", kind, err)
			}
			inserted, err := affected(result)
			if err != nil {
				return err
			}
			if inserted {
				_, err = tx.ExecContext(ctx,
					tx.Rebind(`UPDATE posts SET `+t.counter+` = `+t.counter+` + 1 WHERE id = ?`),
					postID,
				)
				if err != nil {
					return fmt.Errorf("failed to increment %s: %w", t.counter, err)
				}
			}
		}

		if err := tx.GetContext(ctx, &count, tx.Rebind(`SELECT `+t.counter+` FROM posts WHERE id = ?`), postID); err != nil {
			return fmt.Errorf("failed to read %s: %w", t.counter, err)
		}
		return nil
	})
	if err != nil {
		return false, 0, err
	}

	return active, count, nil
}

// Exists は(post, user)の行が存在するかを返す。
func (r *SQLInteractionRepo) Exists(ctx context.Context, kind model.InteractionKind, postID, userID string) (bool, error) {
	t, err := interactionTableFor(kind)
	if err != nil {
		return false, err
	}

	var n int
	err = r.db.GetContext(ctx, &n,
		r.db.Rebind(`SELECT COUNT(*) FROM `+t.table+` WHERE post_id = ? AND user_id = ?`),
		postID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", kind, err)
	}
	return n > 0, nil
}

// Count は記事に対する行数を返す。
func (r *SQLInteractionRepo) Count(ctx context.Context, kind model.InteractionKind, postID string) (int, error) {
	t, err := interactionTableFor(kind)
	if err != nil {
		return 0, err
	}

	var n int
	if err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM `+t.table+` WHERE post_id = ?`), postID); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", kind, err)
	}
	return n, nil
}

// compile-time interface check
var _ InteractionRepository = (*SQLInteractionRepo)(nil)
