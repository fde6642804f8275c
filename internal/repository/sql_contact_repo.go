package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/folio/blogapi/internal/model"
)

const contactColumns = `id, label, value, contact_type, icon, is_visible, display_order, created_at, updated_at`

// SQLContactRepo はsqlxを使用した連絡先リポジトリ。
type SQLContactRepo struct {
	db *sqlx.DB
}

// NewSQLContactRepo はSQLContactRepoを生成する。
func NewSQLContactRepo(db *sqlx.DB) *SQLContactRepo {
	return &SQLContactRepo{db: db}
}

// FindByID は指定IDの連絡先を取得する。見つからない場合はnilを返す。
func (r *SQLContactRepo) FindByID(ctx context.Context, id string) (*model.ContactInfo, error) {
	contact := &model.ContactInfo{}
	err := r.db.GetContext(ctx, contact, r.db.Rebind(`SELECT `+contactColumns+` FROM contact_info WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find contact info: %w", err)
	}
	return contact, nil
}

// List は連絡先を表示順（同順位は作成順）に返す。
func (r *SQLContactRepo) List(ctx context.Context, visibleOnly bool) ([]model.ContactInfo, error) {
	query := `SELECT ` + contactColumns + ` FROM contact_info`
	var args []any
	if visibleOnly {
		query += ` WHERE is_visible = ?`
		args = append(args, true)
	}
	query += ` ORDER BY display_order ASC, created_at ASC, id ASC`

	contacts := []model.ContactInfo{}
	if err := r.db.SelectContext(ctx, &contacts, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list contact info: %w", err)
	}
	return contacts, nil
}

// Create は連絡先を作成する。
func (r *SQLContactRepo) Create(ctx context.Context, contact *model.ContactInfo) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO contact_info (`+contactColumns+`)
		 VALUES (:id, :label, :value, :contact_type, :icon, :is_visible, :display_order, :created_at, :updated_at)`,
		contact,
	)
	if err != nil {
		return fmt.Errorf("failed to insert contact info: %w", err)
	}
	return nil
}

// Update は連絡先を上書きする。
func (r *SQLContactRepo) Update(ctx context.Context, contact *model.ContactInfo) (bool, error) {
	result, err := r.db.NamedExecContext(ctx,
		`UPDATE contact_info SET label = :label, value = :value, contact_type = :contact_type, icon = :icon,
		        is_visible = :is_visible, display_order = :display_order, updated_at = :updated_at
		 WHERE id = :id`,
		contact,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update contact info: %w", err)
	}
	return affected(result)
}

// Delete は連絡先を削除する。
func (r *SQLContactRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM contact_info WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete contact info: %w", err)
	}
	return affected(result)
}

// compile-time interface check
var _ ContactRepository = (*SQLContactRepo)(nil)
