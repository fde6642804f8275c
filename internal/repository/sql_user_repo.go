package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/folio/blogapi/internal/model"
	"github.com/jmoiron/sqlx"
)

const userColumns = `id, subject_id, email, display_name, photo_url, bio, preferences,
	is_admin, last_login_at, created_at, updated_at`

// SQLUserRepo はsqlxを使用したユーザーリポジトリ。
type SQLUserRepo struct {
	db *sqlx.DB
}

// NewSQLUserRepo はSQLUserRepoを生成する。
func NewSQLUserRepo(db *sqlx.DB) *SQLUserRepo {
	return &SQLUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *SQLUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// FindBySubjectID はsubject IDでユーザーを取得する。見つからない場合はnilを返す。
func (r *SQLUserRepo) FindBySubjectID(ctx context.Context, subjectID string) (*model.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE subject_id = ?`, subjectID)
}

func (r *SQLUserRepo) findOne(ctx context.Context, query string, arg string) (*model.User, error) {
	user := &model.User{}
	err := r.db.GetContext(ctx, user, r.db.Rebind(query), arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。
func (r *SQLUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (:id, :subject_id, :email, :display_name, :photo_url, :bio, :preferences,
		         :is_admin, :last_login_at, :created_at, :updated_at)`,
		user,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdateLogin は最終ログイン日時（および必要に応じて管理者フラグ）を更新する。
func (r *SQLUserRepo) UpdateLogin(ctx context.Context, id string, at time.Time, isAdmin *bool) error {
	query := `UPDATE users SET last_login_at = ?, updated_at = ? WHERE id = ?`
	args := []any{at, at, id}
	if isAdmin != nil {
		query = `UPDATE users SET last_login_at = ?, updated_at = ?, is_admin = ? WHERE id = ?`
		args = []any{at, at, *isAdmin, id}
	}

	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// UpdateProfile はnilでないフィールドのみを更新する。
func (r *SQLUserRepo) UpdateProfile(ctx context.Context, id string, update model.ProfileUpdate, at time.Time) error {
	sets := []string{"updated_at = ?"}
	args := []any{at}

	if update.DisplayName != nil {
		sets = append(sets, "display_name = ?")
		args = append(args, *update.DisplayName)
	}
	if update.PhotoURL != nil {
		sets = append(sets, "photo_url = ?")
		args = append(args, *update.PhotoURL)
	}
	if update.Bio != nil {
		sets = append(sets, "bio = ?")
		args = append(args, *update.Bio)
	}
	if update.Preferences != nil {
		sets = append(sets, "preferences = ?")
		args = append(args, update.Preferences)
	}
	args = append(args, id)

	query := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*SQLUserRepo)(nil)
