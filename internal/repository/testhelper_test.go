package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/folio/blogapi/internal/database"
	"github.com/folio/blogapi/internal/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// newTestDB はマイグレーション済みのSQLiteデータベースを生成する。
func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blog.db")
	require.NoError(t, database.RunMigrations(database.DriverSQLite, path))
	db, err := database.Open(database.DriverSQLite, path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seedUser(t *testing.T, db *sqlx.DB, subjectID, email string) *model.User {
	t.Helper()
	u := &model.User{
		ID:          uuid.New().String(),
		SubjectID:   subjectID,
		Email:       email,
		DisplayName: subjectID,
		LastLoginAt: baseTime,
		CreatedAt:   baseTime,
		UpdatedAt:   baseTime,
	}
	require.NoError(t, NewSQLUserRepo(db).Create(context.Background(), u))
	return u
}

func seedPost(t *testing.T, db *sqlx.DB, slug string, status model.PostStatus) *model.Post {
	t.Helper()
	p := &model.Post{
		ID:        uuid.New().String(),
		Title:     "Title " + slug,
		Slug:      slug,
		Status:    status,
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}
	require.NoError(t, NewSQLPostRepo(db).Create(context.Background(), p))
	return p
}
