// Package database はデータベース接続とマイグレーション管理を提供する。
package database

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/postgres/*.sql migrations/sqlite3/*.sql
var migrationsFS embed.FS

// NewMigrator はマイグレーション実行用のmigrateインスタンスを生成する。
// ドライバごとに別のマイグレーションセットを使用する。
func NewMigrator(driver, dsn string) (*migrate.Migrate, error) {
	dir, databaseURL, err := migrationTarget(driver, dsn)
	if err != nil {
		return nil, err
	}

	source, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return m, nil
}

// RunMigrations はすべてのマイグレーションを適用する。
// すでに最新の場合はエラーなしで返る。
func RunMigrations(driver, dsn string) error {
	m, err := NewMigrator(driver, dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// migrationTarget はドライバに対応するマイグレーションディレクトリとmigrate用URLを返す。
func migrationTarget(driver, dsn string) (string, string, error) {
	switch driver {
	case DriverPostgres:
		return "migrations/postgres", dsn, nil
	case DriverSQLite:
		path := strings.TrimPrefix(dsn, "file:")
		return "migrations/sqlite3", "sqlite3://" + sqliteDSN(path), nil
	default:
		return "", "", fmt.Errorf("unsupported database driver: %q", driver)
	}
}
