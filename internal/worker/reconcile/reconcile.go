// Package reconcile は記事のいいね数・保存数を実際の行数に合わせる整合ジョブを提供する。
// 通常の操作では同一トランザクションで更新されるため差分は生じないが、
// 手動でのデータ修正やリストア後にカウンタがずれた場合に修復する。
package reconcile

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sqlx.DB を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// counterQueries はカウンタ列ごとの修復クエリ。PostgreSQLとSQLiteの両方で動作する。
var counterQueries = []struct {
	column string
	query  string
}{
	{
		column: "likes_count",
		query: `UPDATE posts SET likes_count = (SELECT COUNT(*) FROM post_likes WHERE post_likes.post_id = posts.id)
WHERE likes_count <> (SELECT COUNT(*) FROM post_likes WHERE post_likes.post_id = posts.id)`,
	},
	{
		column: "saves_count",
		query: `UPDATE posts SET saves_count = (SELECT COUNT(*) FROM post_saves WHERE post_saves.post_id = posts.id)
WHERE saves_count <> (SELECT COUNT(*) FROM post_saves WHERE post_saves.post_id = posts.id)`,
	},
}

// Job はカウンタ整合ジョブ。冪等で、差分がなければ何も更新しない。
type Job struct {
	db     Executor
	logger *slog.Logger
}

// NewJob は新しいJobを生成する。
func NewJob(db Executor, logger *slog.Logger) *Job {
	return &Job{
		db:     db,
		logger: logger,
	}
}

// Run はカウンタがずれている記事を修復し、修復した件数（列ごとの合計）を返す。
func (j *Job) Run(ctx context.Context) (int64, error) {
	start := time.Now()

	var repaired int64
	for _, c := range counterQueries {
		result, err := j.db.ExecContext(ctx, c.query)
		if err != nil {
			j.logger.Error("counter reconciliation failed",
				slog.String("column", c.column),
				slog.String("error", err.Error()),
			)
			return repaired, fmt.Errorf("failed to reconcile %s: %w", c.column, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return repaired, fmt.Errorf("failed to get affected rows: %w", err)
		}
		if n > 0 {
			j.logger.Warn("counter drift repaired",
				slog.String("column", c.column),
				slog.Int64("posts", n),
			)
		}
		repaired += n
	}

	j.logger.Info("counter reconciliation completed",
		slog.Int64("repaired", repaired),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return repaired, nil
}

// Start はintervalごとにRunを実行する。ctxがキャンセルされるまでブロックする。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// エラーはRun内でログ済み
			_, _ = j.Run(ctx)
		}
	}
}
