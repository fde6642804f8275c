package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// initialPingBackoff は接続確認リトライの初回待ち時間。
	initialPingBackoff = 500 * time.Millisecond
	// maxPingBackoff は接続確認リトライの最大待ち時間。
	maxPingBackoff = 8 * time.Second
)

// Pinger は接続確認を行うインターフェース。*sqlx.DBが実装する。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingBackoff は連続失敗回数に基づいて指数バックオフの待ち時間を計算する。
// 初回500ms、2倍ずつ増加、最大8秒。
func PingBackoff(failures int) time.Duration {
	delay := initialPingBackoff
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay > maxPingBackoff {
			return maxPingBackoff
		}
	}
	return delay
}

// WaitForDB はデータベースに接続できるまで最大attempts回Pingを試みる。
// コンテナ起動直後などDBの準備が遅れる場合に使用する。
func WaitForDB(ctx context.Context, db Pinger, attempts int) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		delay := PingBackoff(i)
		slog.Warn("database not ready, retrying",
			slog.Int("attempt", i+1),
			slog.Duration("retry_in", delay),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("database not reachable after %d attempts: %w", attempts, err)
}
