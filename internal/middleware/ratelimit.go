package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/folio/blogapi/internal/model"
)

// RateLimitRecorder はレート制限による拒否の記録インターフェース。
type RateLimitRecorder interface {
	RecordRateLimited(limiter string)
}

// SlidingWindowLimiter はクライアントキーごとのスライディングウィンドウ方式のレート制限。
//
// キーごとに直近windowの受付時刻を保持し、件数がlimit未満なら受け付ける。
// 古い時刻の削除は判定のたびに行い、バックグラウンド処理は持たない。
// キー自体は削除しないため、保持するキー数はクライアント数に比例して増える。
type SlidingWindowLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time
	now    func() time.Time
}

// NewSlidingWindowLimiter はSlidingWindowLimiterを生成する。
func NewSlidingWindowLimiter(limit int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// WithClock はテスト用に時刻関数を差し替える。
func (l *SlidingWindowLimiter) WithClock(now func() time.Time) *SlidingWindowLimiter {
	l.now = now
	return l
}

// Admit はkeyのリクエストを受け付けるかを判定する。
// 拒否した場合は、最も古い受付時刻がウィンドウから外れるまでの待ち時間を返す。
func (l *SlidingWindowLimiter) Admit(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	stamps := l.hits[key]
	keep := 0
	for keep < len(stamps) && !stamps[keep].After(cutoff) {
		keep++
	}
	stamps = stamps[keep:]

	if len(stamps) >= l.limit {
		l.hits[key] = stamps
		return false, stamps[0].Sub(cutoff)
	}

	l.hits[key] = append(stamps, now)
	return true, 0
}

// Keys は保持しているクライアントキー数を返す。
func (l *SlidingWindowLimiter) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}

// Middleware はクライアントIPをキーにレート制限するミドルウェアを返す。
// プロキシ配下ではchiのRealIPミドルウェアの後に配置する。
func (l *SlidingWindowLimiter) Middleware(recorder RateLimitRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientIP(r)
			if ok, retryAfter := l.Admit(key); !ok {
				rejectRateLimited(w, r, "sliding", key, retryAfter, recorder)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// visitor はIPごとのトークンバケットと最終アクセス時刻。
type visitor struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// LoginLimiter はログイン試行をIPごとのトークンバケットで制限する。
// 一定時間アクセスのないエントリは、判定のついでに間引く。
type LoginLimiter struct {
	mu        sync.Mutex
	perMinute int
	visitors  map[string]*visitor
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewLoginLimiter はperMinute回/分（バーストも同数）のLoginLimiterを生成する。
func NewLoginLimiter(perMinute int) *LoginLimiter {
	return &LoginLimiter{
		perMinute: perMinute,
		visitors:  make(map[string]*visitor),
		idleTTL:   10 * time.Minute,
		now:       time.Now,
	}
}

// WithClock はテスト用に時刻関数を差し替える。
func (l *LoginLimiter) WithClock(now func() time.Time) *LoginLimiter {
	l.now = now
	return l
}

// Allow はkeyのログイン試行を受け付けるかを判定する。
func (l *LoginLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(float64(l.perMinute)/60.0), l.perMinute)}
		l.visitors[key] = v
	}
	v.lastAccess = now
	return v.limiter.AllowN(now, 1)
}

// Visitors は保持しているエントリ数を返す。
func (l *LoginLimiter) Visitors() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// sweep はidleTTLごとに、idleTTL以上アクセスのないエントリを削除する。
func (l *LoginLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idleTTL {
		return
	}
	for key, v := range l.visitors {
		if now.Sub(v.lastAccess) >= l.idleTTL {
			delete(l.visitors, key)
		}
	}
	l.lastSweep = now
}

// Middleware はクライアントIPをキーにログイン試行を制限するミドルウェアを返す。
func (l *LoginLimiter) Middleware(recorder RateLimitRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientIP(r)
			if !l.Allow(key) {
				retryAfter := time.Duration(float64(time.Minute) / float64(l.perMinute))
				rejectRateLimited(w, r, "login", key, retryAfter, recorder)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP はリクエスト元のIPアドレスを返す。RemoteAddrのポートは除く。
// 転送ヘッダーは参照しない。信頼できるプロキシの場合のみRealIPがRemoteAddrを書き換える。
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// rejectRateLimited は429 Too Many Requestsを返す。
// Retry-Afterヘッダーには待ち時間を秒単位（切り上げ、最小1秒）で設定する。
func rejectRateLimited(w http.ResponseWriter, r *http.Request, limiter, key string, retryAfter time.Duration, recorder RateLimitRecorder) {
	retryAfterSec := int(math.Ceil(retryAfter.Seconds()))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	slog.Warn("rate limit exceeded",
		slog.String("limiter", limiter),
		slog.String("client", key),
		slog.String("path", r.URL.Path),
	)
	if recorder != nil {
		recorder.RecordRateLimited(limiter)
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitedError())
}
