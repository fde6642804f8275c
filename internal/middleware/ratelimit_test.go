package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio/blogapi/internal/model"
)

// fakeClock はテストから進められる時計。
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) RecordRateLimited(limiter string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[limiter]++
}

func TestSlidingWindow_61stRequestRejectedUntilWindowSlides(t *testing.T) {
	clock := &fakeClock{t: issuedAt}
	l := NewSlidingWindowLimiter(60, time.Minute).WithClock(clock.Now)

	// 1件目
	ok, _ := l.Admit("1.2.3.4")
	require.True(t, ok)

	// 残り59件を1秒後から0.5秒間隔で送る
	clock.Advance(time.Second)
	for i := 0; i < 59; i++ {
		ok, _ := l.Admit("1.2.3.4")
		require.True(t, ok, "request %d", i+2)
		clock.Advance(500 * time.Millisecond)
	}

	ok, retry := l.Admit("1.2.3.4")
	assert.False(t, ok, "61st request")
	assert.Greater(t, retry, time.Duration(0))
	assert.LessOrEqual(t, retry, time.Minute)

	// 1件目がウィンドウから外れるまで進める
	clock.Advance(retry)
	ok, _ = l.Admit("1.2.3.4")
	assert.True(t, ok)

	// 直後はまた上限
	ok, _ = l.Admit("1.2.3.4")
	assert.False(t, ok)
}

func TestSlidingWindow_KeysAreIndependent(t *testing.T) {
	clock := &fakeClock{t: issuedAt}
	l := NewSlidingWindowLimiter(2, time.Minute).WithClock(clock.Now)

	for i := 0; i < 2; i++ {
		ok, _ := l.Admit("a")
		require.True(t, ok)
	}
	ok, _ := l.Admit("a")
	assert.False(t, ok)

	ok, _ = l.Admit("b")
	assert.True(t, ok)
	assert.Equal(t, 2, l.Keys())

	// キーは期限切れでも削除されない
	clock.Advance(time.Hour)
	ok, _ = l.Admit("a")
	assert.True(t, ok)
	assert.Equal(t, 2, l.Keys())
}

func TestSlidingWindow_RejectionIsNotCounted(t *testing.T) {
	clock := &fakeClock{t: issuedAt}
	l := NewSlidingWindowLimiter(1, time.Minute).WithClock(clock.Now)

	ok, _ := l.Admit("a")
	require.True(t, ok)
	for i := 0; i < 10; i++ {
		ok, _ = l.Admit("a")
		require.False(t, ok)
	}

	clock.Advance(time.Minute)
	ok, _ = l.Admit("a")
	assert.True(t, ok)
}

func TestSlidingWindow_Concurrent(t *testing.T) {
	l := NewSlidingWindowLimiter(50, time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Admit("k"); ok {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, admitted)
}

func TestSlidingWindowMiddleware_Returns429(t *testing.T) {
	clock := &fakeClock{t: issuedAt}
	l := NewSlidingWindowLimiter(1, time.Minute).WithClock(clock.Now)
	rec := &countingRecorder{}

	handler := l.Middleware(rec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/posts/x/like", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:5000").Code)

	// ポートが異なっても同じクライアント
	w := send("10.0.0.1:6000")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, model.ErrCodeRateLimited, decodeError(t, w).Code)
	assert.Equal(t, 1, rec.counts["sliding"])

	assert.Equal(t, http.StatusOK, send("10.0.0.2:5000").Code)
}

func TestLoginLimiter(t *testing.T) {
	clock := &fakeClock{t: issuedAt}
	l := NewLoginLimiter(3).WithClock(clock.Now)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("ip"))
	}
	assert.False(t, l.Allow("ip"))
	assert.True(t, l.Allow("other"))

	// 20秒で1トークン補充
	clock.Advance(20 * time.Second)
	assert.True(t, l.Allow("ip"))
	assert.False(t, l.Allow("ip"))
}

func TestLoginLimiter_SweepsIdleVisitors(t *testing.T) {
	clock := &fakeClock{t: issuedAt}
	l := NewLoginLimiter(3).WithClock(clock.Now)

	l.Allow("a")
	l.Allow("b")
	assert.Equal(t, 2, l.Visitors())

	clock.Advance(11 * time.Minute)
	l.Allow("c")
	assert.Equal(t, 1, l.Visitors())
}

func TestLoginLimiterMiddleware(t *testing.T) {
	clock := &fakeClock{t: issuedAt}
	l := NewLoginLimiter(1).WithClock(clock.Now)
	rec := &countingRecorder{}

	handler := l.Middleware(rec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, 1, rec.counts["login"])
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", ClientIP(req))

	req.RemoteAddr = "203.0.113.9"
	assert.Equal(t, "203.0.113.9", ClientIP(req))

	req.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", ClientIP(req))
}
