package engagement

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio/blogapi/internal/database"
	"github.com/folio/blogapi/internal/model"
	"github.com/folio/blogapi/internal/repository"
	"github.com/folio/blogapi/internal/security"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// stepClock は呼び出しごとに1秒進む時計。
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fakeRecorder struct {
	mu      sync.Mutex
	toggles map[string]int
	ops     map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{toggles: map[string]int{}, ops: map[string]int{}}
}

func (r *fakeRecorder) RecordToggle(kind model.InteractionKind, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if active {
		r.toggles[string(kind)+":on"]++
	} else {
		r.toggles[string(kind)+":off"]++
	}
}

func (r *fakeRecorder) RecordCommentOp(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[op]++
}

type fixture struct {
	db       *sqlx.DB
	ledger   *Ledger
	posts    *repository.SQLPostRepo
	recorder *fakeRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blog.db")
	require.NoError(t, database.RunMigrations(database.DriverSQLite, path))
	db, err := database.Open(database.DriverSQLite, path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	posts := repository.NewSQLPostRepo(db)
	rec := newFakeRecorder()
	clock := &stepClock{t: baseTime}
	ledger := NewLedger(
		posts,
		repository.NewSQLInteractionRepo(db),
		repository.NewSQLCommentRepo(db),
		security.NewSanitizer(),
		rec,
	).WithClock(clock.Now)

	return &fixture{db: db, ledger: ledger, posts: posts, recorder: rec}
}

func (f *fixture) user(t *testing.T, subject string) Actor {
	t.Helper()
	u := &model.User{
		ID:          uuid.New().String(),
		SubjectID:   subject,
		Email:       subject + "@x.com",
		DisplayName: "name-" + subject,
		Preferences: model.Preferences{},
		LastLoginAt: baseTime,
		CreatedAt:   baseTime,
		UpdatedAt:   baseTime,
	}
	require.NoError(t, repository.NewSQLUserRepo(f.db).Create(context.Background(), u))
	return Actor{UserID: u.ID}
}

func (f *fixture) post(t *testing.T, slug string, status model.PostStatus) string {
	t.Helper()
	p := &model.Post{
		ID:        uuid.New().String(),
		Title:     "Title " + slug,
		Slug:      slug,
		Status:    status,
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}
	require.NoError(t, f.posts.Create(context.Background(), p))
	return p.ID
}

func (f *fixture) likesCount(t *testing.T, postID string) int {
	t.Helper()
	p, err := f.posts.FindByID(context.Background(), postID)
	require.NoError(t, err)
	return p.LikesCount
}

func TestToggleLike_LikeThenUnlike(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1 := f.user(t, "u1")
	p1 := f.post(t, "p1", model.PostStatusPublished)

	res, err := f.ledger.ToggleLike(ctx, u1, p1)
	require.NoError(t, err)
	assert.True(t, res.Active)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, 1, f.likesCount(t, p1))

	liked, err := f.ledger.HasLiked(ctx, p1, u1.UserID)
	require.NoError(t, err)
	assert.True(t, liked)

	res, err = f.ledger.ToggleLike(ctx, u1, p1)
	require.NoError(t, err)
	assert.False(t, res.Active)
	assert.Equal(t, 0, res.Count)
	assert.Equal(t, 0, f.likesCount(t, p1))

	liked, err = f.ledger.HasLiked(ctx, p1, u1.UserID)
	require.NoError(t, err)
	assert.False(t, liked)

	assert.Equal(t, 1, f.recorder.toggles["like:on"])
	assert.Equal(t, 1, f.recorder.toggles["like:off"])
}

func TestToggle_ParityWithOtherUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1 := f.user(t, "u1")
	u2 := f.user(t, "u2")
	p1 := f.post(t, "p1", model.PostStatusPublished)

	// u2のいいねを先に入れておく
	_, err := f.ledger.ToggleLike(ctx, u2, p1)
	require.NoError(t, err)
	start := f.likesCount(t, p1)

	for i := 1; i <= 5; i++ {
		res, err := f.ledger.ToggleLike(ctx, u1, p1)
		require.NoError(t, err)
		if i%2 == 1 {
			assert.True(t, res.Active)
			assert.Equal(t, start+1, res.Count)
		} else {
			assert.False(t, res.Active)
			assert.Equal(t, start, res.Count)
		}
	}

	n, err := repository.NewSQLInteractionRepo(f.db).Count(ctx, model.InteractionLike, p1)
	require.NoError(t, err)
	assert.Equal(t, n, f.likesCount(t, p1))
}

func TestToggleSave_IndependentFromLike(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1 := f.user(t, "u1")
	p1 := f.post(t, "p1", model.PostStatusPublished)

	res, err := f.ledger.ToggleSave(ctx, u1, p1)
	require.NoError(t, err)
	assert.True(t, res.Active)
	assert.Equal(t, 1, res.Count)

	saved, err := f.ledger.HasSaved(ctx, p1, u1.UserID)
	require.NoError(t, err)
	assert.True(t, saved)

	liked, err := f.ledger.HasLiked(ctx, p1, u1.UserID)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Equal(t, 0, f.likesCount(t, p1))
}

func TestToggle_ConcurrentKeepsCounterInSync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p1 := f.post(t, "p1", model.PostStatusPublished)
	actors := []Actor{f.user(t, "a"), f.user(t, "b"), f.user(t, "c")}

	var wg sync.WaitGroup
	for _, a := range actors {
		for i := 0; i < 7; i++ {
			wg.Add(1)
			go func(a Actor) {
				defer wg.Done()
				_, err := f.ledger.ToggleLike(ctx, a, p1)
				assert.NoError(t, err)
			}(a)
		}
	}
	wg.Wait()

	// 各ユーザー奇数回なので全員いいね済み
	n, err := repository.NewSQLInteractionRepo(f.db).Count(ctx, model.InteractionLike, p1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, f.likesCount(t, p1))
}

func TestToggle_PostVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1 := f.user(t, "u1")
	draft := f.post(t, "draft", model.PostStatusDraft)

	_, err := f.ledger.ToggleLike(ctx, u1, draft)
	assert.True(t, model.IsCode(err, model.ErrCodePostNotFound))

	admin := u1
	admin.IsAdmin = true
	res, err := f.ledger.ToggleLike(ctx, admin, draft)
	require.NoError(t, err)
	assert.True(t, res.Active)

	_, err = f.ledger.ToggleLike(ctx, u1, uuid.New().String())
	assert.True(t, model.IsCode(err, model.ErrCodePostNotFound))

	_, err = f.ledger.ToggleLike(ctx, u1, "not-a-uuid")
	assert.True(t, model.IsCode(err, model.ErrCodePostNotFound))
}

func TestHasLiked_UnknownIDs(t *testing.T) {
	f := newFixture(t)

	liked, err := f.ledger.HasLiked(context.Background(), "bad", "also-bad")
	require.NoError(t, err)
	assert.False(t, liked)
}

func TestListLikedAndSavedPosts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1 := f.user(t, "u1")
	p1 := f.post(t, "p1", model.PostStatusPublished)
	p2 := f.post(t, "p2", model.PostStatusPublished)

	_, err := f.ledger.ToggleLike(ctx, u1, p1)
	require.NoError(t, err)
	_, err = f.ledger.ToggleLike(ctx, u1, p2)
	require.NoError(t, err)
	_, err = f.ledger.ToggleSave(ctx, u1, p2)
	require.NoError(t, err)

	liked, err := f.ledger.ListLikedPosts(ctx, u1.UserID)
	require.NoError(t, err)
	require.Len(t, liked, 2)
	assert.Equal(t, p2, liked[0].ID)
	assert.Equal(t, p1, liked[1].ID)

	saved, err := f.ledger.ListSavedPosts(ctx, u1.UserID)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, p2, saved[0].ID)
}

// failingInteractions はストレージ障害を返すリポジトリ。
type failingInteractions struct {
	repository.InteractionRepository
}

func (failingInteractions) Toggle(context.Context, model.InteractionKind, string, string, time.Time) (bool, int, error) {
	return false, 0, errors.New("connection reset by peer")
}

func TestToggle_StorageErrorIsGeneric(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1 := f.user(t, "u1")
	p1 := f.post(t, "p1", model.PostStatusPublished)

	ledger := NewLedger(f.posts, failingInteractions{}, repository.NewSQLCommentRepo(f.db), security.NewSanitizer(), nil)

	_, err := ledger.ToggleLike(ctx, u1, p1)
	require.Error(t, err)
	apiErr, ok := model.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, model.ErrCodeStorage, apiErr.Code)
	assert.NotContains(t, apiErr.Message, "connection reset")
}
