// Package post はブログ記事の管理（管理者による作成・公開状態変更・削除）と公開記事の取得を提供する。
package post

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/folio/blogapi/internal/database"
	"github.com/folio/blogapi/internal/model"
	"github.com/folio/blogapi/internal/repository"
	"github.com/folio/blogapi/internal/security"
)

const (
	maxTitleLength   = 200
	maxExcerptLength = 500
	maxSlugLength    = 120

	defaultListLimit = 10
	maxListLimit     = 100
)

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9]+`)
	slugPattern      = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

// CreateInput は記事作成の入力。
type CreateInput struct {
	Title    string           `json:"title"`
	Slug     string           `json:"slug"`
	Excerpt  string           `json:"excerpt"`
	Content  string           `json:"content"`
	Category string           `json:"category"`
	Status   model.PostStatus `json:"status"`
	Featured bool             `json:"is_featured"`
}

// Service は記事のサービス層。
type Service struct {
	repo      repository.PostRepository
	sanitizer security.Sanitizer
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.PostRepository, sanitizer security.Sanitizer) *Service {
	return &Service{repo: repo, sanitizer: sanitizer, now: time.Now}
}

// WithClock はテスト用に時刻関数を差し替える。
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create は記事を作成する。
// スラッグ未指定の場合はタイトルから生成し、英数字を含まないタイトルではIDの先頭を使う。
// 本文は許可リストポリシーでサニタイズする。
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Post, error) {
	title, err := s.validTitle(in.Title)
	if err != nil {
		return nil, err
	}
	excerpt, err := s.validExcerpt(in.Excerpt)
	if err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = model.PostStatusDraft
	}
	if !status.Valid() {
		return nil, model.NewInvalidPostError("公開状態が不正です")
	}

	id := uuid.New().String()
	slug, err := resolveSlug(in.Slug, title, id)
	if err != nil {
		return nil, err
	}

	at := s.clock()
	post := &model.Post{
		ID:         id,
		Title:      title,
		Slug:       slug,
		Excerpt:    excerpt,
		Content:    s.sanitizer.PostContent(in.Content),
		Category:   s.sanitizer.PlainText(in.Category),
		Status:     status,
		IsFeatured: in.Featured,
		CreatedAt:  at,
		UpdatedAt:  at,
	}

	if err := s.repo.Create(ctx, post); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, model.NewInvalidPostError("同じスラッグの記事が既に存在します")
		}
		return nil, storageError("create post", err)
	}

	slog.Info("post created",
		slog.String("post_id", post.ID),
		slog.String("slug", post.Slug),
		slog.String("status", string(post.Status)),
	)
	return post, nil
}

// Update は記事を部分更新する。nilのフィールドは変更しない。
// 検証とサニタイズはCreateと同じ規則で行い、スラッグに空文字を渡すとタイトルから再生成する。
func (s *Service) Update(ctx context.Context, id string, in model.PostUpdate) (*model.Post, error) {
	if !validID(id) {
		return nil, model.NewPostNotFoundError(id)
	}
	post, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storageError("find post", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(id)
	}

	if in.Title != nil {
		if post.Title, err = s.validTitle(*in.Title); err != nil {
			return nil, err
		}
	}
	if in.Excerpt != nil {
		if post.Excerpt, err = s.validExcerpt(*in.Excerpt); err != nil {
			return nil, err
		}
	}
	if in.Slug != nil {
		if post.Slug, err = resolveSlug(*in.Slug, post.Title, post.ID); err != nil {
			return nil, err
		}
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, model.NewInvalidPostError("公開状態が不正です")
		}
		post.Status = *in.Status
	}
	if in.Content != nil {
		post.Content = s.sanitizer.PostContent(*in.Content)
	}
	if in.Category != nil {
		post.Category = s.sanitizer.PlainText(*in.Category)
	}
	if in.IsFeatured != nil {
		post.IsFeatured = *in.IsFeatured
	}
	post.UpdatedAt = s.clock()

	ok, err := s.repo.Update(ctx, post)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, model.NewInvalidPostError("同じスラッグの記事が既に存在します")
		}
		return nil, storageError("update post", err)
	}
	if !ok {
		return nil, model.NewPostNotFoundError(id)
	}

	slog.Info("post updated", slog.String("post_id", post.ID), slog.String("slug", post.Slug))
	return post, nil
}

// ListPublished は公開中の記事を新しい順に返す。
// Limitが0なら10件とし、1〜100の範囲外やOffsetが負の場合はエラーを返す。
func (s *Service) ListPublished(ctx context.Context, filter model.PostFilter) ([]model.Post, error) {
	if filter.Limit == 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit < 1 || filter.Limit > maxListLimit {
		return nil, model.NewInvalidRequestError(fmt.Sprintf("limitは1〜%dで指定してください", maxListLimit))
	}
	if filter.Offset < 0 {
		return nil, model.NewInvalidRequestError("offsetは0以上で指定してください")
	}
	filter.Category = strings.TrimSpace(filter.Category)

	posts, err := s.repo.ListPublished(ctx, filter)
	if err != nil {
		return nil, storageError("list posts", err)
	}
	return posts, nil
}

// UpdateStatus は記事の公開状態を変更する。
func (s *Service) UpdateStatus(ctx context.Context, id string, status model.PostStatus) error {
	if !status.Valid() {
		return model.NewInvalidPostError("公開状態が不正です")
	}
	if !validID(id) {
		return model.NewPostNotFoundError(id)
	}
	ok, err := s.repo.UpdateStatus(ctx, id, status, s.clock())
	if err != nil {
		return storageError("update post status", err)
	}
	if !ok {
		return model.NewPostNotFoundError(id)
	}
	slog.Info("post status changed", slog.String("post_id", id), slog.String("status", string(status)))
	return nil
}

// Delete は記事を削除する。いいね・保存・コメントも削除される。
func (s *Service) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return model.NewPostNotFoundError(id)
	}
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return storageError("delete post", err)
	}
	if !ok {
		return model.NewPostNotFoundError(id)
	}
	slog.Info("post deleted", slog.String("post_id", id))
	return nil
}

// View は記事を取得し、閲覧数を1増やす。
// 管理者以外には公開中の記事のみを返す。
func (s *Service) View(ctx context.Context, id string, isAdmin bool) (*model.Post, error) {
	if !validID(id) {
		return nil, model.NewPostNotFoundError(id)
	}
	post, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storageError("find post", err)
	}
	if post == nil || (post.Status != model.PostStatusPublished && !isAdmin) {
		return nil, model.NewPostNotFoundError(id)
	}

	if err := s.repo.IncrementViews(ctx, id); err != nil {
		return nil, storageError("increment views", err)
	}
	post.ViewsCount++
	return post, nil
}

// Slugify はタイトルからURL用のスラッグを生成する。英数字以外はハイフンに置き換える。
func Slugify(title string) string {
	slug := slugInvalidChars.ReplaceAllString(strings.ToLower(title), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	return slug
}

func (s *Service) validTitle(raw string) (string, error) {
	title := s.sanitizer.PlainText(raw)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
		return "", model.NewInvalidPostError(fmt.Sprintf("タイトルは1〜%d文字で入力してください", maxTitleLength))
	}
	return title, nil
}

func (s *Service) validExcerpt(raw string) (string, error) {
	excerpt := s.sanitizer.PlainText(raw)
	if utf8.RuneCountInString(excerpt) > maxExcerptLength {
		return "", model.NewInvalidPostError(fmt.Sprintf("概要は%d文字以内で入力してください", maxExcerptLength))
	}
	return excerpt, nil
}

// resolveSlug は指定スラッグを検証する。空ならタイトルから生成し、生成できなければIDの先頭を使う。
func resolveSlug(raw, title, id string) (string, error) {
	slug := strings.TrimSpace(raw)
	if slug == "" {
		slug = Slugify(title)
		if slug == "" {
			slug = id[:8]
		}
	}
	if len(slug) > maxSlugLength || !slugPattern.MatchString(slug) {
		return "", model.NewInvalidPostError("スラッグは英小文字・数字・ハイフンで入力してください")
	}
	return slug, nil
}

func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func storageError(op string, err error) error {
	slog.Error("post storage failure",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	return model.NewStorageError(fmt.Errorf("%s: %w", op, err))
}
