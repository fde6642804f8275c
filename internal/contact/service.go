// Package contact はサイトに掲載する連絡先の公開取得と管理者による編集を提供する。
package contact

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/folio/blogapi/internal/model"
	"github.com/folio/blogapi/internal/repository"
	"github.com/folio/blogapi/internal/security"
)

const (
	maxLabelLength = 100
	maxValueLength = 500
	maxTypeLength  = 50
	maxIconLength  = 50

	defaultIcon = "info"
)

// CreateInput は連絡先作成の入力。IsVisibleを省略した場合は公開とする。
type CreateInput struct {
	Label        string `json:"label"`
	Value        string `json:"value"`
	ContactType  string `json:"contact_type"`
	Icon         string `json:"icon"`
	IsVisible    *bool  `json:"is_visible"`
	DisplayOrder int    `json:"display_order"`
}

// Service は連絡先のサービス層。
type Service struct {
	repo      repository.ContactRepository
	sanitizer security.Sanitizer
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.ContactRepository, sanitizer security.Sanitizer) *Service {
	return &Service{repo: repo, sanitizer: sanitizer, now: time.Now}
}

// WithClock はテスト用に時刻関数を差し替える。
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ListVisible は公開中の連絡先を表示順に返す。
func (s *Service) ListVisible(ctx context.Context) ([]model.ContactInfo, error) {
	contacts, err := s.repo.List(ctx, true)
	if err != nil {
		return nil, storageError("list visible contacts", err)
	}
	return contacts, nil
}

// ListAll は非公開を含むすべての連絡先を表示順に返す。
func (s *Service) ListAll(ctx context.Context) ([]model.ContactInfo, error) {
	contacts, err := s.repo.List(ctx, false)
	if err != nil {
		return nil, storageError("list contacts", err)
	}
	return contacts, nil
}

// Create は連絡先を作成する。
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.ContactInfo, error) {
	at := s.clock()
	contact := &model.ContactInfo{
		ID:           uuid.New().String(),
		Label:        s.sanitizer.PlainText(in.Label),
		Value:        s.sanitizer.PlainText(in.Value),
		ContactType:  s.sanitizer.PlainText(in.ContactType),
		Icon:         s.sanitizer.PlainText(in.Icon),
		IsVisible:    true,
		DisplayOrder: in.DisplayOrder,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
	if in.IsVisible != nil {
		contact.IsVisible = *in.IsVisible
	}
	if contact.Icon == "" {
		contact.Icon = defaultIcon
	}
	if err := validate(contact); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, contact); err != nil {
		return nil, storageError("create contact", err)
	}
	slog.Info("contact info created", slog.String("contact_id", contact.ID), slog.String("type", contact.ContactType))
	return contact, nil
}

// Update は連絡先を部分更新する。nilのフィールドは変更しない。
func (s *Service) Update(ctx context.Context, id string, in model.ContactInfoUpdate) (*model.ContactInfo, error) {
	if !validID(id) {
		return nil, model.NewContactNotFoundError(id)
	}
	contact, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storageError("find contact", err)
	}
	if contact == nil {
		return nil, model.NewContactNotFoundError(id)
	}

	if in.Label != nil {
		contact.Label = s.sanitizer.PlainText(*in.Label)
	}
	if in.Value != nil {
		contact.Value = s.sanitizer.PlainText(*in.Value)
	}
	if in.ContactType != nil {
		contact.ContactType = s.sanitizer.PlainText(*in.ContactType)
	}
	if in.Icon != nil {
		contact.Icon = s.sanitizer.PlainText(*in.Icon)
		if contact.Icon == "" {
			contact.Icon = defaultIcon
		}
	}
	if in.IsVisible != nil {
		contact.IsVisible = *in.IsVisible
	}
	if in.DisplayOrder != nil {
		contact.DisplayOrder = *in.DisplayOrder
	}
	if err := validate(contact); err != nil {
		return nil, err
	}
	contact.UpdatedAt = s.clock()

	ok, err := s.repo.Update(ctx, contact)
	if err != nil {
		return nil, storageError("update contact", err)
	}
	if !ok {
		return nil, model.NewContactNotFoundError(id)
	}
	slog.Info("contact info updated", slog.String("contact_id", id))
	return contact, nil
}

// Delete は連絡先を削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return model.NewContactNotFoundError(id)
	}
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return storageError("delete contact", err)
	}
	if !ok {
		return model.NewContactNotFoundError(id)
	}
	slog.Info("contact info deleted", slog.String("contact_id", id))
	return nil
}

func validate(c *model.ContactInfo) error {
	switch {
	case !within(c.Label, 1, maxLabelLength):
		return model.NewInvalidContactError(fmt.Sprintf("ラベルは1〜%d文字で入力してください", maxLabelLength))
	case !within(c.Value, 1, maxValueLength):
		return model.NewInvalidContactError(fmt.Sprintf("値は1〜%d文字で入力してください", maxValueLength))
	case !within(c.ContactType, 1, maxTypeLength):
		return model.NewInvalidContactError(fmt.Sprintf("種別は1〜%d文字で入力してください", maxTypeLength))
	case !within(c.Icon, 1, maxIconLength):
		return model.NewInvalidContactError(fmt.Sprintf("アイコンは%d文字以内で入力してください", maxIconLength))
	}
	return nil
}

func within(s string, min, max int) bool {
	n := utf8.RuneCountInString(s)
	return n >= min && n <= max
}

func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func storageError(op string, err error) error {
	slog.Error("contact storage failure",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	return model.NewStorageError(fmt.Errorf("%s: %w", op, err))
}
