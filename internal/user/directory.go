// Package user は外部IdPのsubject IDとローカルユーザーの対応付け、およびプロフィール管理を提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/folio/blogapi/internal/database"
	"github.com/folio/blogapi/internal/model"
	"github.com/folio/blogapi/internal/repository"
	"github.com/folio/blogapi/internal/security"
)

// プロフィール項目の上限（文字数）
const (
	maxDisplayNameLength = 100
	maxBioLength         = 500
	maxPhotoURLLength    = 2048
)

// Config はDirectoryの設定。
type Config struct {
	// AdminEmails は管理者として扱うメールアドレス（大文字小文字を区別しない）。
	AdminEmails []string

	// ReevaluateAdmin が真の場合、ログインのたびにis_adminをホワイトリストから再計算する。
	// 偽の場合、is_adminは初回ログイン時の値のまま変わらない。
	ReevaluateAdmin bool
}

// Directory はユーザーの解決・作成とプロフィール更新を行う。
type Directory struct {
	repo       repository.UserRepository
	sanitizer  security.Sanitizer
	urlGuard   security.URLGuard
	admins     map[string]struct{}
	reevaluate bool
	now        func() time.Time
}

// NewDirectory はDirectoryを生成する。
func NewDirectory(
	repo repository.UserRepository,
	sanitizer security.Sanitizer,
	urlGuard security.URLGuard,
	cfg Config,
) *Directory {
	admins := make(map[string]struct{}, len(cfg.AdminEmails))
	for _, email := range cfg.AdminEmails {
		if e := normalizeEmail(email); e != "" {
			admins[e] = struct{}{}
		}
	}
	return &Directory{
		repo:       repo,
		sanitizer:  sanitizer,
		urlGuard:   urlGuard,
		admins:     admins,
		reevaluate: cfg.ReevaluateAdmin,
		now:        time.Now,
	}
}

// WithClock はテスト用に時刻関数を差し替える。
func (d *Directory) WithClock(now func() time.Time) *Directory {
	d.now = now
	return d
}

// IsWhitelisted はメールアドレスが管理者ホワイトリストに含まれるかを返す。
func (d *Directory) IsWhitelisted(email string) bool {
	_, ok := d.admins[normalizeEmail(email)]
	return ok
}

// GetOrCreate はsubject IDでユーザーを検索し、存在すれば最終ログイン日時を更新して返す。
// 存在しなければ新規作成する。並行ログインで一意制約違反になった場合は既存行を再取得する。
func (d *Directory) GetOrCreate(ctx context.Context, info model.IdentityInfo) (*model.User, error) {
	existing, err := d.repo.FindBySubjectID(ctx, info.SubjectID)
	if err != nil {
		return nil, storageError("find user by subject", err)
	}
	if existing != nil {
		return d.touch(ctx, existing)
	}

	at := d.clock()
	user := &model.User{
		ID:          uuid.New().String(),
		SubjectID:   info.SubjectID,
		Email:       info.Email,
		DisplayName: info.DisplayName,
		PhotoURL:    info.AvatarURL,
		Preferences: model.Preferences{},
		IsAdmin:     d.IsWhitelisted(info.Email),
		LastLoginAt: at,
		CreatedAt:   at,
		UpdatedAt:   at,
	}

	if err := d.repo.Create(ctx, user); err != nil {
		if !database.IsUniqueViolation(err) {
			return nil, storageError("create user", err)
		}
		// 同じsubject IDの並行ログインが先に作成した行を使う
		existing, findErr := d.repo.FindBySubjectID(ctx, info.SubjectID)
		if findErr != nil {
			return nil, storageError("refetch user", findErr)
		}
		if existing == nil {
			// subject IDではなくemailの重複。別のIdPで登録済みの利用者
			slog.Warn("email already registered under another subject",
				slog.String("subject_id", info.SubjectID),
			)
			return nil, model.NewIdentityConflictError()
		}
		return d.touch(ctx, existing)
	}

	slog.Info("user created",
		slog.String("user_id", user.ID),
		slog.Bool("is_admin", user.IsAdmin),
	)
	return user, nil
}

// touch は既存ユーザーの最終ログイン日時を更新する。
// 日時は前回値より必ず大きくなる。
func (d *Directory) touch(ctx context.Context, user *model.User) (*model.User, error) {
	at := d.clock()
	if !at.After(user.LastLoginAt) {
		at = user.LastLoginAt.Add(time.Microsecond)
	}

	var isAdmin *bool
	if d.reevaluate {
		v := d.IsWhitelisted(user.Email)
		isAdmin = &v
	}

	if err := d.repo.UpdateLogin(ctx, user.ID, at, isAdmin); err != nil {
		return nil, storageError("update last login", err)
	}

	user.LastLoginAt = at
	user.UpdatedAt = at
	if isAdmin != nil {
		user.IsAdmin = *isAdmin
	}
	return user, nil
}

// Lookup はsubject IDでユーザーを取得する。存在しない場合はnilを返す。
func (d *Directory) Lookup(ctx context.Context, subjectID string) (*model.User, error) {
	user, err := d.repo.FindBySubjectID(ctx, subjectID)
	if err != nil {
		return nil, storageError("find user by subject", err)
	}
	return user, nil
}

// Resolve はsubject IDでユーザーを取得する。存在しない場合はUSER_NOT_FOUNDを返す。
func (d *Directory) Resolve(ctx context.Context, subjectID string) (*model.User, error) {
	user, err := d.Lookup(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// UpdateProfile はプロフィールを部分更新して更新後のユーザーを返す。
// 写真URLは空文字列（削除）か、プライベートアドレスを指さないhttp(s) URLのみ受け付ける。
// 自己紹介はタグを除去したプレーンテキストとして保存する。
func (d *Directory) UpdateProfile(ctx context.Context, subjectID string, update model.ProfileUpdate) (*model.User, error) {
	user, err := d.Resolve(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	if update.DisplayName != nil {
		name := d.sanitizer.PlainText(*update.DisplayName)
		if name == "" || utf8.RuneCountInString(name) > maxDisplayNameLength {
			return nil, model.NewInvalidProfileError(fmt.Sprintf("表示名は1〜%d文字で入力してください", maxDisplayNameLength))
		}
		update.DisplayName = &name
	}

	if update.PhotoURL != nil {
		photo := strings.TrimSpace(*update.PhotoURL)
		if photo != "" {
			if len(photo) > maxPhotoURLLength {
				return nil, model.NewInvalidProfileError("写真URLが長すぎます")
			}
			if err := d.urlGuard.ValidateURL(photo); err != nil {
				slog.Warn("rejected photo url",
					slog.String("user_id", user.ID),
					slog.String("error", err.Error()),
				)
				return nil, model.NewInvalidProfileError("写真URLが不正です")
			}
		}
		update.PhotoURL = &photo
	}

	if update.Bio != nil {
		bio := d.sanitizer.PlainText(*update.Bio)
		if utf8.RuneCountInString(bio) > maxBioLength {
			return nil, model.NewInvalidProfileError(fmt.Sprintf("自己紹介は%d文字以内で入力してください", maxBioLength))
		}
		update.Bio = &bio
	}

	at := d.clock()
	if err := d.repo.UpdateProfile(ctx, user.ID, update, at); err != nil {
		return nil, storageError("update profile", err)
	}

	if update.DisplayName != nil {
		user.DisplayName = *update.DisplayName
	}
	if update.PhotoURL != nil {
		user.PhotoURL = *update.PhotoURL
	}
	if update.Bio != nil {
		user.Bio = *update.Bio
	}
	if update.Preferences != nil {
		user.Preferences = update.Preferences
	}
	user.UpdatedAt = at
	return user, nil
}

// clock はDBの精度（マイクロ秒）に揃えたUTCの現在時刻を返す。
func (d *Directory) clock() time.Time {
	return d.now().UTC().Truncate(time.Microsecond)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// storageError はストレージ障害をログに記録し、詳細を含まないSTORAGE_ERRORに変換する。
func storageError(op string, err error) error {
	slog.Error("user directory storage failure",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	return model.NewStorageError(fmt.Errorf("%s: %w", op, err))
}
