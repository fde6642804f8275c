// Package repository はデータ永続化のインターフェースを定義する。
//
// 実装はsqlxを介してPostgreSQLとSQLiteの両方で動作する。
// クエリは?プレースホルダで記述し、実行時にドライバのバインド形式へRebindする。
package repository

import (
	"context"
	"time"

	"github.com/folio/blogapi/internal/model"
)

// UserRepository はユーザープロフィールの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindBySubjectID は外部IdPのsubject IDでユーザーを取得する。見つからない場合はnilを返す。
	FindBySubjectID(ctx context.Context, subjectID string) (*model.User, error)

	// Create はユーザーを作成する。
	// subject_idまたはemailが重複する場合は一意制約違反のエラーをそのまま返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateLogin は最終ログイン日時を更新する。isAdminがnilでなければ管理者フラグも更新する。
	UpdateLogin(ctx context.Context, id string, at time.Time, isAdmin *bool) error

	// UpdateProfile はプロフィールを部分更新する。
	UpdateProfile(ctx context.Context, id string, update model.ProfileUpdate, at time.Time) error
}

// PostRepository はブログ記事の永続化インターフェース。
type PostRepository interface {
	// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Post, error)

	// Create は記事を作成する。
	Create(ctx context.Context, post *model.Post) error

	// Update は記事の編集可能な列を上書きする。対象が存在しない場合はfalseを返す。
	// スラッグが重複する場合は一意制約違反のエラーをそのまま返す。
	Update(ctx context.Context, post *model.Post) (bool, error)

	// ListPublished は公開中の記事をfilterで絞り込み、作成日時の新しい順に返す。
	ListPublished(ctx context.Context, filter model.PostFilter) ([]model.Post, error)

	// UpdateStatus は公開状態を更新する。対象が存在しない場合はfalseを返す。
	UpdateStatus(ctx context.Context, id string, status model.PostStatus, at time.Time) (bool, error)

	// Delete は記事を削除する。いいね・保存・コメントはCASCADE削除される。
	// 対象が存在しない場合はfalseを返す。
	Delete(ctx context.Context, id string) (bool, error)

	// IncrementViews は閲覧数を1増やす。
	IncrementViews(ctx context.Context, id string) error

	// ListInteractedByUser はユーザーがいいね（または保存）した公開記事を新しい操作順に返す。
	ListInteractedByUser(ctx context.Context, kind model.InteractionKind, userID string) ([]model.InteractedPost, error)
}

// InteractionRepository はいいね・保存の永続化インターフェース。
type InteractionRepository interface {
	// Toggle は(post, user)の行が存在すれば削除してカウンタを減らし、存在しなければ作成してカウンタを増やす。
	// 行の変更とカウンタの更新は同一トランザクションで行う。
	// 戻り値はトグル後の状態と、更新後のカウンタ値。
	Toggle(ctx context.Context, kind model.InteractionKind, postID, userID string, at time.Time) (bool, int, error)

	// Exists は(post, user)の行が存在するかを返す。
	Exists(ctx context.Context, kind model.InteractionKind, postID, userID string) (bool, error)

	// Count は記事に対する行数を返す。
	Count(ctx context.Context, kind model.InteractionKind, postID string) (int, error)
}

// ContactRepository は連絡先の永続化インターフェース。
type ContactRepository interface {
	// FindByID は指定IDの連絡先を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.ContactInfo, error)

	// List は連絡先を表示順に返す。visibleOnlyが真なら公開中のものだけを返す。
	List(ctx context.Context, visibleOnly bool) ([]model.ContactInfo, error)

	// Create は連絡先を作成する。
	Create(ctx context.Context, contact *model.ContactInfo) error

	// Update は連絡先の全列を上書きする。対象が存在しない場合はfalseを返す。
	Update(ctx context.Context, contact *model.ContactInfo) (bool, error)

	// Delete は連絡先を削除する。対象が存在しない場合はfalseを返す。
	Delete(ctx context.Context, id string) (bool, error)
}

// CommentRepository はコメントの永続化インターフェース。
type CommentRepository interface {
	// FindByID は指定IDのコメントを取得する（論理削除済みも含む）。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Comment, error)

	// Create はコメントを作成する。
	Create(ctx context.Context, comment *model.Comment) error

	// UpdateText は本文を更新し、編集済みフラグを立てる。
	UpdateText(ctx context.Context, id, text string, at time.Time) error

	// SoftDelete は論理削除フラグを立てる。行は物理削除しない。
	SoftDelete(ctx context.Context, id string, at time.Time) error

	// ListByPost は記事の未削除コメントを投稿者情報付きで作成日時の昇順に返す。
	ListByPost(ctx context.Context, postID string) ([]model.CommentView, error)

	// ListByUser はユーザーの未削除コメントを記事情報付きで新しい順に返す。
	ListByUser(ctx context.Context, userID string) ([]model.UserCommentView, error)
}
