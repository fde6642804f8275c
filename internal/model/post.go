package model

import "time"

// PostStatus は記事の公開状態を表す。
type PostStatus string

const (
	PostStatusPublished PostStatus = "published"
	PostStatusDraft     PostStatus = "draft"
	PostStatusArchived  PostStatus = "archived"
)

// Valid は既知の公開状態かを返す。
func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusPublished, PostStatusDraft, PostStatusArchived:
		return true
	default:
		return false
	}
}

// Post はブログ記事を表す。
// LikesCount/SavesCountは非正規化カウンタで、対応するいいね・保存行の件数と一致する。
type Post struct {
	ID         string     `db:"id" json:"id"`
	Title      string     `db:"title" json:"title"`
	Slug       string     `db:"slug" json:"slug"`
	Excerpt    string     `db:"excerpt" json:"excerpt"`
	Content    string     `db:"content" json:"content"`
	Category   string     `db:"category" json:"category"`
	Status     PostStatus `db:"status" json:"status"`
	IsFeatured bool       `db:"is_featured" json:"is_featured"`
	LikesCount int        `db:"likes_count" json:"likes_count"`
	SavesCount int        `db:"saves_count" json:"saves_count"`
	ViewsCount int        `db:"views_count" json:"views_count"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// PostFilter は公開記事一覧の絞り込みとページング条件。
type PostFilter struct {
	Category string
	Featured *bool
	Limit    int
	Offset   int
}

// PostUpdate は記事の部分更新内容。nilのフィールドは変更しない。
type PostUpdate struct {
	Title      *string     `json:"title"`
	Slug       *string     `json:"slug"`
	Excerpt    *string     `json:"excerpt"`
	Content    *string     `json:"content"`
	Category   *string     `json:"category"`
	Status     *PostStatus `json:"status"`
	IsFeatured *bool       `json:"is_featured"`
}

// InteractedPost はユーザーがいいね・保存した記事と、その操作日時を表す。
type InteractedPost struct {
	Post
	InteractedAt time.Time `db:"interacted_at" json:"interacted_at"`
}

// InteractionKind はトグル型インタラクションの種類。
type InteractionKind string

const (
	InteractionLike InteractionKind = "like"
	InteractionSave InteractionKind = "save"
)
