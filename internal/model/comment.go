package model

import "time"

// Comment は記事へのコメントを表す。
// ParentCommentIDは同じ記事のコメントを指し、返信ツリーを構成する。
// 削除は論理削除（IsDeleted）のみで、子コメントは親が削除されても残る。
type Comment struct {
	ID              string    `db:"id" json:"id"`
	PostID          string    `db:"post_id" json:"post_id"`
	UserID          string    `db:"user_id" json:"user_id"`
	ParentCommentID *string   `db:"parent_comment_id" json:"parent_comment_id"`
	Text            string    `db:"text" json:"text"`
	IsEdited        bool      `db:"is_edited" json:"is_edited"`
	IsDeleted       bool      `db:"is_deleted" json:"-"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// CommentView は一覧表示用に投稿者情報を結合したコメント。
type CommentView struct {
	Comment
	AuthorName  string `db:"author_name" json:"author_name"`
	AuthorPhoto string `db:"author_photo" json:"author_photo"`
}

// UserCommentView はユーザー自身のコメント一覧用に記事情報を結合したコメント。
type UserCommentView struct {
	Comment
	PostTitle string `db:"post_title" json:"post_title"`
	PostSlug  string `db:"post_slug" json:"post_slug"`
}
