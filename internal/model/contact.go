package model

import "time"

// ContactInfo はサイトに掲載する連絡先の1項目。
// 公開一覧にはIsVisibleが真のものだけをDisplayOrderの昇順で並べる。
type ContactInfo struct {
	ID           string    `db:"id" json:"id"`
	Label        string    `db:"label" json:"label"`
	Value        string    `db:"value" json:"value"`
	ContactType  string    `db:"contact_type" json:"contact_type"`
	Icon         string    `db:"icon" json:"icon"`
	IsVisible    bool      `db:"is_visible" json:"is_visible"`
	DisplayOrder int       `db:"display_order" json:"display_order"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ContactInfoUpdate は連絡先の部分更新内容。nilのフィールドは変更しない。
type ContactInfoUpdate struct {
	Label        *string `json:"label"`
	Value        *string `json:"value"`
	ContactType  *string `json:"contact_type"`
	Icon         *string `json:"icon"`
	IsVisible    *bool   `json:"is_visible"`
	DisplayOrder *int    `json:"display_order"`
}
