// Package model はドメインモデルを定義する。
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// User はブログ利用者のプロフィールを表す。
// SubjectIDは外部IdPが発行した不変の識別子で、ローカルユーザーとの紐付けキーとなる。
type User struct {
	ID          string      `db:"id" json:"id"`
	SubjectID   string      `db:"subject_id" json:"subject_id"`
	Email       string      `db:"email" json:"email"`
	DisplayName string      `db:"display_name" json:"display_name"`
	PhotoURL    string      `db:"photo_url" json:"photo_url"`
	Bio         string      `db:"bio" json:"bio"`
	Preferences Preferences `db:"preferences" json:"preferences"`
	IsAdmin     bool        `db:"is_admin" json:"is_admin"`
	LastLoginAt time.Time   `db:"last_login_at" json:"last_login_at"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// IdentityInfo は外部IdPのトークン検証で得られる本人情報。
type IdentityInfo struct {
	SubjectID   string
	Email       string
	DisplayName string
	AvatarURL   string
}

// ProfileUpdate はプロフィールの部分更新内容。nilのフィールドは変更しない。
type ProfileUpdate struct {
	DisplayName *string
	PhotoURL    *string
	Bio         *string
	Preferences Preferences
}

// Preferences はユーザー設定の任意のキーバリューを表す。
// DBにはJSON文字列として保存する。
type Preferences map[string]any

// Value はdriver.Valuerを実装する。
func (p Preferences) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal preferences: %w", err)
	}
	return string(b), nil
}

// Scan はsql.Scannerを実装する。
func (p *Preferences) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = Preferences{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported preferences type: %T", src)
	}
	if len(raw) == 0 {
		*p = Preferences{}
		return nil
	}
	out := Preferences{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("failed to unmarshal preferences: %w", err)
	}
	*p = out
	return nil
}
