// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, engagement, system
	Action   string // ユーザー向け対処方法
	Err      error  // 原因（ログ用。レスポンスには含めない）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// 定義済みエラーコード
const (
	ErrCodeInvalidIdentityToken = "INVALID_IDENTITY_TOKEN"
	ErrCodeTokenExpired         = "TOKEN_EXPIRED"
	ErrCodeTokenInvalid         = "TOKEN_INVALID"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodePostNotFound         = "POST_NOT_FOUND"
	ErrCodeCommentNotFound      = "COMMENT_NOT_FOUND"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeInvalidParent        = "INVALID_PARENT_COMMENT"
	ErrCodeInvalidCommentText   = "INVALID_COMMENT_TEXT"
	ErrCodeInvalidProfile       = "INVALID_PROFILE"
	ErrCodeInvalidPost          = "INVALID_POST"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeIdentityConflict     = "IDENTITY_CONFLICT"
	ErrCodeContactNotFound      = "CONTACT_NOT_FOUND"
	ErrCodeInvalidContact       = "INVALID_CONTACT"
	ErrCodeRateLimited          = "RATE_LIMITED"
	ErrCodeStorage              = "STORAGE_ERROR"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// IsCode はerrがAPIErrorで、指定コードを持つかを判定する。
func IsCode(err error, code string) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Code == code
}

// AsAPIError はerrの連鎖からAPIErrorを取り出す。
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// NewInvalidIdentityTokenError は外部IDトークンの検証失敗エラーを生成する。
// 失敗理由の詳細はcauseに保持し、クライアントには返さない。
func NewInvalidIdentityTokenError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidIdentityToken,
		Message:  "IDトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "もう一度ログインしてください。",
		Err:      cause,
	}
}

// NewTokenExpiredError はセッショントークン期限切れエラーを生成する。
func NewTokenExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenExpired,
		Message:  "セッションの有効期限が切れています。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewTokenInvalidError は不正なセッショントークンエラーを生成する。
func NewTokenInvalidError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeTokenInvalid,
		Message:  "セッショントークンが不正です。",
		Category: "auth",
		Action:   "再度ログインしてください。",
		Err:      cause,
	}
}

// NewUnauthorizedError は認証情報が無い場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  fmt.Sprintf("この操作を行う権限がありません: %s", reason),
		Category: "auth",
		Action:   "権限のあるアカウントで操作してください。",
	}
}

// NewPostNotFoundError は記事未検出エラーを生成する。
func NewPostNotFoundError(postID string) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("指定された記事が見つかりません: %s", postID),
		Category: "engagement",
		Action:   "記事IDを確認してください。",
	}
}

// NewCommentNotFoundError はコメント未検出エラーを生成する。
func NewCommentNotFoundError(commentID string) *APIError {
	return &APIError{
		Code:     ErrCodeCommentNotFound,
		Message:  fmt.Sprintf("指定されたコメントが見つかりません: %s", commentID),
		Category: "engagement",
		Action:   "コメントIDを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidParentCommentError は返信先コメントが不正な場合のエラーを生成する。
func NewInvalidParentCommentError(parentID string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidParent,
		Message:  fmt.Sprintf("返信先のコメントが不正です: %s", parentID),
		Category: "validation",
		Action:   "同じ記事のコメントに返信してください。",
	}
}

// NewInvalidCommentTextError はコメント本文が不正な場合のエラーを生成する。
func NewInvalidCommentTextError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCommentText,
		Message:  fmt.Sprintf("コメント本文が不正です: %s", reason),
		Category: "validation",
		Action:   "1文字以上5000文字以内で入力してください。",
	}
}

// NewInvalidProfileError はプロフィール更新内容が不正な場合のエラーを生成する。
func NewInvalidProfileError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidProfile,
		Message:  fmt.Sprintf("プロフィールの内容が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidPostError は記事の入力内容が不正な場合のエラーを生成する。
func NewInvalidPostError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPost,
		Message:  fmt.Sprintf("記事の内容が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidRequestError はリクエストボディが不正な場合のエラーを生成する。
func NewInvalidRequestError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  message,
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewIdentityConflictError は別のsubject IDで同じメールアドレスが登録済みの場合のエラーを生成する。
// IdPを切り替えた利用者が該当する。
func NewIdentityConflictError() *APIError {
	return &APIError{
		Code:     ErrCodeIdentityConflict,
		Message:  "このメールアドレスは別のログイン方法で登録されています。",
		Category: "auth",
		Action:   "最初に登録したログイン方法を使用するか、管理者に連絡してください。",
	}
}

// NewContactNotFoundError は連絡先未検出エラーを生成する。
func NewContactNotFoundError(contactID string) *APIError {
	return &APIError{
		Code:     ErrCodeContactNotFound,
		Message:  fmt.Sprintf("連絡先が見つかりません: %s", contactID),
		Category: "validation",
		Action:   "連絡先IDを確認してください。",
	}
}

// NewInvalidContactError は連絡先の入力内容が不正な場合のエラーを生成する。
func NewInvalidContactError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidContact,
		Message:  fmt.Sprintf("連絡先の内容が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再度お試しください。",
	}
}

// NewStorageError はストレージ障害エラーを生成する。
// 原因はログにのみ記録され、レスポンスには含まれない。
func NewStorageError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeStorage,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
		Err:      cause,
	}
}

// NewInternalError は汎用の内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
