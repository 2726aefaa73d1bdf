// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"sort"
)

// APIError は統一エラーフォーマットを表す。
// MessageまたはFieldsのどちらかがクライアントへ返される。
type APIError struct {
	Code     string              // エラーコード
	Message  string              // クライアント向けエラーメッセージ
	Category string              // カテゴリ: validation, auth, access, not_found, conflict, system
	Fields   map[string][]string // フィールド単位のバリデーションエラー
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Sprintf("[%s] invalid fields: %v", e.Code, keys)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_FAILED"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeBodyTooLarge       = "BODY_TOO_LARGE"
	ErrCodeMissingToken       = "MISSING_TOKEN"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeListingNotFound    = "LISTING_NOT_FOUND"
	ErrCodeBookingNotFound    = "BOOKING_NOT_FOUND"
	ErrCodeUsernameTaken      = "USERNAME_TAKEN"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// FieldErrors はフィールド名ごとのバリデーションエラーを蓄積する。
type FieldErrors map[string][]string

// Add はフィールドにエラーメッセージを追加する。
func (f FieldErrors) Add(field, message string) {
	f[field] = append(f[field], message)
}

// HasErrors はエラーが1件以上あるかを返す。
func (f FieldErrors) HasErrors() bool {
	return len(f) > 0
}

// Err はエラーがあればValidationエラーを、なければnilを返す。
func (f FieldErrors) Err() error {
	if !f.HasErrors() {
		return nil
	}
	return NewValidationError(f)
}

// NewValidationError はフィールド単位のバリデーションエラーを生成する。
func NewValidationError(fields FieldErrors) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  "validation failed",
		Category: "validation",
		Fields:   fields,
	}
}

// NewFieldError は単一フィールドのバリデーションエラーを生成する。
func NewFieldError(field, message string) *APIError {
	return NewValidationError(FieldErrors{field: {message}})
}

// NewInvalidRequestError はリクエストボディが解析できない場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  reason,
		Category: "validation",
	}
}

// NewBodyTooLargeError はリクエストボディが上限を超えた場合のエラーを生成する。
func NewBodyTooLargeError() *APIError {
	return &APIError{
		Code:     ErrCodeBodyTooLarge,
		Message:  "request body too large",
		Category: "validation",
	}
}

// NewMissingTokenError はAuthorizationヘッダーが無い場合のエラーを生成する。
func NewMissingTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingToken,
		Message:  "authorization token required",
		Category: "auth",
	}
}

// NewUnauthorizedError はトークンが検証できない場合のエラーを生成する。
// 署名不正、期限切れ、失効済みを区別しない。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "invalid token",
		Category: "auth",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// ユーザーの存在有無は区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "invalid credentials",
		Category: "auth",
	}
}

// NewForbiddenError は所有者チェックに失敗した場合のエラーを生成する。
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  message,
		Category: "access",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "user not found",
		Category: "not_found",
	}
}

// NewListingNotFoundError は物件が見つからない場合のエラーを生成する。
func NewListingNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeListingNotFound,
		Message:  "listing not found",
		Category: "not_found",
	}
}

// NewBookingNotFoundError は予約が見つからない場合のエラーを生成する。
func NewBookingNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeBookingNotFound,
		Message:  "booking not found",
		Category: "not_found",
	}
}

// NewUsernameTakenError はユーザー名重複エラーを生成する。
func NewUsernameTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeUsernameTaken,
		Message:  "username already taken",
		Category: "conflict",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "email already taken",
		Category: "conflict",
	}
}

// NewConflictError は一意制約・外部キー制約違反の汎用エラーを生成する。
// ドライバのエラー文言はクライアントへ返さない。
func NewConflictError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeConflict,
		Message:  message,
		Category: "conflict",
	}
}

// NewInternalError は内部エラーの汎用レスポンスを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "internal server error",
		Category: "system",
	}
}
