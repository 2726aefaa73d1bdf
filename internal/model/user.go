// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// usernameが主キーで、作成後は変更できない。
type User struct {
	Username     string
	PasswordHash string // bcryptダイジェスト。外部へシリアライズしない
	Email        string
	FirstName    string
	LastName     string
	ImageURL     string
	Location     string // 空文字はNULLとして保存する
	CreatedAt    time.Time
}

// Identity は検証済みトークンから得られた操作主体を表す。
// Access Control Guardが生成し、サービス呼び出しへ明示的に渡される。
type Identity struct {
	Username  string
	TokenID   string
	ExpiresAt time.Time
}
