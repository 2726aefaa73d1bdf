// Package validate は入力値検証の共通ルールを提供する。
// 各関数は違反をmodel.FieldErrorsへ追記し、呼び出し側がまとめて返す。
package validate

import (
	"errors"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/sharebnb/internal/model"
)

// 入力長の上限・下限
const (
	UsernameMaxLength    = 30
	PasswordMinLength    = 6
	PasswordMaxBytes     = 72 // bcryptが扱える上限
	NameMaxLength        = 100
	TextMaxLength        = 255
	DescriptionMaxLength = 5000
	BodyMaxLength        = 2000
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Required は空白のみの値を未入力として扱う。
// 未入力の場合はfalseを返す。
func Required(errs model.FieldErrors, field, value string) bool {
	if strings.TrimSpace(value) == "" {
		errs.Add(field, field+" is required")
		return false
	}
	return true
}

// MaxLength は文字数（rune数）の上限を検証する。
func MaxLength(errs model.FieldErrors, field, value string, max int) {
	if utf8.RuneCountInString(value) > max {
		errs.Add(field, field+" is too long")
	}
}

// Username はusernameの形式を検証する。
func Username(errs model.FieldErrors, value string) {
	if !Required(errs, "username", value) {
		return
	}
	if utf8.RuneCountInString(value) > UsernameMaxLength {
		errs.Add("username", "username must be at most 30 characters")
	}
	if !usernamePattern.MatchString(value) {
		errs.Add("username", "username may only contain letters, digits, '_', '.' and '-'")
	}
}

// Password はパスワードの最小長（文字数）と最大長（バイト数）を検証する。
func Password(errs model.FieldErrors, value string) {
	if value == "" {
		errs.Add("password", "password is required")
		return
	}
	if utf8.RuneCountInString(value) < PasswordMinLength {
		errs.Add("password", "password must be at least 6 characters")
	}
	if len(value) > PasswordMaxBytes {
		errs.Add("password", "password must be at most 72 bytes")
	}
}

// Email はメールアドレスが表示名を含まない単独アドレスであることを検証する。
func Email(errs model.FieldErrors, value string) {
	if !Required(errs, "email", value) {
		return
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		errs.Add("email", "email must be a valid email address")
	}
}

// HTTPURL は空でない値がhttp(s)の絶対URLであることを検証する。
// 空文字は許容する。
func HTTPURL(errs model.FieldErrors, field, value string) {
	if value == "" {
		return
	}
	if !IsHTTPURL(value) {
		errs.Add(field, field+" must be an absolute http(s) URL")
	}
}

// NonNegativeInt は整数文字列を0以上のintとして解析する。
// INTEGER列に収まらない値も違反として扱う。
// 解析できない場合はエラーを追記し、okにfalseを返す。
func NonNegativeInt(errs model.FieldErrors, field, value string) (n int, ok bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		errs.Add(field, field+" is required")
		return 0, false
	}
	v, err := strconv.ParseInt(value, 10, 32)
	if errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(value, "-") {
		errs.Add(field, field+" must be at most 2147483647")
		return 0, false
	}
	if err != nil || v < 0 {
		errs.Add(field, field+" must be a non-negative integer")
		return 0, false
	}
	return int(v), true
}

// IsHTTPURL はvalueがホストを持つhttp(s)の絶対URLかを返す。
func IsHTTPURL(value string) bool {
	u, err := url.Parse(value)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
