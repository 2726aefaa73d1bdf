package model

import "time"

// DateLayout は予約日付の入出力形式。
const DateLayout = "2006-01-02"

// Booking は物件の予約を表す。期間は[StartDate, EndDate)の半開区間。
// Hostは物件所有者で、listingsテーブルから導出する。
type Booking struct {
	ID        int64
	ListingID int64
	Guest     string
	Host      string
	StartDate time.Time
	EndDate   time.Time
	CreatedAt time.Time
}

// Message は物件に関するユーザー間メッセージを表す。
type Message struct {
	ID        int64
	ListingID int64
	FromUser  string
	ToUser    string
	Body      string
	SentAt    time.Time
}

// InvolvesUser は指定ユーザーが送信者または受信者であるかを返す。
func (m *Message) InvolvesUser(username string) bool {
	return m.FromUser == username || m.ToUser == username
}
