// Package events はドメインイベント（予約作成、メッセージ送信）をRabbitMQへ発行する。
package events

import (
	"context"
	"log/slog"
	"time"
)

// ルーティングキー
const (
	BookingCreated = "booking.created"
	MessageSent    = "message.sent"
)

// BookingCreatedEvent は予約作成時に発行するイベント。
type BookingCreatedEvent struct {
	BookingID int64     `json:"bookingId"`
	ListingID int64     `json:"listingId"`
	Guest     string    `json:"guest"`
	Host      string    `json:"host"`
	StartDate string    `json:"startDate"`
	EndDate   string    `json:"endDate"`
	CreatedAt time.Time `json:"createdAt"`
}

// MessageSentEvent はメッセージ送信時に発行するイベント。本文は含めない。
type MessageSentEvent struct {
	MessageID int64     `json:"messageId"`
	ListingID int64     `json:"listingId"`
	FromUser  string    `json:"fromUser"`
	ToUser    string    `json:"toUser"`
	SentAt    time.Time `json:"sentAt"`
}

// Publisher はイベント発行のインターフェース。
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Noop はイベントを破棄するPublisher。AMQP_URL未設定時に使用する。
type Noop struct{}

// Publish は何もしない。
func (Noop) Publish(context.Context, string, any) error { return nil }

// PublishBestEffort はイベントを発行し、失敗してもログに記録するのみとする。
// 発行はDBへのコミット後に行うため、失敗しても操作自体は成功として扱う。
func PublishBestEffort(ctx context.Context, p Publisher, routingKey string, payload any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, routingKey, payload); err != nil {
		slog.Warn("イベントの発行に失敗しました",
			slog.String("routing_key", routingKey),
			slog.String("error", err.Error()),
		)
	}
}
