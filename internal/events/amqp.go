package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// channel はAMQPPublisherが使用するチャネル操作の部分集合。
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// PublishRecorder はイベント発行結果のメトリクス記録インターフェース。
type PublishRecorder interface {
	RecordEventPublished(routingKey, result string)
}

// AMQPPublisher はtopic exchangeへJSONイベントを発行する。
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       channel
	exchange string
	recorder PublishRecorder
}

// NewAMQPPublisher はRabbitMQへ接続し、exchangeを宣言する。recorderはnilでもよい。
func NewAMQPPublisher(url, exchange string, recorder PublishRecorder) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange, recorder: recorder}, nil
}

// Publish はpayloadをJSONにして発行する。
func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		p.record(routingKey, "error")
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	p.mu.Unlock()
	if err != nil {
		p.record(routingKey, "error")
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	p.record(routingKey, "success")
	return nil
}

// Close はチャネルと接続を閉じる。
func (p *AMQPPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func (p *AMQPPublisher) record(routingKey, result string) {
	if p.recorder != nil {
		p.recorder.RecordEventPublished(routingKey, result)
	}
}
