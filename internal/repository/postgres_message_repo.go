package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/sharebnb/internal/model"
)

// PostgresMessageRepo はPostgreSQLを使用したメッセージリポジトリ。
type PostgresMessageRepo struct {
	db *sql.DB
}

// NewPostgresMessageRepo はPostgresMessageRepoを生成する。
func NewPostgresMessageRepo(db *sql.DB) *PostgresMessageRepo {
	return &PostgresMessageRepo{db: db}
}

// Create はメッセージを作成し、IDとsent_atを書き戻す。
// 物件または宛先ユーザーが存在しない場合はErrForeignKeyを返す。
func (r *PostgresMessageRepo) Create(ctx context.Context, message *model.Message) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO messages (listing_id, from_user, to_user, body)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, sent_at`,
		message.ListingID, message.FromUser, message.ToUser, message.Body,
	).Scan(&message.ID, &message.SentAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", classifyPQError(err))
	}
	return nil
}

// ListByListing は物件に紐づくメッセージを新しい順で返す。
func (r *PostgresMessageRepo) ListByListing(ctx context.Context, listingID int64) ([]*model.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, listing_id, from_user, to_user, body, sent_at
		 FROM messages WHERE listing_id = $1
		 ORDER BY sent_at DESC, id DESC`,
		listingID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages by listing: %w", err)
	}
	return collectMessages(rows)
}

// ListByUser は指定ユーザーが送信者または受信者であるメッセージを新しい順で返す。
func (r *PostgresMessageRepo) ListByUser(ctx context.Context, username string) ([]*model.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, listing_id, from_user, to_user, body, sent_at
		 FROM messages WHERE from_user = $1 OR to_user = $1
		 ORDER BY sent_at DESC, id DESC`,
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages by user: %w", err)
	}
	return collectMessages(rows)
}

func collectMessages(rows *sql.Rows) ([]*model.Message, error) {
	defer rows.Close()

	messages := []*model.Message{}
	for rows.Next() {
		m := &model.Message{}
		if err := rows.Scan(&m.ID, &m.ListingID, &m.FromUser, &m.ToUser, &m.Body, &m.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}

// compile-time interface check
var _ MessageRepository = (*PostgresMessageRepo)(nil)
