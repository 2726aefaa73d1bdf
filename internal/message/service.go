// Package message は物件に関するユーザー間メッセージのドメインロジックを提供する。
package message

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/sharebnb/internal/events"
	"github.com/hitoshi/sharebnb/internal/model"
	"github.com/hitoshi/sharebnb/internal/repository"
	"github.com/hitoshi/sharebnb/internal/validate"
)

// UserFinder は宛先ユーザーの存在確認に使用する。
type UserFinder interface {
	FindByUsername(ctx context.Context, username string) (*model.User, error)
}

// ListingFinder は物件の存在確認と所有者の取得に使用する。
type ListingFinder interface {
	FindByID(ctx context.Context, id int64) (*model.Listing, error)
}

// TextCleaner は本文からHTMLを除去する。
type TextCleaner interface {
	Clean(text string) string
}

// SendInput はメッセージ送信の入力。送信者は常に操作主体となる。
type SendInput struct {
	ToUser string
	Body   string
}

// Service はメッセージのドメインロジックを提供する。
type Service struct {
	messages  repository.MessageRepository
	listings  ListingFinder
	users     UserFinder
	cleaner   TextCleaner
	publisher events.Publisher
}

// NewService はServiceを生成する。publisherはnilでもよい。
func NewService(
	messages repository.MessageRepository,
	listings ListingFinder,
	users UserFinder,
	cleaner TextCleaner,
	publisher events.Publisher,
) *Service {
	return &Service{
		messages:  messages,
		listings:  listings,
		users:     users,
		cleaner:   cleaner,
		publisher: publisher,
	}
}

// Send はactorからto_userへ物件に関するメッセージを送信する。
func (s *Service) Send(ctx context.Context, actor string, listingID int64, in SendInput) (*model.Message, error) {
	toUser := strings.TrimSpace(in.ToUser)
	body := s.cleaner.Clean(in.Body)

	errs := model.FieldErrors{}
	if validate.Required(errs, "body", body) {
		validate.MaxLength(errs, "body", body, validate.BodyMaxLength)
	}
	if validate.Required(errs, "to_user", toUser) && toUser == actor {
		errs.Add("to_user", "cannot send a message to yourself")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	listing, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("物件の取得に失敗しました: %w", err)
	}
	if listing == nil {
		return nil, model.NewListingNotFoundError()
	}

	recipient, err := s.users.FindByUsername(ctx, toUser)
	if err != nil {
		return nil, fmt.Errorf("宛先ユーザーの取得に失敗しました: %w", err)
	}
	if recipient == nil {
		return nil, model.NewFieldError("to_user", "user does not exist")
	}

	msg := &model.Message{
		ListingID: listingID,
		FromUser:  actor,
		ToUser:    toUser,
		Body:      body,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		if errors.Is(err, repository.ErrForeignKey) {
			return nil, model.NewConflictError("listing or recipient no longer exists")
		}
		return nil, fmt.Errorf("メッセージの作成に失敗しました: %w", err)
	}

	slog.Info("メッセージを送信しました",
		slog.Int64("message_id", msg.ID),
		slog.Int64("listing_id", msg.ListingID),
		slog.String("from_user", msg.FromUser),
		slog.String("to_user", msg.ToUser),
	)
	events.PublishBestEffort(ctx, s.publisher, events.MessageSent, events.MessageSentEvent{
		MessageID: msg.ID,
		ListingID: msg.ListingID,
		FromUser:  msg.FromUser,
		ToUser:    msg.ToUser,
		SentAt:    msg.SentAt,
	})
	return msg, nil
}

// ListForListing は物件に紐づくメッセージを返す。
// 物件所有者は全件、それ以外は自分が送信者か受信者であるものだけを参照できる。
func (s *Service) ListForListing(ctx context.Context, actor string, listingID int64) ([]*model.Message, error) {
	listing, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("物件の取得に失敗しました: %w", err)
	}
	if listing == nil {
		return nil, model.NewListingNotFoundError()
	}

	msgs, err := s.messages.ListByListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("メッセージ一覧の取得に失敗しました: %w", err)
	}
	if listing.UserID == actor {
		return msgs, nil
	}

	visible := make([]*model.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.InvolvesUser(actor) {
			visible = append(visible, m)
		}
	}
	return visible, nil
}

// ListForUser はユーザーが送受信したメッセージを返す。本人のみ参照できる。
func (s *Service) ListForUser(ctx context.Context, actor, username string) ([]*model.Message, error) {
	if actor != username {
		return nil, model.NewForbiddenError("you can only view your own messages")
	}
	msgs, err := s.messages.ListByUser(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("メッセージ一覧の取得に失敗しました: %w", err)
	}
	return msgs, nil
}
