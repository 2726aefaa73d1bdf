// Package booking は予約の作成と参照のドメインロジックを提供する。
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/sharebnb/internal/events"
	"github.com/hitoshi/sharebnb/internal/model"
	"github.com/hitoshi/sharebnb/internal/repository"
)

// CreateInput は予約作成の入力。日付はYYYY-MM-DD形式。
type CreateInput struct {
	ListingID int64
	StartDate string
	EndDate   string
}

// Service は予約のドメインロジックを提供する。
// ゲストは常に操作主体（actor）で、参照はゲストかホストのみ許可する。
type Service struct {
	bookings  repository.BookingRepository
	listings  repository.ListingRepository
	publisher events.Publisher
}

// NewService はServiceを生成する。publisherはnilでもよい。
func NewService(
	bookings repository.BookingRepository,
	listings repository.ListingRepository,
	publisher events.Publisher,
) *Service {
	return &Service{
		bookings:  bookings,
		listings:  listings,
		publisher: publisher,
	}
}

// Create はactorをゲストとして予約を作成する。
// 期間の重複は検査しない。
func (s *Service) Create(ctx context.Context, actor string, in CreateInput) (*model.Booking, error) {
	errs := model.FieldErrors{}
	if in.ListingID <= 0 {
		errs.Add("listing_id", "listing_id is required")
	}
	start, startOK := parseDate(errs, "start_date", in.StartDate)
	end, endOK := parseDate(errs, "end_date", in.EndDate)
	if startOK && endOK && !end.After(start) {
		errs.Add("end_date", "end_date must be after start_date")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	listing, err := s.listings.FindByID(ctx, in.ListingID)
	if err != nil {
		return nil, fmt.Errorf("物件の取得に失敗しました: %w", err)
	}
	if listing == nil {
		return nil, model.NewListingNotFoundError()
	}

	booking := &model.Booking{
		ListingID: in.ListingID,
		Guest:     actor,
		StartDate: start,
		EndDate:   end,
	}
	if err := s.bookings.Create(ctx, booking); err != nil {
		if errors.Is(err, repository.ErrForeignKey) {
			return nil, model.NewListingNotFoundError()
		}
		return nil, fmt.Errorf("予約の作成に失敗しました: %w", err)
	}

	slog.Info("予約を作成しました",
		slog.Int64("booking_id", booking.ID),
		slog.Int64("listing_id", booking.ListingID),
		slog.String("guest", booking.Guest),
	)
	events.PublishBestEffort(ctx, s.publisher, events.BookingCreated, events.BookingCreatedEvent{
		BookingID: booking.ID,
		ListingID: booking.ListingID,
		Guest:     booking.Guest,
		Host:      booking.Host,
		StartDate: booking.StartDate.Format(model.DateLayout),
		EndDate:   booking.EndDate.Format(model.DateLayout),
		CreatedAt: booking.CreatedAt,
	})
	return booking, nil
}

// Get は予約を取得する。ゲストと物件所有者以外は403になる。
func (s *Service) Get(ctx context.Context, actor string, id int64) (*model.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("予約の取得に失敗しました: %w", err)
	}
	if booking == nil {
		return nil, model.NewBookingNotFoundError()
	}
	if booking.Guest != actor && booking.Host != actor {
		return nil, model.NewForbiddenError("you are not a party to this booking")
	}
	return booking, nil
}

// ListForGuest はactorがゲストである予約を返す。
func (s *Service) ListForGuest(ctx context.Context, actor string) ([]*model.Booking, error) {
	bookings, err := s.bookings.ListByGuest(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("予約一覧の取得に失敗しました: %w", err)
	}
	return bookings, nil
}

// ListForListing は物件の予約一覧を返す。物件所有者のみ参照できる。
func (s *Service) ListForListing(ctx context.Context, actor string, listingID int64) ([]*model.Booking, error) {
	listing, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("物件の取得に失敗しました: %w", err)
	}
	if listing == nil {
		return nil, model.NewListingNotFoundError()
	}
	if listing.UserID != actor {
		return nil, model.NewForbiddenError("you do not own this listing")
	}

	bookings, err := s.bookings.ListByListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("予約一覧の取得に失敗しました: %w", err)
	}
	return bookings, nil
}

func parseDate(errs model.FieldErrors, field, value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		errs.Add(field, field+" is required")
		return time.Time{}, false
	}
	d, err := time.Parse(model.DateLayout, value)
	if err != nil {
		errs.Add(field, field+" must be a date in YYYY-MM-DD format")
		return time.Time{}, false
	}
	return d, true
}
