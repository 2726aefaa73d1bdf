package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/sharebnb/internal/model"
)

// bookingSelect はホスト（物件所有者）を結合した予約取得クエリ。
const bookingSelect = `
	SELECT b.id, b.listing_id, b.guest, l.user_id, b.start_date, b.end_date, b.created_at
	FROM bookings b
	JOIN listings l ON l.id = b.listing_id`

// PostgresBookingRepo はPostgreSQLを使用した予約リポジトリ。
type PostgresBookingRepo struct {
	db *sql.DB
}

// NewPostgresBookingRepo はPostgresBookingRepoを生成する。
func NewPostgresBookingRepo(db *sql.DB) *PostgresBookingRepo {
	return &PostgresBookingRepo{db: db}
}

// Create は予約を作成し、ID、created_at、Hostを書き戻す。
// 日付はタイムゾーン変換を避けるためYYYY-MM-DD文字列で渡す。
// 物件が存在しない場合はErrForeignKeyを返す。
func (r *PostgresBookingRepo) Create(ctx context.Context, booking *model.Booking) error {
	err := r.db.QueryRowContext(ctx,
		`WITH inserted AS (
		     INSERT INTO bookings (listing_id, guest, start_date, end_date)
		     VALUES ($1, $2, $3, $4)
		     RETURNING id, listing_id, created_at
		 )
		 SELECT inserted.id, inserted.created_at, l.user_id
		 FROM inserted JOIN listings l ON l.id = inserted.listing_id`,
		booking.ListingID, booking.Guest,
		booking.StartDate.Format(model.DateLayout), booking.EndDate.Format(model.DateLayout),
	).Scan(&booking.ID, &booking.CreatedAt, &booking.Host)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", classifyPQError(err))
	}
	return nil
}

// FindByID は指定IDの予約を取得する。見つからない場合はnilを返す。
func (r *PostgresBookingRepo) FindByID(ctx context.Context, id int64) (*model.Booking, error) {
	row := r.db.QueryRowContext(ctx, bookingSelect+` WHERE b.id = $1`, id)
	booking, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return booking, nil
}

// ListByGuest は指定ユーザーがゲストである予約を開始日順で返す。
func (r *PostgresBookingRepo) ListByGuest(ctx context.Context, guest string) ([]*model.Booking, error) {
	rows, err := r.db.QueryContext(ctx, bookingSelect+` WHERE b.guest = $1 ORDER BY b.start_date, b.id`, guest)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings by guest: %w", err)
	}
	return collectBookings(rows)
}

// ListByListing は物件に対する予約を開始日順で返す。
func (r *PostgresBookingRepo) ListByListing(ctx context.Context, listingID int64) ([]*model.Booking, error) {
	rows, err := r.db.QueryContext(ctx, bookingSelect+` WHERE b.listing_id = $1 ORDER BY b.start_date, b.id`, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings by listing: %w", err)
	}
	return collectBookings(rows)
}

func scanBooking(s rowScanner) (*model.Booking, error) {
	b := &model.Booking{}
	err := s.Scan(&b.ID, &b.ListingID, &b.Guest, &b.Host, &b.StartDate, &b.EndDate, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func collectBookings(rows *sql.Rows) ([]*model.Booking, error) {
	defer rows.Close()

	bookings := []*model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

// compile-time interface check
var _ BookingRepository = (*PostgresBookingRepo)(nil)
