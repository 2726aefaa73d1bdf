package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/hitoshi/sharebnb/internal/booking"
	"github.com/hitoshi/sharebnb/internal/model"
)

// BookingServiceInterface は予約ハンドラーが必要とするサービスインターフェース。
type BookingServiceInterface interface {
	Create(ctx context.Context, actor string, in booking.CreateInput) (*model.Booking, error)
	Get(ctx context.Context, actor string, id int64) (*model.Booking, error)
	ListForGuest(ctx context.Context, actor string) ([]*model.Booking, error)
	ListForListing(ctx context.Context, actor string, listingID int64) ([]*model.Booking, error)
}

// BookingHandler は予約のHTTPハンドラー。
type BookingHandler struct {
	service BookingServiceInterface
}

// NewBookingHandler はBookingHandlerを生成する。
func NewBookingHandler(service BookingServiceInterface) *BookingHandler {
	return &BookingHandler{service: service}
}

type createBookingRequest struct {
	ListingID numberOrString `json:"listing_id"`
	StartDate string         `json:"start_date"`
	EndDate   string         `json:"end_date"`
}

// Create は操作主体をゲストとして予約を作成する。
// POST /bookings
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req createBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var listingID int64
	if raw := strings.TrimSpace(string(req.ListingID)); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			handleServiceError(w, model.NewFieldError("listing_id", "listing_id must be an integer"))
			return
		}
		listingID = id
	}

	created, err := h.service.Create(r.Context(), identity.Username, booking.CreateInput{
		ListingID: listingID,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bookingEnvelope{Booking: toBookingResponse(created)})
}

// Get は予約を取得する。ゲストとホストのみ参照できる。
// GET /bookings/{id}
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id", model.NewBookingNotFoundError)
	if !ok {
		return
	}

	b, err := h.service.Get(r.Context(), identity.Username, id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingEnvelope{Booking: toBookingResponse(b)})
}

// ListMine は操作主体がゲストである予約を返す。
// GET /bookings
func (h *BookingHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	bookings, err := h.service.ListForGuest(r.Context(), identity.Username)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingsEnvelope{Bookings: toBookingResponses(bookings)})
}

// ListForListing は物件の予約一覧を返す。所有者のみ参照できる。
// GET /listings/{id}/bookings
func (h *BookingHandler) ListForListing(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id", model.NewListingNotFoundError)
	if !ok {
		return
	}

	bookings, err := h.service.ListForListing(r.Context(), identity.Username, id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingsEnvelope{Bookings: toBookingResponses(bookings)})
}
