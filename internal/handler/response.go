package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/hitoshi/sharebnb/internal/model"
)

// tokenResponse はサインアップとログインのレスポンス。
type tokenResponse struct {
	Token string `json:"token"`
}

// userSummaryResponse はユーザー一覧の要素。
type userSummaryResponse struct {
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Location  string `json:"location"`
	ImageURL  string `json:"imageUrl"`
}

// userProfileResponse はユーザー詳細。bookingsは本人の場合のみ含め、0件なら空配列になる。
type userProfileResponse struct {
	userSummaryResponse
	Listings []listingResponse  `json:"listings"`
	Bookings *[]bookingResponse `json:"bookings,omitempty"`
}

// listingResponse は物件情報のAPIレスポンス。
type listingResponse struct {
	ID            int64    `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Location      string   `json:"location"`
	Type          string   `json:"type"`
	PricePerNight int      `json:"pricePerNight"`
	Images        []string `json:"images"`
	UserID        string   `json:"userId"`
}

// bookingResponse は予約情報のAPIレスポンス。
type bookingResponse struct {
	ID        int64  `json:"id"`
	ListingID int64  `json:"listingId"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Guest     string `json:"guest"`
	Host      string `json:"host"`
}

// messageResponse はメッセージのAPIレスポンス。
type messageResponse struct {
	ID        int64     `json:"id"`
	ListingID int64     `json:"listingId"`
	FromUser  string    `json:"fromUser"`
	ToUser    string    `json:"toUser"`
	Body      string    `json:"body"`
	TimeStamp time.Time `json:"timeStamp"`
}

func toUserSummary(u *model.User) userSummaryResponse {
	return userSummaryResponse{
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Location:  u.Location,
		ImageURL:  u.ImageURL,
	}
}

func toListingResponse(l *model.Listing) listingResponse {
	images := l.Images
	if images == nil {
		images = []string{}
	}
	return listingResponse{
		ID:            l.ID,
		Title:         l.Title,
		Description:   l.Description,
		Location:      l.Location,
		Type:          l.Type,
		PricePerNight: l.PricePerNight,
		Images:        images,
		UserID:        l.UserID,
	}
}

func toListingResponses(listings []*model.Listing) []listingResponse {
	results := make([]listingResponse, len(listings))
	for i, l := range listings {
		results[i] = toListingResponse(l)
	}
	return results
}

func toBookingResponse(b *model.Booking) bookingResponse {
	return bookingResponse{
		ID:        b.ID,
		ListingID: b.ListingID,
		StartDate: b.StartDate.Format(model.DateLayout),
		EndDate:   b.EndDate.Format(model.DateLayout),
		Guest:     b.Guest,
		Host:      b.Host,
	}
}

func toBookingResponses(bookings []*model.Booking) []bookingResponse {
	results := make([]bookingResponse, len(bookings))
	for i, b := range bookings {
		results[i] = toBookingResponse(b)
	}
	return results
}

func toMessageResponses(messages []*model.Message) []messageResponse {
	results := make([]messageResponse, len(messages))
	for i, m := range messages {
		results[i] = toMessageResponse(m)
	}
	return results
}

func toMessageResponse(m *model.Message) messageResponse {
	return messageResponse{
		ID:        m.ID,
		ListingID: m.ListingID,
		FromUser:  m.FromUser,
		ToUser:    m.ToUser,
		Body:      m.Body,
		TimeStamp: m.SentAt,
	}
}

// numberOrString はJSONの数値と文字列のどちらも文字列として受け付ける。
// price_per_nightやlisting_idのように、フォーム由来の文字列で送られる項目に使用する。
type numberOrString string

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (n *numberOrString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = numberOrString(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return errors.New("must be a number or a string")
	}
	*n = numberOrString(num.String())
	return nil
}

func (n *numberOrString) ptr() *string {
	if n == nil {
		return nil
	}
	s := string(*n)
	return &s
}

type usersEnvelope struct {
	Users []userSummaryResponse `json:"users"`
}

type userEnvelope struct {
	User any `json:"user"`
}

type listingEnvelope struct {
	Listing listingResponse `json:"listing"`
}

type listingsEnvelope struct {
	Listings []listingResponse `json:"listings"`
}

type bookingEnvelope struct {
	Booking bookingResponse `json:"booking"`
}

type bookingsEnvelope struct {
	Bookings []bookingResponse `json:"bookings"`
}

type messageEnvelope struct {
	Message messageResponse `json:"message"`
}

type messagesEnvelope struct {
	Messages []messageResponse `json:"messages"`
}
