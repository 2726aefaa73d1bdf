package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/sharebnb/internal/middleware"
	"github.com/hitoshi/sharebnb/internal/model"
	"github.com/hitoshi/sharebnb/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	List(ctx context.Context) ([]*model.User, error)
	Get(ctx context.Context, viewer, username string) (*user.Profile, error)
	UpdateProfile(ctx context.Context, actor string, in user.UpdateInput) (*model.User, error)
	// Withdraw はユーザーの退会処理を実行する。
	// listings、bookings、messages、imagesはCASCADE削除される。
	Withdraw(ctx context.Context, identity *model.Identity) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

type updateProfileRequest struct {
	Password  string  `json:"password"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     *string `json:"email"`
	ImageURL  *string `json:"image_url"`
	Location  *string `json:"location"`
}

// List はユーザー一覧を返す。
// GET /users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	summaries := make([]userSummaryResponse, len(users))
	for i, u := range users {
		summaries[i] = toUserSummary(u)
	}
	writeJSON(w, http.StatusOK, usersEnvelope{Users: summaries})
}

// Get はユーザーのプロフィールを返す。本人が参照した場合は予約一覧を含める。
// GET /users/{username}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	viewer := ""
	if identity, ok := middleware.IdentityFromContext(r.Context()); ok {
		viewer = identity.Username
	}

	profile, err := h.service.Get(r.Context(), viewer, chi.URLParam(r, "username"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := userProfileResponse{
		userSummaryResponse: toUserSummary(profile.User),
		Listings:            toListingResponses(profile.Listings),
	}
	if profile.Bookings != nil {
		bookings := toBookingResponses(profile.Bookings)
		resp.Bookings = &bookings
	}
	writeJSON(w, http.StatusOK, userEnvelope{User: resp})
}

// UpdateProfile は操作主体のプロフィールを更新する。
// PATCH /users/me
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.service.UpdateProfile(r.Context(), identity.Username, user.UpdateInput{
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		ImageURL:  req.ImageURL,
		Location:  req.Location,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userEnvelope{User: toUserSummary(updated)})
}

// Withdraw はユーザーの退会処理を実行する。
// DELETE /users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.service.Withdraw(r.Context(), identity); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
