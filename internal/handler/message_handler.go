package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/sharebnb/internal/message"
	"github.com/hitoshi/sharebnb/internal/model"
)

// MessageServiceInterface はメッセージハンドラーが必要とするサービスインターフェース。
type MessageServiceInterface interface {
	Send(ctx context.Context, actor string, listingID int64, in message.SendInput) (*model.Message, error)
	ListForListing(ctx context.Context, actor string, listingID int64) ([]*model.Message, error)
	ListForUser(ctx context.Context, actor, username string) ([]*model.Message, error)
}

// MessageHandler はメッセージのHTTPハンドラー。
type MessageHandler struct {
	service MessageServiceInterface
}

// NewMessageHandler はMessageHandlerを生成する。
func NewMessageHandler(service MessageServiceInterface) *MessageHandler {
	return &MessageHandler{service: service}
}

type sendMessageRequest struct {
	ToUser string `json:"to_user"`
	Body   string `json:"body"`
}

// Send は物件に関するメッセージを送信する。送信者は操作主体になる。
// POST /listings/{id}/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	listingID, ok := idParam(w, r, "id", model.NewListingNotFoundError)
	if !ok {
		return
	}

	var req sendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.service.Send(r.Context(), identity.Username, listingID, message.SendInput{
		ToUser: req.ToUser,
		Body:   req.Body,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageEnvelope{Message: toMessageResponse(msg)})
}

// ListForListing は物件に関するメッセージを返す。
// GET /listings/{id}/messages
func (h *MessageHandler) ListForListing(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	listingID, ok := idParam(w, r, "id", model.NewListingNotFoundError)
	if !ok {
		return
	}

	msgs, err := h.service.ListForListing(r.Context(), identity.Username, listingID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messagesEnvelope{Messages: toMessageResponses(msgs)})
}

// ListForUser はユーザーが送受信したメッセージを返す。
// GET /users/{username}/messages
func (h *MessageHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	msgs, err := h.service.ListForUser(r.Context(), identity.Username, chi.URLParam(r, "username"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messagesEnvelope{Messages: toMessageResponses(msgs)})
}
