package handler

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/hitoshi/sharebnb/internal/image"
	"github.com/hitoshi/sharebnb/internal/listing"
	"github.com/hitoshi/sharebnb/internal/model"
)

// multipartMemory はmultipartフォームをメモリに保持する上限。超過分は一時ファイルになる。
const multipartMemory = 8 << 20

// ListingServiceInterface は物件ハンドラーが必要とするサービスインターフェース。
type ListingServiceInterface interface {
	Create(ctx context.Context, actor string, in listing.CreateInput) (*model.Listing, error)
	Get(ctx context.Context, id int64) (*model.Listing, error)
	Search(ctx context.Context, query string) ([]*model.Listing, error)
	Update(ctx context.Context, actor string, id int64, in listing.UpdateInput) (*model.Listing, error)
	Delete(ctx context.Context, actor string, id int64) error
	AddImages(ctx context.Context, actor string, id int64, uploads []image.Upload, urls []string) (*model.Listing, error)
}

// ListingHandler は物件管理のHTTPハンドラー。
type ListingHandler struct {
	service        ListingServiceInterface
	multipartLimit int64
}

// NewListingHandler はListingHandlerを生成する。
// maxImageBytesは画像1枚の上限で、multipartボディ全体の上限算出に使用する。
func NewListingHandler(service ListingServiceInterface, maxImageBytes int64) *ListingHandler {
	if maxImageBytes <= 0 {
		maxImageBytes = image.DefaultMaxBytes
	}
	return &ListingHandler{
		service:        service,
		multipartLimit: int64(image.MaxPerRequest)*maxImageBytes + maxJSONBodyBytes,
	}
}

// createListingRequest は物件作成のJSONボディ。user_idは受け付けない。
type createListingRequest struct {
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Location      string         `json:"location"`
	Type          string         `json:"type"`
	PricePerNight numberOrString `json:"price_per_night"`
	ImageURLs     []string       `json:"image_urls"`
}

type updateListingRequest struct {
	Title         *string         `json:"title"`
	Description   *string         `json:"description"`
	Location      *string         `json:"location"`
	Type          *string         `json:"type"`
	PricePerNight *numberOrString `json:"price_per_night"`
}

type addImagesRequest struct {
	ImageURLs []string `json:"image_urls"`
}

// Search は物件を検索する。qが空の場合は全件を返す。
// GET /listings?q=
func (h *ListingHandler) Search(w http.ResponseWriter, r *http.Request) {
	listings, err := h.service.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listingsEnvelope{Listings: toListingResponses(listings)})
}

// Get は物件詳細を取得する。
// GET /listings/{id}
func (h *ListingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id", model.NewListingNotFoundError)
	if !ok {
		return
	}

	l, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listingEnvelope{Listing: toListingResponse(l)})
}

// Create は物件を作成する。JSONとmultipartの両方を受け付ける。
// POST /listings
func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var in listing.CreateInput
	if isMultipart(r) {
		form, ok := h.parseMultipart(w, r)
		if !ok {
			return
		}
		defer form.RemoveAll()

		uploads, err := readUploads(form)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		in = listing.CreateInput{
			Title:         formValue(form, "title"),
			Description:   formValue(form, "description"),
			Location:      formValue(form, "location"),
			Type:          formValue(form, "type"),
			PricePerNight: formValue(form, "price_per_night"),
			ImageURLs:     form.Value["image_urls"],
			Uploads:       uploads,
		}
	} else {
		var req createListingRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		in = listing.CreateInput{
			Title:         req.Title,
			Description:   req.Description,
			Location:      req.Location,
			Type:          req.Type,
			PricePerNight: string(req.PricePerNight),
			ImageURLs:     req.ImageURLs,
		}
	}

	created, err := h.service.Create(r.Context(), identity.Username, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, listingEnvelope{Listing: toListingResponse(created)})
}

// Update は物件を部分更新する。所有者のみ実行できる。
// PATCH /listings/{id}
func (h *ListingHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id", model.NewListingNotFoundError)
	if !ok {
		return
	}

	var req updateListingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.service.Update(r.Context(), identity.Username, id, listing.UpdateInput{
		Title:         req.Title,
		Description:   req.Description,
		Location:      req.Location,
		Type:          req.Type,
		PricePerNight: req.PricePerNight.ptr(),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listingEnvelope{Listing: toListingResponse(updated)})
}

// Delete は物件を削除する。所有者のみ実行できる。
// DELETE /listings/{id}
func (h *ListingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id", model.NewListingNotFoundError)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), identity.Username, id); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddImages は既存の物件に画像を追加する。
// POST /listings/{id}/images
func (h *ListingHandler) AddImages(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id", model.NewListingNotFoundError)
	if !ok {
		return
	}

	var (
		uploads []image.Upload
		urls    []string
	)
	if isMultipart(r) {
		form, ok := h.parseMultipart(w, r)
		if !ok {
			return
		}
		defer form.RemoveAll()

		var err error
		if uploads, err = readUploads(form); err != nil {
			handleServiceError(w, err)
			return
		}
		urls = form.Value["image_urls"]
	} else {
		var req addImagesRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		urls = req.ImageURLs
	}

	updated, err := h.service.AddImages(r.Context(), identity.Username, id, uploads, urls)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, listingEnvelope{Listing: toListingResponse(updated)})
}

func (h *ListingHandler) parseMultipart(w http.ResponseWriter, r *http.Request) (*multipart.Form, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.multipartLimit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeBodyError(w, err)
		return nil, false
	}
	return r.MultipartForm, true
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

// readUploads はimagesパートのファイルを読み込む。
func readUploads(form *multipart.Form) ([]image.Upload, error) {
	headers := form.File["images"]
	if len(headers) > image.MaxPerRequest {
		return nil, model.NewFieldError("images", fmt.Sprintf("at most %d images per request", image.MaxPerRequest))
	}

	uploads := make([]image.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("アップロードファイルのオープンに失敗しました: %w", err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("アップロードファイルの読み込みに失敗しました: %w", err)
		}
		uploads = append(uploads, image.Upload{Filename: strings.TrimSpace(fh.Filename), Data: data})
	}
	return uploads, nil
}
