package listing

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hitoshi/sharebnb/internal/image"
	"github.com/hitoshi/sharebnb/internal/model"
	"github.com/hitoshi/sharebnb/internal/repository"
	"github.com/hitoshi/sharebnb/internal/security"
)

// --- モック定義 ---

type mockListingRepo struct {
	findByIDFn         func(ctx context.Context, id int64) (*model.Listing, error)
	searchFn           func(ctx context.Context, query string) ([]*model.Listing, error)
	createWithImagesFn func(ctx context.Context, listing *model.Listing, images []*model.Image) error
	updateFn           func(ctx context.Context, listing *model.Listing) error
	deleteByIDFn       func(ctx context.Context, id int64) error
}

func (m *mockListingRepo) FindByID(ctx context.Context, id int64) (*model.Listing, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockListingRepo) Search(ctx context.Context, query string) ([]*model.Listing, error) {
	return m.searchFn(ctx, query)
}

func (m *mockListingRepo) ListByOwner(context.Context, string) ([]*model.Listing, error) {
	return nil, nil
}

func (m *mockListingRepo) CreateWithImages(ctx context.Context, listing *model.Listing, images []*model.Image) error {
	if m.createWithImagesFn != nil {
		return m.createWithImagesFn(ctx, listing, images)
	}
	listing.ID = 1
	return nil
}

func (m *mockListingRepo) Update(ctx context.Context, listing *model.Listing) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, listing)
	}
	return nil
}

func (m *mockListingRepo) DeleteByID(ctx context.Context, id int64) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

type mockImageRepo struct {
	createBatchFn   func(ctx context.Context, images []*model.Image) error
	listByListingFn func(ctx context.Context, listingID int64) ([]*model.Image, error)
}

func (m *mockImageRepo) CreateBatch(ctx context.Context, images []*model.Image) error {
	if m.createBatchFn != nil {
		return m.createBatchFn(ctx, images)
	}
	return nil
}

func (m *mockImageRepo) ListByListing(ctx context.Context, listingID int64) ([]*model.Image, error) {
	if m.listByListingFn != nil {
		return m.listByListingFn(ctx, listingID)
	}
	return nil, nil
}

func (m *mockImageRepo) ListByUploader(context.Context, string) ([]*model.Image, error) {
	return nil, nil
}

type mockImageStorer struct {
	storeFn   func(ctx context.Context, uploads []image.Upload, urls []string) ([]image.Stored, error)
	discarded []image.Stored
	deleted   []string
	// 削除時に渡されたコンテキストのErr()
	cleanupErrs []error
}

func (m *mockImageStorer) Store(ctx context.Context, uploads []image.Upload, urls []string) ([]image.Stored, error) {
	if m.storeFn != nil {
		return m.storeFn(ctx, uploads, urls)
	}
	return nil, nil
}

func (m *mockImageStorer) Discard(ctx context.Context, stored []image.Stored) {
	m.discarded = append(m.discarded, stored...)
	m.cleanupErrs = append(m.cleanupErrs, ctx.Err())
}

func (m *mockImageStorer) DeleteObjects(ctx context.Context, keys []string) {
	m.deleted = append(m.deleted, keys...)
	m.cleanupErrs = append(m.cleanupErrs, ctx.Err())
}

func ownedBy(owner string) func(context.Context, int64) (*model.Listing, error) {
	return func(_ context.Context, id int64) (*model.Listing, error) {
		return &model.Listing{ID: id, Title: "Loft", Description: "Bright", Location: "Portland", Type: "apartment", PricePerNight: 100, UserID: owner}, nil
	}
}

func validCreate() CreateInput {
	return CreateInput{
		Title:         "Beach House",
		Description:   "Steps from the sand",
		Location:      "Malibu",
		Type:          "house",
		PricePerNight: "250",
	}
}

func newTestService(listings *mockListingRepo, images *mockImageRepo, storer *mockImageStorer) *Service {
	if images == nil {
		images = &mockImageRepo{}
	}
	if storer == nil {
		storer = &mockImageStorer{}
	}
	return NewService(listings, images, storer, security.NewTextSanitizer())
}

func assertAPIError(t *testing.T, err error, code string) *model.APIError {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != code {
		t.Fatalf("error = %v, want %s", err, code)
	}
	return apiErr
}

func strPtr(s string) *string { return &s }

// --- Create ---

func TestService_Create_OwnerIsActor(t *testing.T) {
	var saved *model.Listing
	repo := &mockListingRepo{
		createWithImagesFn: func(_ context.Context, listing *model.Listing, _ []*model.Image) error {
			saved = listing
			listing.ID = 10
			return nil
		},
	}
	svc := newTestService(repo, nil, nil)

	listing, err := svc.Create(context.Background(), "alice", validCreate())
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if listing.UserID != "alice" || saved.UserID != "alice" {
		t.Errorf("UserID = %q, want alice", listing.UserID)
	}
	if listing.PricePerNight != 250 {
		t.Errorf("PricePerNight = %d, want 250", listing.PricePerNight)
	}
}

func TestService_Create_SanitizesText(t *testing.T) {
	svc := newTestService(&mockListingRepo{}, nil, nil)

	in := validCreate()
	in.Description = `<script>alert(1)</script>Quiet <b>cabin</b>`
	listing, err := svc.Create(context.Background(), "alice", in)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if listing.Description != "Quiet cabin" {
		t.Errorf("Description = %q, want markup removed", listing.Description)
	}
}

func TestService_Create_Validation(t *testing.T) {
	storer := &mockImageStorer{
		storeFn: func(context.Context, []image.Upload, []string) ([]image.Stored, error) {
			t.Error("images must not be stored for invalid input")
			return nil, nil
		},
	}
	svc := newTestService(&mockListingRepo{}, nil, storer)

	_, err := svc.Create(context.Background(), "alice", CreateInput{
		Title:         "<b></b>",
		Type:          strings.Repeat("x", 300),
		PricePerNight: "-5",
		ImageURLs:     []string{"https://cdn.example.com/a.jpg"},
	})

	apiErr := assertAPIError(t, err, model.ErrCodeValidation)
	for _, field := range []string{"title", "description", "location", "type", "price_per_night"} {
		if len(apiErr.Fields[field]) == 0 {
			t.Errorf("expected error for %q, got %v", field, apiErr.Fields)
		}
	}
}

func TestService_Create_PriceMustBeInteger(t *testing.T) {
	svc := newTestService(&mockListingRepo{}, nil, nil)

	for _, price := range []string{"12.5", "abc", ""} {
		in := validCreate()
		in.PricePerNight = price
		_, err := svc.Create(context.Background(), "alice", in)
		apiErr := assertAPIError(t, err, model.ErrCodeValidation)
		if len(apiErr.Fields["price_per_night"]) == 0 {
			t.Errorf("price %q: fields = %v", price, apiErr.Fields)
		}
	}
}

func TestService_Create_PriceOutOfIntegerRange(t *testing.T) {
	repo := &mockListingRepo{
		createWithImagesFn: func(context.Context, *model.Listing, []*model.Image) error {
			t.Error("CreateWithImages must not be called for an out-of-range price")
			return nil
		},
	}
	svc := newTestService(repo, nil, nil)

	in := validCreate()
	in.PricePerNight = "3000000000"
	_, err := svc.Create(context.Background(), "alice", in)
	apiErr := assertAPIError(t, err, model.ErrCodeValidation)
	if len(apiErr.Fields["price_per_night"]) == 0 {
		t.Errorf("fields = %v, want price_per_night error", apiErr.Fields)
	}
}

func TestService_Create_AttachesStoredImages(t *testing.T) {
	var savedImages []*model.Image
	repo := &mockListingRepo{
		createWithImagesFn: func(_ context.Context, listing *model.Listing, images []*model.Image) error {
			savedImages = images
			return nil
		},
	}
	storer := &mockImageStorer{
		storeFn: func(_ context.Context, _ []image.Upload, urls []string) ([]image.Stored, error) {
			return []image.Stored{{URL: "https://cdn/listings/a.jpg", ObjectKey: "listings/a.jpg"}}, nil
		},
	}
	svc := newTestService(repo, nil, storer)

	in := validCreate()
	in.ImageURLs = []string{"https://example.com/a.jpg"}
	if _, err := svc.Create(context.Background(), "alice", in); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if len(savedImages) != 1 || savedImages[0].UploadedBy != "alice" || savedImages[0].ObjectKey != "listings/a.jpg" {
		t.Errorf("images = %+v", savedImages)
	}
}

// TestService_Create_DBFailureDiscardsImages はDB登録失敗時に保存済み画像が削除されることを検証する。
func TestService_Create_DBFailureDiscardsImages(t *testing.T) {
	repo := &mockListingRepo{
		createWithImagesFn: func(context.Context, *model.Listing, []*model.Image) error {
			return errors.New("connection reset")
		},
	}
	stored := []image.Stored{{URL: "u1", ObjectKey: "k1"}, {URL: "u2", ObjectKey: "k2"}}
	storer := &mockImageStorer{
		storeFn: func(context.Context, []image.Upload, []string) ([]image.Stored, error) { return stored, nil },
	}
	svc := newTestService(repo, nil, storer)

	_, err := svc.Create(context.Background(), "alice", validCreate())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(storer.discarded) != 2 {
		t.Errorf("discarded = %v, want both stored images", storer.discarded)
	}
}

// TestService_Create_DiscardSurvivesCanceledRequest はリクエストが切断されても
// 保存済み画像の削除がキャンセル済みコンテキストで実行されないことを検証する。
func TestService_Create_DiscardSurvivesCanceledRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	repo := &mockListingRepo{
		createWithImagesFn: func(context.Context, *model.Listing, []*model.Image) error {
			cancel()
			return context.Canceled
		},
	}
	storer := &mockImageStorer{
		storeFn: func(context.Context, []image.Upload, []string) ([]image.Stored, error) {
			return []image.Stored{{URL: "u1", ObjectKey: "k1"}}, nil
		},
	}
	svc := newTestService(repo, nil, storer)

	if _, err := svc.Create(ctx, "alice", validCreate()); err == nil {
		t.Fatal("expected error")
	}
	if len(storer.cleanupErrs) != 1 || storer.cleanupErrs[0] != nil {
		t.Errorf("cleanup context errors = %v, want a live context", storer.cleanupErrs)
	}
}

func TestService_Create_ImageFailureCreatesNothing(t *testing.T) {
	repo := &mockListingRepo{
		createWithImagesFn: func(context.Context, *model.Listing, []*model.Image) error {
			t.Error("listing must not be created when images fail")
			return nil
		},
	}
	storer := &mockImageStorer{
		storeFn: func(context.Context, []image.Upload, []string) ([]image.Stored, error) {
			return nil, model.NewFieldError("images", "unsupported image type")
		},
	}
	svc := newTestService(repo, nil, storer)

	_, err := svc.Create(context.Background(), "alice", validCreate())
	assertAPIError(t, err, model.ErrCodeValidation)
}

func TestService_Create_MissingOwnerIsConflict(t *testing.T) {
	repo := &mockListingRepo{
		createWithImagesFn: func(context.Context, *model.Listing, []*model.Image) error {
			return repository.ErrForeignKey
		},
	}
	svc := newTestService(repo, nil, nil)

	_, err := svc.Create(context.Background(), "ghost", validCreate())
	assertAPIError(t, err, model.ErrCodeConflict)
}

// --- Get / Search ---

func TestService_Get_NotFound(t *testing.T) {
	svc := newTestService(&mockListingRepo{}, nil, nil)
	_, err := svc.Get(context.Background(), 99)
	assertAPIError(t, err, model.ErrCodeListingNotFound)
}

func TestService_Search_TrimsQuery(t *testing.T) {
	var got string
	repo := &mockListingRepo{
		searchFn: func(_ context.Context, query string) ([]*model.Listing, error) {
			got = query
			return []*model.Listing{}, nil
		},
	}
	svc := newTestService(repo, nil, nil)

	if _, err := svc.Search(context.Background(), "  BEACH "); err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if got != "BEACH" {
		t.Errorf("query = %q, want BEACH", got)
	}
}

// --- Update ---

func TestService_Update_OwnerOnly(t *testing.T) {
	repo := &mockListingRepo{
		findByIDFn: ownedBy("alice"),
		updateFn: func(context.Context, *model.Listing) error {
			t.Error("Update must not be called for a non-owner")
			return nil
		},
	}
	svc := newTestService(repo, nil, nil)

	_, err := svc.Update(context.Background(), "bob", 1, UpdateInput{Title: strPtr("Mine now")})
	apiErr := assertAPIError(t, err, model.ErrCodeForbidden)
	if apiErr.Category != "access" {
		t.Errorf("category = %q", apiErr.Category)
	}
}

func TestService_Update_AppliesPartialPatch(t *testing.T) {
	var saved *model.Listing
	repo := &mockListingRepo{
		findByIDFn: ownedBy("alice"),
		updateFn: func(_ context.Context, listing *model.Listing) error {
			saved = listing
			return nil
		},
	}
	svc := newTestService(repo, nil, nil)

	listing, err := svc.Update(context.Background(), "alice", 1, UpdateInput{
		Title:         strPtr("Sunny Loft"),
		PricePerNight: strPtr("120"),
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if saved == nil || listing.Title != "Sunny Loft" || listing.PricePerNight != 120 {
		t.Errorf("listing = %+v", listing)
	}
	if listing.Location != "Portland" {
		t.Errorf("Location = %q, untouched fields must keep their values", listing.Location)
	}
}

func TestService_Update_PriceOutOfIntegerRange(t *testing.T) {
	repo := &mockListingRepo{
		findByIDFn: ownedBy("alice"),
		updateFn: func(context.Context, *model.Listing) error {
			t.Error("Update must not be called for an out-of-range price")
			return nil
		},
	}
	svc := newTestService(repo, nil, nil)

	_, err := svc.Update(context.Background(), "alice", 1, UpdateInput{PricePerNight: strPtr("3000000000")})
	apiErr := assertAPIError(t, err, model.ErrCodeValidation)
	if len(apiErr.Fields["price_per_night"]) == 0 {
		t.Errorf("fields = %v, want price_per_night error", apiErr.Fields)
	}
}

func TestService_Update_RejectsBlankField(t *testing.T) {
	svc := newTestService(&mockListingRepo{findByIDFn: ownedBy("alice")}, nil, nil)

	_, err := svc.Update(context.Background(), "alice", 1, UpdateInput{Title: strPtr("   ")})
	assertAPIError(t, err, model.ErrCodeValidation)
}

func TestService_Update_NotFound(t *testing.T) {
	svc := newTestService(&mockListingRepo{}, nil, nil)

	_, err := svc.Update(context.Background(), "alice", 1, UpdateInput{Title: strPtr("x")})
	assertAPIError(t, err, model.ErrCodeListingNotFound)
}

// --- Delete ---

func TestService_Delete_OwnerOnly(t *testing.T) {
	repo := &mockListingRepo{
		findByIDFn: ownedBy("alice"),
		deleteByIDFn: func(context.Context, int64) error {
			t.Error("DeleteByID must not be called for a non-owner")
			return nil
		},
	}
	svc := newTestService(repo, nil, nil)

	err := svc.Delete(context.Background(), "bob", 1)
	assertAPIError(t, err, model.ErrCodeForbidden)
}

func TestService_Delete_RemovesStoredObjects(t *testing.T) {
	deleted := false
	repo := &mockListingRepo{
		findByIDFn: ownedBy("alice"),
		deleteByIDFn: func(context.Context, int64) error {
			deleted = true
			return nil
		},
	}
	images := &mockImageRepo{
		listByListingFn: func(context.Context, int64) ([]*model.Image, error) {
			return []*model.Image{{ObjectKey: "listings/a.jpg"}, {ObjectKey: "listings/b.jpg"}}, nil
		},
	}
	storer := &mockImageStorer{}
	svc := newTestService(repo, images, storer)

	if err := svc.Delete(context.Background(), "alice", 1); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if !deleted {
		t.Error("expected DeleteByID to be called")
	}
	if len(storer.deleted) != 2 {
		t.Errorf("deleted objects = %v, want 2", storer.deleted)
	}
}

// --- AddImages ---

func TestService_AddImages_OwnerOnly(t *testing.T) {
	storer := &mockImageStorer{
		storeFn: func(context.Context, []image.Upload, []string) ([]image.Stored, error) {
			t.Error("images must not be stored for a non-owner")
			return nil, nil
		},
	}
	svc := newTestService(&mockListingRepo{findByIDFn: ownedBy("alice")}, nil, storer)

	_, err := svc.AddImages(context.Background(), "bob", 1, nil, []string{"https://example.com/a.jpg"})
	assertAPIError(t, err, model.ErrCodeForbidden)
}

func TestService_AddImages_RequiresImages(t *testing.T) {
	svc := newTestService(&mockListingRepo{findByIDFn: ownedBy("alice")}, nil, nil)

	_, err := svc.AddImages(context.Background(), "alice", 1, nil, nil)
	assertAPIError(t, err, model.ErrCodeValidation)
}

func TestService_AddImages_SetsListingID(t *testing.T) {
	var saved []*model.Image
	images := &mockImageRepo{
		createBatchFn: func(_ context.Context, imgs []*model.Image) error {
			saved = imgs
			return nil
		},
	}
	storer := &mockImageStorer{
		storeFn: func(context.Context, []image.Upload, []string) ([]image.Stored, error) {
			return []image.Stored{{URL: "u", ObjectKey: "k"}}, nil
		},
	}
	svc := newTestService(&mockListingRepo{findByIDFn: ownedBy("alice")}, images, storer)

	if _, err := svc.AddImages(context.Background(), "alice", 7, []image.Upload{{Filename: "a.png"}}, nil); err != nil {
		t.Fatalf("AddImages returned error: %v", err)
	}
	if len(saved) != 1 || saved[0].ListingID != 7 || saved[0].UploadedBy != "alice" {
		t.Errorf("saved = %+v", saved)
	}
}

func TestService_AddImages_BatchFailureDiscards(t *testing.T) {
	images := &mockImageRepo{
		createBatchFn: func(context.Context, []*model.Image) error { return repository.ErrForeignKey },
	}
	storer := &mockImageStorer{
		storeFn: func(context.Context, []image.Upload, []string) ([]image.Stored, error) {
			return []image.Stored{{URL: "u", ObjectKey: "k"}}, nil
		},
	}
	svc := newTestService(&mockListingRepo{findByIDFn: ownedBy("alice")}, images, storer)

	_, err := svc.AddImages(context.Background(), "alice", 7, []image.Upload{{Filename: "a.png"}}, nil)
	assertAPIError(t, err, model.ErrCodeListingNotFound)
	if len(storer.discarded) != 1 {
		t.Errorf("discarded = %v", storer.discarded)
	}
}

func TestService_AddImages_DiscardSurvivesCanceledRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	images := &mockImageRepo{
		createBatchFn: func(context.Context, []*model.Image) error {
			cancel()
			return context.Canceled
		},
	}
	storer := &mockImageStorer{
		storeFn: func(context.Context, []image.Upload, []string) ([]image.Stored, error) {
			return []image.Stored{{URL: "u", ObjectKey: "k"}}, nil
		},
	}
	svc := newTestService(&mockListingRepo{findByIDFn: ownedBy("alice")}, images, storer)

	if _, err := svc.AddImages(ctx, "alice", 7, []image.Upload{{Filename: "a.png"}}, nil); err == nil {
		t.Fatal("expected error")
	}
	if len(storer.cleanupErrs) != 1 || storer.cleanupErrs[0] != nil {
		t.Errorf("cleanup context errors = %v, want a live context", storer.cleanupErrs)
	}
}
