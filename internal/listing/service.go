// Package listing は物件の作成・検索・更新・削除と画像追加のドメインロジックを提供する。
package listing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/sharebnb/internal/image"
	"github.com/hitoshi/sharebnb/internal/model"
	"github.com/hitoshi/sharebnb/internal/repository"
	"github.com/hitoshi/sharebnb/internal/validate"
)

// ImageStorer は画像の検証・保存・削除のインターフェース。image.Pipelineが実装する。
type ImageStorer interface {
	Store(ctx context.Context, uploads []image.Upload, urls []string) ([]image.Stored, error)
	Discard(ctx context.Context, stored []image.Stored)
	DeleteObjects(ctx context.Context, keys []string)
}

// TextCleaner はユーザー入力テキストからHTMLを除去するインターフェース。
type TextCleaner interface {
	Clean(text string) string
}

// CreateInput は物件作成の入力。価格は整数文字列で受け取る。
type CreateInput struct {
	Title         string
	Description   string
	Location      string
	Type          string
	PricePerNight string
	ImageURLs     []string
	Uploads       []image.Upload
}

// UpdateInput は物件の部分更新の入力。nilのフィールドは更新しない。
type UpdateInput struct {
	Title         *string
	Description   *string
	Location      *string
	Type          *string
	PricePerNight *string
}

// Service は物件のドメインロジックを提供する。
// 所有者チェックは呼び出し元から渡された操作主体（actor）で行う。
type Service struct {
	listings  repository.ListingRepository
	imageRepo repository.ImageRepository
	images    ImageStorer
	cleaner   TextCleaner
}

// NewService はServiceを生成する。
func NewService(
	listings repository.ListingRepository,
	imageRepo repository.ImageRepository,
	images ImageStorer,
	cleaner TextCleaner,
) *Service {
	return &Service{
		listings:  listings,
		imageRepo: imageRepo,
		images:    images,
		cleaner:   cleaner,
	}
}

// Create は物件を作成する。所有者は常にactorになる。
// 画像は全てオブジェクトストレージへ保存してから、物件と同一トランザクションで登録する。
// 登録に失敗した場合は保存済みの画像を削除する。
func (s *Service) Create(ctx context.Context, actor string, in CreateInput) (*model.Listing, error) {
	listing := &model.Listing{
		Title:       s.cleaner.Clean(in.Title),
		Description: s.cleaner.Clean(in.Description),
		Location:    s.cleaner.Clean(in.Location),
		Type:        s.cleaner.Clean(in.Type),
		UserID:      actor,
	}

	errs := model.FieldErrors{}
	requireText(errs, "title", listing.Title, validate.TextMaxLength)
	requireText(errs, "description", listing.Description, validate.DescriptionMaxLength)
	requireText(errs, "location", listing.Location, validate.TextMaxLength)
	requireText(errs, "type", listing.Type, validate.TextMaxLength)
	if price, ok := validate.NonNegativeInt(errs, "price_per_night", in.PricePerNight); ok {
		listing.PricePerNight = price
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	stored, err := s.images.Store(ctx, in.Uploads, in.ImageURLs)
	if err != nil {
		return nil, err
	}

	if err := s.listings.CreateWithImages(ctx, listing, toImages(actor, stored)); err != nil {
		s.images.Discard(context.WithoutCancel(ctx), stored)
		if errors.Is(err, repository.ErrForeignKey) {
			return nil, model.NewConflictError("owner account no longer exists")
		}
		return nil, fmt.Errorf("物件の作成に失敗しました: %w", err)
	}

	slog.Info("物件を作成しました",
		slog.Int64("listing_id", listing.ID),
		slog.String("username", actor),
		slog.Int("images", len(stored)),
	)
	return listing, nil
}

// Get は物件を取得する。
func (s *Service) Get(ctx context.Context, id int64) (*model.Listing, error) {
	listing, err := s.listings.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("物件の取得に失敗しました: %w", err)
	}
	if listing == nil {
		return nil, model.NewListingNotFoundError()
	}
	return listing, nil
}

// Search はtitle、location、type、descriptionのいずれかにqueryを含む物件を返す。
// 大文字小文字は区別しない。空のqueryは全件を返す。
func (s *Service) Search(ctx context.Context, query string) ([]*model.Listing, error) {
	listings, err := s.listings.Search(ctx, strings.TrimSpace(query))
	if err != nil {
		return nil, fmt.Errorf("物件の検索に失敗しました: %w", err)
	}
	return listings, nil
}

// Update は物件を部分更新する。所有者以外は403になる。
func (s *Service) Update(ctx context.Context, actor string, id int64, in UpdateInput) (*model.Listing, error) {
	patch, err := s.buildPatch(in)
	if err != nil {
		return nil, err
	}

	listing, err := s.ownedListing(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return listing, nil
	}

	patch.Apply(listing)
	if err := s.listings.Update(ctx, listing); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewListingNotFoundError()
		}
		return nil, fmt.Errorf("物件の更新に失敗しました: %w", err)
	}
	return listing, nil
}

// Delete は物件を削除する。予約・メッセージ・画像はCASCADE削除され、
// 画像オブジェクトはベストエフォートで削除する。
func (s *Service) Delete(ctx context.Context, actor string, id int64) error {
	if _, err := s.ownedListing(ctx, actor, id); err != nil {
		return err
	}

	images, err := s.imageRepo.ListByListing(ctx, id)
	if err != nil {
		return fmt.Errorf("画像の取得に失敗しました: %w", err)
	}

	if err := s.listings.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewListingNotFoundError()
		}
		return fmt.Errorf("物件の削除に失敗しました: %w", err)
	}

	s.images.DeleteObjects(context.WithoutCancel(ctx), objectKeys(images))
	slog.Info("物件を削除しました",
		slog.Int64("listing_id", id),
		slog.String("username", actor),
	)
	return nil
}

// AddImages は既存の物件に画像を追加する。所有者以外は403になる。
func (s *Service) AddImages(ctx context.Context, actor string, id int64, uploads []image.Upload, urls []string) (*model.Listing, error) {
	if len(uploads)+len(urls) == 0 {
		return nil, model.NewFieldError("images", "at least one image is required")
	}
	if _, err := s.ownedListing(ctx, actor, id); err != nil {
		return nil, err
	}

	stored, err := s.images.Store(ctx, uploads, urls)
	if err != nil {
		return nil, err
	}

	images := toImages(actor, stored)
	for _, img := range images {
		img.ListingID = id
	}
	if err := s.imageRepo.CreateBatch(ctx, images); err != nil {
		s.images.Discard(context.WithoutCancel(ctx), stored)
		if errors.Is(err, repository.ErrForeignKey) {
			return nil, model.NewListingNotFoundError()
		}
		return nil, fmt.Errorf("画像の登録に失敗しました: %w", err)
	}

	return s.Get(ctx, id)
}

// ownedListing は物件を取得し、actorが所有者であることを確認する。
func (s *Service) ownedListing(ctx context.Context, actor string, id int64) (*model.Listing, error) {
	listing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if listing.UserID != actor {
		return nil, model.NewForbiddenError("you do not own this listing")
	}
	return listing, nil
}

// buildPatch は更新入力を検証し、サニタイズ済みのパッチに変換する。
func (s *Service) buildPatch(in UpdateInput) (model.ListingPatch, error) {
	errs := model.FieldErrors{}
	patch := model.ListingPatch{
		Title:       s.cleanOptional(errs, "title", in.Title, validate.TextMaxLength),
		Description: s.cleanOptional(errs, "description", in.Description, validate.DescriptionMaxLength),
		Location:    s.cleanOptional(errs, "location", in.Location, validate.TextMaxLength),
		Type:        s.cleanOptional(errs, "type", in.Type, validate.TextMaxLength),
	}
	if in.PricePerNight != nil {
		if price, ok := validate.NonNegativeInt(errs, "price_per_night", *in.PricePerNight); ok {
			patch.PricePerNight = &price
		}
	}
	return patch, errs.Err()
}

func (s *Service) cleanOptional(errs model.FieldErrors, field string, value *string, max int) *string {
	if value == nil {
		return nil
	}
	cleaned := s.cleaner.Clean(*value)
	requireText(errs, field, cleaned, max)
	return &cleaned
}

func requireText(errs model.FieldErrors, field, value string, max int) {
	if validate.Required(errs, field, value) {
		validate.MaxLength(errs, field, value, max)
	}
}

func toImages(uploader string, stored []image.Stored) []*model.Image {
	images := make([]*model.Image, 0, len(stored))
	for _, st := range stored {
		images = append(images, &model.Image{UploadedBy: uploader, URL: st.URL, ObjectKey: st.ObjectKey})
	}
	return images
}

func objectKeys(images []*model.Image) []string {
	keys := make([]string, 0, len(images))
	for _, img := range images {
		keys = append(keys, img.ObjectKey)
	}
	return keys
}
