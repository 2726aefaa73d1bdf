// Package user はユーザー一覧、プロフィール、退会のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/sharebnb/internal/model"
	"github.com/hitoshi/sharebnb/internal/repository"
	"github.com/hitoshi/sharebnb/internal/validate"
)

// ListingLister は所有物件の一覧取得インターフェース。
type ListingLister interface {
	ListByOwner(ctx context.Context, username string) ([]*model.Listing, error)
}

// BookingLister はゲストとしての予約一覧取得インターフェース。
type BookingLister interface {
	ListByGuest(ctx context.Context, guest string) ([]*model.Booking, error)
}

// ImageLister はユーザーがアップロードした画像の一覧取得インターフェース。
type ImageLister interface {
	ListByUploader(ctx context.Context, username string) ([]*model.Image, error)
}

// ObjectDeleter はストレージ上の画像オブジェクトを削除する。
type ObjectDeleter interface {
	DeleteObjects(ctx context.Context, keys []string)
}

// PasswordVerifier は現在のパスワードを照合する。
type PasswordVerifier interface {
	Verify(password, digest string) bool
}

// TokenRevoker は退会時に使用中のトークンを失効させる。
type TokenRevoker interface {
	Logout(ctx context.Context, identity *model.Identity) error
}

// Profile はユーザーのプロフィール。Bookingsは本人が参照する場合のみ非nilになる。
type Profile struct {
	User     *model.User
	Listings []*model.Listing
	Bookings []*model.Booking
}

// UpdateInput はプロフィール更新の入力。nilのフィールドは更新しない。
// Passwordは現在のパスワードで、本人確認に使用する。
type UpdateInput struct {
	Password  string
	FirstName *string
	LastName  *string
	Email     *string
	ImageURL  *string
	Location  *string
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo repository.UserRepository
	listings ListingLister
	bookings BookingLister
	images   ImageLister
	objects  ObjectDeleter
	hasher   PasswordVerifier
	revoker  TokenRevoker
}

// NewService はServiceの新しいインスタンスを生成する。
// objectsとrevokerはnilでもよい。
func NewService(
	userRepo repository.UserRepository,
	listings ListingLister,
	bookings BookingLister,
	images ImageLister,
	objects ObjectDeleter,
	hasher PasswordVerifier,
	revoker TokenRevoker,
) *Service {
	return &Service{
		userRepo: userRepo,
		listings: listings,
		bookings: bookings,
		images:   images,
		objects:  objects,
		hasher:   hasher,
		revoker:  revoker,
	}
}

// List は全ユーザーを返す。
func (s *Service) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}

// Get はusernameのプロフィールを返す。
// viewerが本人の場合のみ予約一覧を含める。未認証の場合viewerは空文字。
func (s *Service) Get(ctx context.Context, viewer, username string) (*Profile, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	listings, err := s.listings.ListByOwner(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("物件一覧の取得に失敗しました: %w", err)
	}
	profile := &Profile{User: user, Listings: listings}

	if viewer != "" && viewer == username {
		bookings, err := s.bookings.ListByGuest(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("予約一覧の取得に失敗しました: %w", err)
		}
		if bookings == nil {
			bookings = []*model.Booking{}
		}
		profile.Bookings = bookings
	}
	return profile, nil
}

// UpdateProfile はactor自身のプロフィールを更新する。
// 現在のパスワードが一致しない場合はInvalidCredentialsエラーを返す。
func (s *Service) UpdateProfile(ctx context.Context, actor string, in UpdateInput) (*model.User, error) {
	if in.Password == "" {
		return nil, model.NewFieldError("password", "password is required")
	}

	user, err := s.userRepo.FindByUsername(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		slog.Info("プロフィール更新の本人確認に失敗しました", slog.String("username", actor))
		return nil, model.NewInvalidCredentialsError()
	}

	errs := model.FieldErrors{}
	if in.FirstName != nil {
		v := strings.TrimSpace(*in.FirstName)
		if validate.Required(errs, "first_name", v) {
			validate.MaxLength(errs, "first_name", v, validate.NameMaxLength)
		}
		user.FirstName = v
	}
	if in.LastName != nil {
		v := strings.TrimSpace(*in.LastName)
		if validate.Required(errs, "last_name", v) {
			validate.MaxLength(errs, "last_name", v, validate.NameMaxLength)
		}
		user.LastName = v
	}
	emailChanged := false
	if in.Email != nil {
		v := strings.TrimSpace(*in.Email)
		validate.Email(errs, v)
		emailChanged = v != user.Email
		user.Email = v
	}
	if in.ImageURL != nil {
		v := strings.TrimSpace(*in.ImageURL)
		validate.HTTPURL(errs, "image_url", v)
		user.ImageURL = v
	}
	if in.Location != nil {
		v := strings.TrimSpace(*in.Location)
		validate.MaxLength(errs, "location", v, validate.TextMaxLength)
		user.Location = v
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if emailChanged {
		other, err := s.userRepo.FindByEmail(ctx, user.Email)
		if err != nil {
			return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
		}
		if other != nil && other.Username != actor {
			return nil, model.NewEmailTakenError()
		}
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailTaken):
			return nil, model.NewEmailTakenError()
		case errors.Is(err, repository.ErrNotFound):
			return nil, model.NewUserNotFoundError()
		}
		return nil, fmt.Errorf("ユーザーの更新に失敗しました: %w", err)
	}

	slog.Info("プロフィールを更新しました", slog.String("username", actor))
	return user, nil
}

// Withdraw はユーザーの退会処理を実行する。
// listings、bookings、messages、imagesはCASCADE削除され、
// 画像オブジェクトの削除とトークンの失効はベストエフォートで行う。
func (s *Service) Withdraw(ctx context.Context, identity *model.Identity) error {
	username := identity.Username

	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します", slog.String("username", username))

	// 行が消える前にオブジェクトキーを控える
	images, err := s.images.ListByUploader(ctx, username)
	if err != nil {
		return fmt.Errorf("画像一覧の取得に失敗しました: %w", err)
	}

	if err := s.userRepo.DeleteByUsername(ctx, username); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewUserNotFoundError()
		}
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	if s.objects != nil && len(images) > 0 {
		keys := make([]string, 0, len(images))
		for _, img := range images {
			keys = append(keys, img.ObjectKey)
		}
		s.objects.DeleteObjects(context.WithoutCancel(ctx), keys)
	}

	if s.revoker != nil {
		if err := s.revoker.Logout(ctx, identity); err != nil {
			slog.Warn("退会時のトークン失効に失敗しました",
				slog.String("username", username),
				slog.String("error", err.Error()),
			)
		}
	}

	slog.Info("退会処理が完了しました",
		slog.String("username", username),
		slog.Int("images", len(images)),
	)
	return nil
}
