// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/sharebnb/internal/model"
)

// 制約違反を表すセンチネルエラー。*pq.Errorから変換して返す。
var (
	ErrUsernameTaken = errors.New("username already exists")
	ErrEmailTaken    = errors.New("email already exists")
	ErrDuplicate     = errors.New("duplicate record")
	ErrForeignKey    = errors.New("referenced record does not exist")
	ErrNotFound      = errors.New("record not found")
)

// UserRepository はユーザーデータ（Credential Store）の永続化インターフェース。
type UserRepository interface {
	// FindByUsername は指定usernameのユーザーを取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// List は全ユーザーをusername順で返す。
	List(ctx context.Context) ([]*model.User, error)

	// Create はユーザーを作成する。
	// usernameまたはemailが重複する場合はErrUsernameTaken/ErrEmailTakenを返す。
	Create(ctx context.Context, user *model.User) error

	// Update はプロフィール項目とパスワードダイジェストを更新する。
	Update(ctx context.Context, user *model.User) error

	// DeleteByUsername は指定ユーザーを削除する。
	// listings、bookings、messages、imagesはCASCADE削除される。
	DeleteByUsername(ctx context.Context, username string) error
}

// ListingRepository は物件データの永続化インターフェース。
// 返却するListingのImagesには画像URLがid順で格納される。
type ListingRepository interface {
	// FindByID は指定IDの物件を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Listing, error)

	// Search はtitle、location、type、descriptionのいずれかにqueryを含む物件を返す。
	// 大文字小文字を区別せず、%や_はワイルドカードとして扱わない。
	// queryが空の場合は全件を返す。
	Search(ctx context.Context, query string) ([]*model.Listing, error)

	// ListByOwner は指定ユーザーが所有する物件を返す。
	ListByOwner(ctx context.Context, username string) ([]*model.Listing, error)

	// CreateWithImages は物件と画像を同一トランザクションで作成する。
	// どちらかが失敗した場合は何も残さない。
	CreateWithImages(ctx context.Context, listing *model.Listing, images []*model.Image) error

	// Update は物件のテキスト項目と料金を更新する。
	Update(ctx context.Context, listing *model.Listing) error

	// DeleteByID は指定IDの物件を削除する。
	// bookings、messages、imagesはCASCADE削除される。
	DeleteByID(ctx context.Context, id int64) error
}

// ImageRepository は画像メタデータの永続化インターフェース。
type ImageRepository interface {
	// CreateBatch は複数の画像を同一トランザクションで作成する。
	CreateBatch(ctx context.Context, images []*model.Image) error

	// ListByListing は物件に紐づく画像を返す。
	ListByListing(ctx context.Context, listingID int64) ([]*model.Image, error)

	// ListByUploader は指定ユーザーがアップロードした画像を返す。
	ListByUploader(ctx context.Context, username string) ([]*model.Image, error)
}

// BookingRepository は予約データの永続化インターフェース。
// 返却するBookingのHostは物件所有者のusername。
type BookingRepository interface {
	// Create は予約を作成する。
	Create(ctx context.Context, booking *model.Booking) error

	// FindByID は指定IDの予約を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Booking, error)

	// ListByGuest は指定ユーザーがゲストである予約を返す。
	ListByGuest(ctx context.Context, guest string) ([]*model.Booking, error)

	// ListByListing は物件に対する予約を返す。
	ListByListing(ctx context.Context, listingID int64) ([]*model.Booking, error)
}

// MessageRepository はメッセージデータの永続化インターフェース。
// 一覧は送信日時の新しい順で返す。
type MessageRepository interface {
	// Create はメッセージを作成する。
	Create(ctx context.Context, message *model.Message) error

	// ListByListing は物件に紐づくメッセージを返す。
	ListByListing(ctx context.Context, listingID int64) ([]*model.Message, error)

	// ListByUser は指定ユーザーが送信者または受信者であるメッセージを返す。
	ListByUser(ctx context.Context, username string) ([]*model.Message, error)
}
