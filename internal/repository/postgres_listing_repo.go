package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/sharebnb/internal/model"
	"github.com/lib/pq"
)

// listingSelect は画像URLを配列として集約する物件取得クエリ。
const listingSelect = `
	SELECT l.id, l.title, l.description, l.location, l.type, l.price_per_night, l.user_id, l.created_at,
	       ARRAY(SELECT i.image_url FROM images i WHERE i.listing_id = l.id ORDER BY i.id) AS image_urls
	FROM listings l`

// PostgresListingRepo はPostgreSQLを使用した物件リポジトリ。
type PostgresListingRepo struct {
	db *sql.DB
}

// NewPostgresListingRepo はPostgresListingRepoを生成する。
func NewPostgresListingRepo(db *sql.DB) *PostgresListingRepo {
	return &PostgresListingRepo{db: db}
}

// FindByID は指定IDの物件を取得する。見つからない場合はnilを返す。
func (r *PostgresListingRepo) FindByID(ctx context.Context, id int64) (*model.Listing, error) {
	row := r.db.QueryRowContext(ctx, listingSelect+` WHERE l.id = $1`, id)
	listing, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find listing by ID: %w", err)
	}
	return listing, nil
}

// Search はtitle、location、type、descriptionのいずれかにqueryを含む物件を返す。
// strposで比較するため、LIKEのメタ文字はリテラルとして扱われる。
func (r *PostgresListingRepo) Search(ctx context.Context, query string) ([]*model.Listing, error) {
	rows, err := r.db.QueryContext(ctx, listingSelect+`
	WHERE $1 = ''
	   OR strpos(lower(l.title), lower($1)) > 0
	   OR strpos(lower(l.location), lower($1)) > 0
	   OR strpos(lower(l.type), lower($1)) > 0
	   OR strpos(lower(l.description), lower($1)) > 0
	ORDER BY l.id DESC`,
		query,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search listings: %w", err)
	}
	return collectListings(rows)
}

// ListByOwner は指定ユーザーが所有する物件を返す。
func (r *PostgresListingRepo) ListByOwner(ctx context.Context, username string) ([]*model.Listing, error) {
	rows, err := r.db.QueryContext(ctx, listingSelect+` WHERE l.user_id = $1 ORDER BY l.id DESC`, username)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings by owner: %w", err)
	}
	return collectListings(rows)
}

// CreateWithImages は物件と画像を同一トランザクションで作成する。
// 生成されたIDとcreated_atをlisting、imagesへ書き戻す。
func (r *PostgresListingRepo) CreateWithImages(ctx context.Context, listing *model.Listing, images []*model.Image) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO listings (title, description, location, type, price_per_night, user_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		listing.Title, listing.Description, listing.Location, listing.Type,
		listing.PricePerNight, listing.UserID,
	).Scan(&listing.ID, &listing.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert listing: %w", classifyPQError(err))
	}

	urls := make([]string, 0, len(images))
	for _, img := range images {
		img.ListingID = listing.ID
		if err := insertImage(ctx, tx, img); err != nil {
			return err
		}
		urls = append(urls, img.URL)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	listing.Images = urls
	return nil
}

// Update は物件のテキスト項目と料金を更新する。
func (r *PostgresListingRepo) Update(ctx context.Context, listing *model.Listing) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE listings
		 SET title = $2, description = $3, location = $4, type = $5, price_per_night = $6
		 WHERE id = $1`,
		listing.ID, listing.Title, listing.Description, listing.Location, listing.Type,
		listing.PricePerNight,
	)
	if err != nil {
		return fmt.Errorf("failed to update listing: %w", classifyPQError(err))
	}
	return requireAffected(result, "listing")
}

// DeleteByID は指定IDの物件を削除する。
func (r *PostgresListingRepo) DeleteByID(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	return requireAffected(result, "listing")
}

func scanListing(s rowScanner) (*model.Listing, error) {
	l := &model.Listing{}
	var images []string
	err := s.Scan(
		&l.ID, &l.Title, &l.Description, &l.Location, &l.Type, &l.PricePerNight,
		&l.UserID, &l.CreatedAt, pq.Array(&images),
	)
	if err != nil {
		return nil, err
	}
	l.Images = images
	if l.Images == nil {
		l.Images = []string{}
	}
	return l, nil
}

func collectListings(rows *sql.Rows) ([]*model.Listing, error) {
	defer rows.Close()

	listings := []*model.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate listings: %w", err)
	}
	return listings, nil
}

// compile-time interface check
var _ ListingRepository = (*PostgresListingRepo)(nil)
