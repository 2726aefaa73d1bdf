package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/sharebnb/internal/model"
)

// PostgresImageRepo はPostgreSQLを使用した画像リポジトリ。
type PostgresImageRepo struct {
	db *sql.DB
}

// NewPostgresImageRepo はPostgresImageRepoを生成する。
func NewPostgresImageRepo(db *sql.DB) *PostgresImageRepo {
	return &PostgresImageRepo{db: db}
}

// CreateBatch は複数の画像を同一トランザクションで作成する。
func (r *PostgresImageRepo) CreateBatch(ctx context.Context, images []*model.Image) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, img := range images {
		if err := insertImage(ctx, tx, img); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListByListing は物件に紐づく画像を返す。
func (r *PostgresImageRepo) ListByListing(ctx context.Context, listingID int64) ([]*model.Image, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, listing_id, uploaded_by, image_url, object_key, created_at
		 FROM images WHERE listing_id = $1 ORDER BY id`,
		listingID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list images by listing: %w", err)
	}
	return collectImages(rows)
}

// ListByUploader は指定ユーザーがアップロードした画像を返す。
func (r *PostgresImageRepo) ListByUploader(ctx context.Context, username string) ([]*model.Image, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, listing_id, uploaded_by, image_url, object_key, created_at
		 FROM images WHERE uploaded_by = $1 ORDER BY id`,
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list images by uploader: %w", err)
	}
	return collectImages(rows)
}

// insertImage はトランザクション内で画像を1件作成する。
func insertImage(ctx context.Context, tx *sql.Tx, img *model.Image) error {
	err := tx.QueryRowContext(ctx,
		`INSERT INTO images (listing_id, uploaded_by, image_url, object_key)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		img.ListingID, img.UploadedBy, img.URL, img.ObjectKey,
	).Scan(&img.ID, &img.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert image: %w", classifyPQError(err))
	}
	return nil
}

func collectImages(rows *sql.Rows) ([]*model.Image, error) {
	defer rows.Close()

	var images []*model.Image
	for rows.Next() {
		img := &model.Image{}
		if err := rows.Scan(&img.ID, &img.ListingID, &img.UploadedBy, &img.URL, &img.ObjectKey, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate images: %w", err)
	}
	return images, nil
}

// compile-time interface check
var _ ImageRepository = (*PostgresImageRepo)(nil)
