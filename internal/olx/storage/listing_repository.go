package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"olxmarket_api/internal/core/models"
)

type ListingRepository struct {
	db *sql.DB
}

func NewListingRepository(db *sql.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

// ByProduct returns the product's listing, or nil when it was never
// published.
func (r *ListingRepository) ByProduct(ctx context.Context, productID int64) (*models.Listing, error) {
	var listing models.Listing
	var metadata []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, shop_id, product_id, external_id, status, published_at,
		       metadata, created_at, updated_at
		FROM core.listings
		WHERE product_id = $1;
	`, productID).Scan(
		&listing.ID, &listing.ShopID, &listing.ProductID, &listing.ExternalID,
		&listing.Status, &listing.PublishedAt, &metadata,
		&listing.CreatedAt, &listing.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching listing of product %d: %w", productID, err)
	}
	listing.Metadata = metadata
	return &listing, nil
}

func (r *ListingRepository) Create(ctx context.Context, listing *models.Listing) error {
	query := `
		INSERT INTO core.listings (shop_id, product_id, external_id, status, published_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at;
	`
	err := r.db.QueryRowContext(ctx, query,
		listing.ShopID, listing.ProductID, listing.ExternalID, listing.Status,
		listing.PublishedAt, listingMetadata(listing),
	).Scan(&listing.ID, &listing.CreatedAt, &listing.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting listing %s: %w", listing.ExternalID, err)
	}
	return nil
}

// Update rewrites the mutable columns; external_id is immutable once set and
// deliberately not part of the statement.
func (r *ListingRepository) Update(ctx context.Context, listing *models.Listing) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE core.listings
		SET status = $1, published_at = $2, metadata = $3, updated_at = now()
		WHERE id = $4;
	`, listing.Status, listing.PublishedAt, listingMetadata(listing), listing.ID)
	if err != nil {
		return fmt.Errorf("updating listing %d: %w", listing.ID, err)
	}
	return nil
}

// listingMetadata never hands the NOT NULL metadata column a nil value; a
// listing without a remote snapshot stores an empty object.
func listingMetadata(listing *models.Listing) []byte {
	if len(listing.Metadata) == 0 {
		return []byte(json.RawMessage("{}"))
	}
	return []byte(listing.Metadata)
}
