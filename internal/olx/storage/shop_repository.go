package storage

import (
	"context"
	"database/sql"
	"fmt"

	"olxmarket_api/internal/core/models"
)

type ShopRepository struct {
	db *sql.DB
}

func NewShopRepository(db *sql.DB) *ShopRepository {
	return &ShopRepository{db: db}
}

func (r *ShopRepository) GetShop(ctx context.Context, shopID int64) (*models.Shop, error) {
	var shop models.Shop
	var token sql.NullString
	var expiresAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, olx_login, olx_secret, token, token_expires_at,
		       token_version, created_at, updated_at
		FROM core.shops
		WHERE id = $1;
	`, shopID).Scan(
		&shop.ID, &shop.Name, &shop.OlxLogin, &shop.OlxSecret,
		&token, &expiresAt, &shop.Token.Version,
		&shop.CreatedAt, &shop.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("fetching shop %d: %w", shopID, err)
	}
	if token.Valid {
		shop.Token.AccessToken = token.String
	}
	if expiresAt.Valid {
		shop.Token.ExpiresAt = expiresAt.Time
	}
	return &shop, nil
}

// SwapToken is the compare-and-swap: the token only lands when nobody else
// refreshed it since the caller read version expectedVersion.
func (r *ShopRepository) SwapToken(ctx context.Context, shopID int64, token models.Token, expectedVersion int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE core.shops
		SET token = $1, token_expires_at = $2, token_version = $3, updated_at = now()
		WHERE id = $4 AND token_version = $5;
	`, token.AccessToken, token.ExpiresAt, token.Version, shopID, expectedVersion)
	if err != nil {
		return false, fmt.Errorf("swapping token of shop %d: %w", shopID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}
