package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"olxmarket_api/internal/core/models"

	"github.com/lib/pq"
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Upsert writes the product keyed by (shop_id, source, sku); repeated imports
// of the same feed update the same row instead of duplicating it.
func (r *ProductRepository) Upsert(ctx context.Context, product *models.Product) (int64, error) {
	specs, err := json.Marshal(product.Specs)
	if err != nil {
		return 0, fmt.Errorf("encoding specs: %w", err)
	}

	query := `
		INSERT INTO core.products
			(shop_id, source, sku, title, brand, category, price, currency,
			 stock, description, margin_pct, final_price, specs, template_id, image_urls)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (shop_id, source, sku) DO UPDATE
		SET title       = EXCLUDED.title,
		    brand       = EXCLUDED.brand,
		    category    = EXCLUDED.category,
		    price       = EXCLUDED.price,
		    currency    = EXCLUDED.currency,
		    stock       = EXCLUDED.stock,
		    description = EXCLUDED.description,
		    margin_pct  = EXCLUDED.margin_pct,
		    final_price = EXCLUDED.final_price,
		    specs       = EXCLUDED.specs,
		    image_urls  = EXCLUDED.image_urls,
		    updated_at  = now()
		RETURNING id;
	`
	var id int64
	err = r.db.QueryRowContext(ctx, query,
		product.ShopID, product.Source, product.SKU, product.Title, product.Brand,
		product.Category, product.Price, product.Currency, product.Stock,
		product.Description, product.MarginPct, product.FinalPrice, specs,
		product.TemplateID, pq.Array(product.ImageURLs),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting product %s/%s: %w", product.Source, product.SKU, err)
	}
	product.ID = id
	return id, nil
}

// Insert stores a product without any dedup key; only used for blank skus.
func (r *ProductRepository) Insert(ctx context.Context, product *models.Product) (int64, error) {
	specs, err := json.Marshal(product.Specs)
	if err != nil {
		return 0, fmt.Errorf("encoding specs: %w", err)
	}

	query := `
		INSERT INTO core.products
			(shop_id, source, sku, title, brand, category, price, currency,
			 stock, description, margin_pct, final_price, specs, template_id, image_urls)
		VALUES ($1, $2, NULL, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id;
	`
	var id int64
	err = r.db.QueryRowContext(ctx, query,
		product.ShopID, product.Source, product.Title, product.Brand,
		product.Category, product.Price, product.Currency, product.Stock,
		product.Description, product.MarginPct, product.FinalPrice, specs,
		product.TemplateID, pq.Array(product.ImageURLs),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting product without sku: %w", err)
	}
	product.ID = id
	return id, nil
}

// Update rewrites a product row by id, for products without an upsert key.
func (r *ProductRepository) Update(ctx context.Context, product *models.Product) error {
	specs, err := json.Marshal(product.Specs)
	if err != nil {
		return fmt.Errorf("encoding specs: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE core.products
		SET title = $1, brand = $2, category = $3, price = $4, currency = $5,
		    stock = $6, description = $7, margin_pct = $8, final_price = $9,
		    specs = $10, image_urls = $11, updated_at = now()
		WHERE id = $12;
	`,
		product.Title, product.Brand, product.Category, product.Price,
		product.Currency, product.Stock, product.Description, product.MarginPct,
		product.FinalPrice, specs, pq.Array(product.ImageURLs), product.ID,
	)
	if err != nil {
		return fmt.Errorf("updating product %d: %w", product.ID, err)
	}
	return nil
}

func (r *ProductRepository) Get(ctx context.Context, id int64) (*models.Product, error) {
	query := `
		SELECT id, shop_id, source, COALESCE(sku, ''), title, brand, category,
		       price, currency, stock, description, margin_pct, final_price,
		       specs, template_id, image_urls, created_at, updated_at
		FROM core.products
		WHERE id = $1;
	`
	var product models.Product
	var specs []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&product.ID, &product.ShopID, &product.Source, &product.SKU,
		&product.Title, &product.Brand, &product.Category, &product.Price,
		&product.Currency, &product.Stock, &product.Description,
		&product.MarginPct, &product.FinalPrice, &specs, &product.TemplateID,
		pq.Array(&product.ImageURLs), &product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("fetching product %d: %w", id, err)
	}
	if len(specs) > 0 {
		if err := json.Unmarshal(specs, &product.Specs); err != nil {
			return nil, fmt.Errorf("decoding specs of product %d: %w", id, err)
		}
	}
	return &product, nil
}

// ByExternalListing finds the product already linked to a remote listing id,
// used by the pull direction of the sync engine.
func (r *ProductRepository) ByExternalListing(ctx context.Context, shopID int64, externalID string) (*models.Product, error) {
	query := `
		SELECT p.id
		FROM core.products p
		JOIN core.listings l ON l.product_id = p.id
		WHERE l.shop_id = $1 AND l.external_id = $2;
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query, shopID, externalID).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("looking up product by listing %s: %w", externalID, err)
	}
	return r.Get(ctx, id)
}
