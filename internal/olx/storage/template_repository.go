package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"olxmarket_api/internal/core/models"
)

type TemplateRepository struct {
	db *sql.DB
}

func NewTemplateRepository(db *sql.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) Get(ctx context.Context, id int64) (*models.CategoryTemplate, error) {
	var template models.CategoryTemplate
	var rules []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, shop_id, name, category_external_id, location_external_id,
		       lat, lon, listing_type, condition, rules
		FROM core.category_templates
		WHERE id = $1;
	`, id).Scan(
		&template.ID, &template.ShopID, &template.Name,
		&template.CategoryExternalID, &template.LocationExternalID,
		&template.Lat, &template.Lon, &template.ListingType,
		&template.Condition, &rules,
	)
	if err != nil {
		return nil, fmt.Errorf("fetching template %d: %w", id, err)
	}
	if len(rules) > 0 {
		if err := json.Unmarshal(rules, &template.Rules); err != nil {
			return nil, fmt.Errorf("decoding rules of template %d: %w", id, err)
		}
	}
	return &template, nil
}

func (r *TemplateRepository) Create(ctx context.Context, template *models.CategoryTemplate) error {
	rules, err := json.Marshal(template.Rules)
	if err != nil {
		return fmt.Errorf("encoding template rules: %w", err)
	}
	query := `
		INSERT INTO core.category_templates
			(shop_id, name, category_external_id, location_external_id, lat, lon,
			 listing_type, condition, rules)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id;
	`
	err = r.db.QueryRowContext(ctx, query,
		template.ShopID, template.Name, template.CategoryExternalID,
		template.LocationExternalID, template.Lat, template.Lon,
		template.ListingType, template.Condition, rules,
	).Scan(&template.ID)
	if err != nil {
		return fmt.Errorf("inserting template %q: %w", template.Name, err)
	}
	return nil
}
