package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"olxmarket_api/internal/core/models"

	"github.com/lib/pq"
)

type CategoryRepository struct {
	db *sql.DB
}

func NewCategoryRepository(db *sql.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// UpsertCategory writes the node keyed by external_id, leaving the parent
// link untouched; the resolve-parents pass owns that column.
func (r *CategoryRepository) UpsertCategory(ctx context.Context, category *models.OlxCategory) error {
	query := `
		INSERT INTO olx.categories
			(external_id, name, slug, parent_external_id, supports_shipping, supports_brand, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (external_id) DO UPDATE
		SET name               = EXCLUDED.name,
		    slug               = EXCLUDED.slug,
		    parent_external_id = EXCLUDED.parent_external_id,
		    supports_shipping  = EXCLUDED.supports_shipping,
		    supports_brand     = EXCLUDED.supports_brand,
		    metadata           = EXCLUDED.metadata
		RETURNING id;
	`
	metadata := category.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage("{}")
	}
	err := r.db.QueryRowContext(ctx, query,
		category.ExternalID, category.Name, category.Slug, category.ParentExternalID,
		category.SupportsShipping, category.SupportsBrand, []byte(metadata),
	).Scan(&category.ID)
	if err != nil {
		return fmt.Errorf("upserting category %d: %w", category.ExternalID, err)
	}
	return nil
}

func (r *CategoryRepository) SetParent(ctx context.Context, externalID int64, parentID *int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE olx.categories SET parent_id = $1 WHERE external_id = $2;
	`, parentID, externalID)
	if err != nil {
		return fmt.Errorf("setting parent of category %d: %w", externalID, err)
	}
	return nil
}

func (r *CategoryRepository) AllCategories(ctx context.Context) ([]models.OlxCategory, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, external_id, name, slug, parent_external_id, parent_id,
		       supports_shipping, supports_brand, metadata
		FROM olx.categories;
	`)
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}
	defer rows.Close()

	var categories []models.OlxCategory
	for rows.Next() {
		var category models.OlxCategory
		var metadata []byte
		if err := rows.Scan(
			&category.ID, &category.ExternalID, &category.Name, &category.Slug,
			&category.ParentExternalID, &category.ParentID,
			&category.SupportsShipping, &category.SupportsBrand, &metadata,
		); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		category.Metadata = metadata
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

// DeleteCategoriesNotIn removes every category absent from the latest full
// fetch; attributes go with them through the FK cascade.
func (r *CategoryRepository) DeleteCategoriesNotIn(ctx context.Context, externalIDs []int64) (int, error) {
	var result sql.Result
	var err error
	if len(externalIDs) == 0 {
		result, err = r.db.ExecContext(ctx, `DELETE FROM olx.categories;`)
	} else {
		result, err = r.db.ExecContext(ctx, `
			DELETE FROM olx.categories WHERE external_id != ALL($1);
		`, pq.Array(externalIDs))
	}
	if err != nil {
		return 0, fmt.Errorf("deleting vanished categories: %w", err)
	}
	affected, err := result.RowsAffected()
	return int(affected), err
}

// ReplaceAttributes swaps the category's attribute schema wholesale.
func (r *CategoryRepository) ReplaceAttributes(ctx context.Context, categoryExternalID int64, attributes []models.OlxCategoryAttribute) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning attribute replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM olx.category_attributes WHERE category_external_id = $1;
	`, categoryExternalID); err != nil {
		return fmt.Errorf("clearing attributes of category %d: %w", categoryExternalID, err)
	}

	if len(attributes) > 0 {
		query := `
			INSERT INTO olx.category_attributes
				(category_external_id, name, type, input_kind, required, options)
			VALUES `
		valueStrings := make([]string, 0, len(attributes))
		args := make([]interface{}, 0, len(attributes)*6)
		for i, attr := range attributes {
			valueStrings = append(valueStrings, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)",
				i*6+1, i*6+2, i*6+3, i*6+4, i*6+5, i*6+6))
			args = append(args, categoryExternalID, attr.Name, attr.Type,
				attr.InputKind, attr.Required, pq.Array(attr.Options))
		}
		query += strings.Join(valueStrings, ", ")
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("inserting attributes of category %d: %w", categoryExternalID, err)
		}
	}

	return tx.Commit()
}

// CategoryByExternalID returns nil when the id is unknown locally.
func (r *CategoryRepository) CategoryByExternalID(ctx context.Context, externalID int64) (*models.OlxCategory, error) {
	var category models.OlxCategory
	var metadata []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, external_id, name, slug, parent_external_id, parent_id,
		       supports_shipping, supports_brand, metadata
		FROM olx.categories
		WHERE external_id = $1;
	`, externalID).Scan(
		&category.ID, &category.ExternalID, &category.Name, &category.Slug,
		&category.ParentExternalID, &category.ParentID,
		&category.SupportsShipping, &category.SupportsBrand, &metadata,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching category %d: %w", externalID, err)
	}
	category.Metadata = metadata
	return &category, nil
}

func (r *CategoryRepository) AttributesFor(ctx context.Context, categoryExternalID int64) ([]models.OlxCategoryAttribute, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, category_external_id, name, type, input_kind, required, options
		FROM olx.category_attributes
		WHERE category_external_id = $1
		ORDER BY name;
	`, categoryExternalID)
	if err != nil {
		return nil, fmt.Errorf("querying attributes of category %d: %w", categoryExternalID, err)
	}
	defer rows.Close()

	var attributes []models.OlxCategoryAttribute
	for rows.Next() {
		var attr models.OlxCategoryAttribute
		if err := rows.Scan(
			&attr.ID, &attr.CategoryExternalID, &attr.Name, &attr.Type,
			&attr.InputKind, &attr.Required, pq.Array(&attr.Options),
		); err != nil {
			return nil, fmt.Errorf("scanning attribute: %w", err)
		}
		attributes = append(attributes, attr)
	}
	return attributes, rows.Err()
}
