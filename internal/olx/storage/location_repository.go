package storage

import (
	"context"
	"database/sql"
	"fmt"

	"olxmarket_api/internal/core/models"

	"github.com/lib/pq"
)

type LocationRepository struct {
	db *sql.DB
}

func NewLocationRepository(db *sql.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

func (r *LocationRepository) UpsertLocation(ctx context.Context, location *models.OlxLocation) error {
	query := `
		INSERT INTO olx.locations
			(external_id, name, country_id, region_id, subregion_id, lat, lon, postal_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (external_id) DO UPDATE
		SET name        = EXCLUDED.name,
		    country_id  = EXCLUDED.country_id,
		    region_id   = EXCLUDED.region_id,
		    subregion_id = EXCLUDED.subregion_id,
		    lat         = EXCLUDED.lat,
		    lon         = EXCLUDED.lon,
		    postal_code = EXCLUDED.postal_code
		RETURNING id;
	`
	err := r.db.QueryRowContext(ctx, query,
		location.ExternalID, location.Name, location.CountryID, location.RegionID,
		location.SubregionID, location.Lat, location.Lon, location.PostalCode,
	).Scan(&location.ID)
	if err != nil {
		return fmt.Errorf("upserting location %d: %w", location.ExternalID, err)
	}
	return nil
}

func (r *LocationRepository) DeleteLocationsNotIn(ctx context.Context, externalIDs []int64) (int, error) {
	var result sql.Result
	var err error
	if len(externalIDs) == 0 {
		result, err = r.db.ExecContext(ctx, `DELETE FROM olx.locations;`)
	} else {
		result, err = r.db.ExecContext(ctx, `
			DELETE FROM olx.locations WHERE external_id != ALL($1);
		`, pq.Array(externalIDs))
	}
	if err != nil {
		return 0, fmt.Errorf("deleting vanished locations: %w", err)
	}
	affected, err := result.RowsAffected()
	return int(affected), err
}

// LocationByExternalID returns nil when the id is unknown locally.
func (r *LocationRepository) LocationByExternalID(ctx context.Context, externalID int64) (*models.OlxLocation, error) {
	var location models.OlxLocation
	err := r.db.QueryRowContext(ctx, `
		SELECT id, external_id, name, country_id, region_id, subregion_id,
		       lat, lon, COALESCE(postal_code, '')
		FROM olx.locations
		WHERE external_id = $1;
	`, externalID).Scan(
		&location.ID, &location.ExternalID, &location.Name, &location.CountryID,
		&location.RegionID, &location.SubregionID, &location.Lat, &location.Lon,
		&location.PostalCode,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching location %d: %w", externalID, err)
	}
	return &location, nil
}
