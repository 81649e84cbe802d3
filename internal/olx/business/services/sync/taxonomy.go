package sync

import (
	"context"
	"fmt"

	"olxmarket_api/internal/core/models"
	"olxmarket_api/internal/olx/business/models/dto/response"
	"olxmarket_api/pkg/logger"
)

// TaxonomyAPI is the remote side of a taxonomy refresh.
type TaxonomyAPI interface {
	FetchAll(ctx context.Context, shopID int64) ([]response.Category, error)
	FetchAttributes(ctx context.Context, shopID, categoryExternalID int64) ([]response.CategoryAttribute, error)
}

type LocationAPI interface {
	FetchAll(ctx context.Context, shopID int64) ([]response.Location, error)
}

// CategoryStore is the local cache side. Deletions cascade to the
// category's attributes.
type CategoryStore interface {
	UpsertCategory(ctx context.Context, category *models.OlxCategory) error
	SetParent(ctx context.Context, externalID int64, parentID *int64) error
	AllCategories(ctx context.Context) ([]models.OlxCategory, error)
	DeleteCategoriesNotIn(ctx context.Context, externalIDs []int64) (int, error)
	ReplaceAttributes(ctx context.Context, categoryExternalID int64, attributes []models.OlxCategoryAttribute) error
}

type LocationStore interface {
	UpsertLocation(ctx context.Context, location *models.OlxLocation) error
	DeleteLocationsNotIn(ctx context.Context, externalIDs []int64) (int, error)
}

// Result aggregates one sync run. A failed item never aborts the rest; the
// caller inspects the counts and the error list.
type Result struct {
	Total   int      `json:"total"`
	Synced  int      `json:"synced"`
	Failed  int      `json:"failed"`
	Deleted int      `json:"deleted"`
	Errors  []string `json:"errors,omitempty"`
}

func (r *Result) fail(format string, v ...interface{}) {
	r.Failed++
	r.Errors = append(r.Errors, fmt.Sprintf(format, v...))
}

// TaxonomySync reconciles the local taxonomy cache against the marketplace.
// The sync is declaratively authoritative: whatever the latest full fetch
// does not contain is removed locally.
type TaxonomySync struct {
	categories TaxonomyAPI
	locations  LocationAPI
	catStore   CategoryStore
	locStore   LocationStore
	log        logger.Logger
}

func NewTaxonomySync(categories TaxonomyAPI, locations LocationAPI, catStore CategoryStore, locStore LocationStore, log logger.Logger) *TaxonomySync {
	return &TaxonomySync{
		categories: categories,
		locations:  locations,
		catStore:   catStore,
		locStore:   locStore,
		log:        log,
	}
}

// SyncCategories runs the two-phase tree reconciliation:
//
//  1. upsert every fetched category keyed by external_id, parents left
//     unresolved;
//  2. re-resolve every parent link against the in-memory index of the now
//     complete set, correcting rows whose stored parent differs.
//
// The second pass is idempotent and safe to re-run as a maintenance
// operation. A parent id that was never fetched leaves the child a root;
// traversal never sees a dangling reference.
func (s *TaxonomySync) SyncCategories(ctx context.Context, shopID int64) (*Result, error) {
	fetched, err := s.categories.FetchAll(ctx, shopID)
	if err != nil {
		return nil, fmt.Errorf("fetching category tree: %w", err)
	}

	result := &Result{Total: len(fetched)}

	// phase 1: insert-all
	index := make(map[int64]*models.OlxCategory, len(fetched))
	externalIDs := make([]int64, 0, len(fetched))
	for i := range fetched {
		remote := &fetched[i]
		row := &models.OlxCategory{
			ExternalID:       remote.ID,
			Name:             remote.Name,
			Slug:             remote.Slug,
			ParentExternalID: remote.ParentID,
			SupportsShipping: remote.Shipping,
			SupportsBrand:    remote.BrandField,
			Metadata:         remote.Metadata,
		}
		if err := s.catStore.UpsertCategory(ctx, row); err != nil {
			result.fail("category %d (%s): %v", remote.ID, remote.Name, err)
			continue
		}
		index[row.ExternalID] = row
		externalIDs = append(externalIDs, row.ExternalID)
	}

	// phase 2: resolve-parents over the complete index
	stored, err := s.catStore.AllCategories(ctx)
	if err != nil {
		return result, fmt.Errorf("loading stored categories: %w", err)
	}
	storedParents := make(map[int64]*int64, len(stored))
	for i := range stored {
		storedParents[stored[i].ExternalID] = stored[i].ParentID
	}
	for _, row := range index {
		var wantParent *int64
		if parent, ok := index[row.ParentExternalID]; ok && row.ParentExternalID != row.ExternalID {
			wantParent = &parent.ID
		}
		if parentEqual(storedParents[row.ExternalID], wantParent) {
			continue
		}
		if err := s.catStore.SetParent(ctx, row.ExternalID, wantParent); err != nil {
			result.fail("parent of category %d: %v", row.ExternalID, err)
		}
	}

	// cleanup: the fetch is the full truth
	deleted, err := s.catStore.DeleteCategoriesNotIn(ctx, externalIDs)
	if err != nil {
		return result, fmt.Errorf("removing vanished categories: %w", err)
	}
	result.Deleted = deleted

	// attribute schemas, one category at a time
	for _, externalID := range externalIDs {
		attributes, err := s.categories.FetchAttributes(ctx, shopID, externalID)
		if err != nil {
			result.fail("attributes of category %d: %v", externalID, err)
			continue
		}
		rows := make([]models.OlxCategoryAttribute, 0, len(attributes))
		for _, attr := range attributes {
			rows = append(rows, models.OlxCategoryAttribute{
				CategoryExternalID: externalID,
				Name:               attr.Name,
				Type:               attr.Type,
				InputKind:          attr.InputKind,
				Required:           attr.Required,
				Options:            attr.Options,
			})
		}
		if err := s.catStore.ReplaceAttributes(ctx, externalID, rows); err != nil {
			result.fail("storing attributes of category %d: %v", externalID, err)
			continue
		}
		result.Synced++
	}

	s.log.Log("category sync: %d total, %d synced, %d failed, %d deleted",
		result.Total, result.Synced, result.Failed, result.Deleted)
	return result, nil
}

// SyncLocations refreshes the location list wholesale.
func (s *TaxonomySync) SyncLocations(ctx context.Context, shopID int64) (*Result, error) {
	fetched, err := s.locations.FetchAll(ctx, shopID)
	if err != nil {
		return nil, fmt.Errorf("fetching locations: %w", err)
	}

	result := &Result{Total: len(fetched)}
	externalIDs := make([]int64, 0, len(fetched))
	for i := range fetched {
		remote := &fetched[i]
		row := &models.OlxLocation{
			ExternalID:  remote.ID,
			Name:        remote.Name,
			CountryID:   remote.CountryID,
			RegionID:    remote.RegionID,
			SubregionID: remote.SubregionID,
			Lat:         remote.Lat,
			Lon:         remote.Lon,
			PostalCode:  remote.PostalCode,
		}
		if err := s.locStore.UpsertLocation(ctx, row); err != nil {
			result.fail("location %d (%s): %v", remote.ID, remote.Name, err)
			continue
		}
		externalIDs = append(externalIDs, row.ExternalID)
		result.Synced++
	}

	deleted, err := s.locStore.DeleteLocationsNotIn(ctx, externalIDs)
	if err != nil {
		return result, fmt.Errorf("removing vanished locations: %w", err)
	}
	result.Deleted = deleted

	s.log.Log("location sync: %d total, %d synced, %d failed, %d deleted",
		result.Total, result.Synced, result.Failed, result.Deleted)
	return result, nil
}

func parentEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
