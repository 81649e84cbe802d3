package sync

import (
	"context"
	"io"
	"testing"

	"olxmarket_api/internal/core/models"
	"olxmarket_api/internal/olx/business/models/dto/response"
	"olxmarket_api/pkg/logger"
)

type fakeTaxonomyAPI struct {
	categories []response.Category
	attributes map[int64][]response.CategoryAttribute
}

func (f *fakeTaxonomyAPI) FetchAll(_ context.Context, _ int64) ([]response.Category, error) {
	return f.categories, nil
}

func (f *fakeTaxonomyAPI) FetchAttributes(_ context.Context, _ int64, categoryExternalID int64) ([]response.CategoryAttribute, error) {
	return f.attributes[categoryExternalID], nil
}

type fakeLocationAPI struct {
	locations []response.Location
}

func (f *fakeLocationAPI) FetchAll(_ context.Context, _ int64) ([]response.Location, error) {
	return f.locations, nil
}

// fakeCategoryStore mirrors the SQL repository semantics against a map.
type fakeCategoryStore struct {
	nextID     int64
	byExternal map[int64]*models.OlxCategory
	attributes map[int64][]models.OlxCategoryAttribute
}

func newFakeCategoryStore() *fakeCategoryStore {
	return &fakeCategoryStore{
		byExternal: make(map[int64]*models.OlxCategory),
		attributes: make(map[int64][]models.OlxCategoryAttribute),
	}
}

func (s *fakeCategoryStore) UpsertCategory(_ context.Context, category *models.OlxCategory) error {
	if existing, ok := s.byExternal[category.ExternalID]; ok {
		category.ID = existing.ID
		category.ParentID = existing.ParentID
	} else {
		s.nextID++
		category.ID = s.nextID
	}
	copied := *category
	s.byExternal[category.ExternalID] = &copied
	return nil
}

func (s *fakeCategoryStore) SetParent(_ context.Context, externalID int64, parentID *int64) error {
	s.byExternal[externalID].ParentID = parentID
	return nil
}

func (s *fakeCategoryStore) AllCategories(_ context.Context) ([]models.OlxCategory, error) {
	var all []models.OlxCategory
	for _, category := range s.byExternal {
		all = append(all, *category)
	}
	return all, nil
}

func (s *fakeCategoryStore) DeleteCategoriesNotIn(_ context.Context, externalIDs []int64) (int, error) {
	keep := make(map[int64]struct{}, len(externalIDs))
	for _, id := range externalIDs {
		keep[id] = struct{}{}
	}
	deleted := 0
	for externalID := range s.byExternal {
		if _, ok := keep[externalID]; !ok {
			delete(s.byExternal, externalID)
			delete(s.attributes, externalID)
			deleted++
		}
	}
	return deleted, nil
}

func (s *fakeCategoryStore) ReplaceAttributes(_ context.Context, categoryExternalID int64, attributes []models.OlxCategoryAttribute) error {
	s.attributes[categoryExternalID] = attributes
	return nil
}

type fakeLocationStore struct {
	byExternal map[int64]*models.OlxLocation
}

func newFakeLocationStore() *fakeLocationStore {
	return &fakeLocationStore{byExternal: make(map[int64]*models.OlxLocation)}
}

func (s *fakeLocationStore) UpsertLocation(_ context.Context, location *models.OlxLocation) error {
	copied := *location
	s.byExternal[location.ExternalID] = &copied
	return nil
}

func (s *fakeLocationStore) DeleteLocationsNotIn(_ context.Context, externalIDs []int64) (int, error) {
	keep := make(map[int64]struct{}, len(externalIDs))
	for _, id := range externalIDs {
		keep[id] = struct{}{}
	}
	deleted := 0
	for externalID := range s.byExternal {
		if _, ok := keep[externalID]; !ok {
			delete(s.byExternal, externalID)
			deleted++
		}
	}
	return deleted, nil
}

func testLog() logger.Logger {
	return logger.NewLogger(io.Discard, "[test]")
}

func TestSyncCategoriesResolvesParentsAcrossPages(t *testing.T) {
	t.Parallel()

	// child arrives before its parent, as pagination can deliver it
	api := &fakeTaxonomyAPI{
		categories: []response.Category{
			{ID: 20, Name: "Phones", ParentID: 10},
			{ID: 10, Name: "Electronics", ParentID: 0},
		},
		attributes: map[int64][]response.CategoryAttribute{},
	}
	store := newFakeCategoryStore()

	s := NewTaxonomySync(api, &fakeLocationAPI{}, store, newFakeLocationStore(), testLog())
	result, err := s.SyncCategories(context.Background(), 1)
	if err != nil {
		t.Fatalf("SyncCategories: %v", err)
	}
	if result.Total != 2 || result.Failed != 0 {
		t.Fatalf("result = %+v, want 2 total 0 failed", result)
	}

	child := store.byExternal[20]
	parent := store.byExternal[10]
	if child.ParentID == nil || *child.ParentID != parent.ID {
		t.Fatalf("child parent = %v, want %d", child.ParentID, parent.ID)
	}
	if parent.ParentID != nil {
		t.Fatalf("root should keep nil parent, got %v", parent.ParentID)
	}
}

func TestSyncCategoriesOrphanBecomesRoot(t *testing.T) {
	t.Parallel()

	api := &fakeTaxonomyAPI{
		categories: []response.Category{
			{ID: 30, Name: "Orphan", ParentID: 999}, // 999 never fetched
		},
		attributes: map[int64][]response.CategoryAttribute{},
	}
	store := newFakeCategoryStore()

	s := NewTaxonomySync(api, &fakeLocationAPI{}, store, newFakeLocationStore(), testLog())
	if _, err := s.SyncCategories(context.Background(), 1); err != nil {
		t.Fatalf("SyncCategories: %v", err)
	}

	if store.byExternal[30].ParentID != nil {
		t.Fatalf("orphan should stay a root, got parent %v", store.byExternal[30].ParentID)
	}
}

func TestSyncCategoriesIsIdempotent(t *testing.T) {
	t.Parallel()

	api := &fakeTaxonomyAPI{
		categories: []response.Category{
			{ID: 10, Name: "Electronics"},
			{ID: 20, Name: "Phones", ParentID: 10},
		},
		attributes: map[int64][]response.CategoryAttribute{
			10: {{Name: "brand", Required: false}},
		},
	}
	store := newFakeCategoryStore()
	s := NewTaxonomySync(api, &fakeLocationAPI{}, store, newFakeLocationStore(), testLog())

	for run := 0; run < 3; run++ {
		result, err := s.SyncCategories(context.Background(), 1)
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if result.Deleted != 0 {
			t.Fatalf("run %d deleted %d rows from an unchanged tree", run, result.Deleted)
		}
	}
	if len(store.byExternal) != 2 {
		t.Fatalf("store holds %d categories, want 2", len(store.byExternal))
	}
	if store.byExternal[20].ParentID == nil {
		t.Fatal("parent link lost across reruns")
	}
}

func TestSyncCategoriesDeletesVanishedNodes(t *testing.T) {
	t.Parallel()

	store := newFakeCategoryStore()
	s := NewTaxonomySync(&fakeTaxonomyAPI{
		categories: []response.Category{{ID: 10, Name: "A"}, {ID: 20, Name: "B"}},
		attributes: map[int64][]response.CategoryAttribute{},
	}, &fakeLocationAPI{}, store, newFakeLocationStore(), testLog())
	if _, err := s.SyncCategories(context.Background(), 1); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	// second fetch no longer contains category 20
	s = NewTaxonomySync(&fakeTaxonomyAPI{
		categories: []response.Category{{ID: 10, Name: "A"}},
		attributes: map[int64][]response.CategoryAttribute{},
	}, &fakeLocationAPI{}, store, newFakeLocationStore(), testLog())
	result, err := s.SyncCategories(context.Background(), 1)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if result.Deleted != 1 {
		t.Fatalf("deleted = %d, want 1", result.Deleted)
	}
	if _, stillThere := store.byExternal[20]; stillThere {
		t.Fatal("vanished category should be removed")
	}
}

func TestSyncLocationsWholesaleRefresh(t *testing.T) {
	t.Parallel()

	locStore := newFakeLocationStore()
	lat, lon := 43.85, 18.41
	s := NewTaxonomySync(&fakeTaxonomyAPI{attributes: map[int64][]response.CategoryAttribute{}}, &fakeLocationAPI{
		locations: []response.Location{
			{ID: 1, Name: "Sarajevo", Lat: &lat, Lon: &lon},
			{ID: 2, Name: "Banja Luka"},
		},
	}, newFakeCategoryStore(), locStore, testLog())

	result, err := s.SyncLocations(context.Background(), 1)
	if err != nil {
		t.Fatalf("SyncLocations: %v", err)
	}
	if result.Synced != 2 || result.Failed != 0 {
		t.Fatalf("result = %+v, want 2 synced", result)
	}
	if locStore.byExternal[1].Name != "Sarajevo" {
		t.Fatalf("location not stored: %+v", locStore.byExternal)
	}
}
