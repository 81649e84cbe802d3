package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"olxmarket_api/internal/core/models"
	"olxmarket_api/internal/importer/service"
	"olxmarket_api/internal/olx/business/models/dto/request"
	"olxmarket_api/internal/olx/business/models/dto/response"
	"olxmarket_api/pkg/logger"
)

// ProductStore is the product access the engine needs on top of the import
// pipeline's repository surface.
type ProductStore interface {
	Get(ctx context.Context, id int64) (*models.Product, error)
	Upsert(ctx context.Context, product *models.Product) (int64, error)
	Insert(ctx context.Context, product *models.Product) (int64, error)
	Update(ctx context.Context, product *models.Product) error
	ByExternalListing(ctx context.Context, shopID int64, externalID string) (*models.Product, error)
}

type ListingStore interface {
	// ByProduct returns nil when the product was never published.
	ByProduct(ctx context.Context, productID int64) (*models.Listing, error)
	Create(ctx context.Context, listing *models.Listing) error
	Update(ctx context.Context, listing *models.Listing) error
}

type TemplateStore interface {
	Get(ctx context.Context, id int64) (*models.CategoryTemplate, error)
}

// RemoteListings is the marketplace listing surface the engine drives.
type RemoteListings interface {
	Search(ctx context.Context, shopID int64, filter request.ListingFilter) ([]response.Listing, error)
	Create(ctx context.Context, shopID int64, payload *request.CreateListingRequest) (string, error)
	Update(ctx context.Context, shopID int64, externalID string, payload *request.CreateListingRequest) error
	Unpublish(ctx context.Context, shopID int64, externalID string) error
	Delete(ctx context.Context, shopID int64, externalID string) error
}

// Engine reconciles a shop's products against their marketplace listings:
// create versus update versus skip, never duplicating a listing across runs.
type Engine struct {
	products  ProductStore
	listings  ListingStore
	templates TemplateStore
	taxonomy  TaxonomyResolver
	remote    RemoteListings
	logs      service.LogRepository
	staging   service.StagingRepository
	rounding  models.RoundingPolicy
	log       logger.Logger
}

func NewEngine(products ProductStore, listings ListingStore, templates TemplateStore, taxonomy TaxonomyResolver, remote RemoteListings, logs service.LogRepository, staging service.StagingRepository, rounding models.RoundingPolicy, log logger.Logger) *Engine {
	return &Engine{
		products:  products,
		listings:  listings,
		templates: templates,
		taxonomy:  taxonomy,
		remote:    remote,
		logs:      logs,
		staging:   staging,
		rounding:  rounding,
		log:       log,
	}
}

// Publish pushes one product to the marketplace. A product that already has
// a live listing is updated in place; the existing external id is reused,
// never duplicated. Returns the local listing row.
func (e *Engine) Publish(ctx context.Context, shopID, productID int64) (*models.Listing, error) {
	product, template, err := e.loadProductAndTemplate(ctx, shopID, productID)
	if err != nil {
		return nil, err
	}

	payload, err := buildPayload(ctx, e.taxonomy, product, template)
	if err != nil {
		return nil, err
	}

	existing, err := e.listings.ByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status != models.ListingRemoved {
		if err := e.remote.Update(ctx, shopID, existing.ExternalID, payload); err != nil {
			return nil, err
		}
		return e.markPublished(ctx, existing, payload)
	}

	externalID, err := e.remote.Create(ctx, shopID, payload)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	snapshot, _ := json.Marshal(payload)
	listing := &models.Listing{
		ShopID:      shopID,
		ProductID:   productID,
		ExternalID:  externalID,
		Status:      models.ListingPublished,
		PublishedAt: &now,
		Metadata:    snapshot,
	}
	if err := e.listings.Create(ctx, listing); err != nil {
		return nil, fmt.Errorf("storing listing %s: %w", externalID, err)
	}
	e.log.Log("published product %d as listing %s", productID, externalID)
	return listing, nil
}

// Update pushes the product's current field values to its existing listing.
func (e *Engine) Update(ctx context.Context, shopID, productID int64) (*models.Listing, error) {
	product, template, err := e.loadProductAndTemplate(ctx, shopID, productID)
	if err != nil {
		return nil, err
	}
	listing, err := e.requireListing(ctx, productID)
	if err != nil {
		return nil, err
	}
	if listing.Status == models.ListingRemoved {
		return nil, fmt.Errorf("listing %s is removed, cannot update", listing.ExternalID)
	}

	payload, err := buildPayload(ctx, e.taxonomy, product, template)
	if err != nil {
		return nil, err
	}
	if err := e.remote.Update(ctx, shopID, listing.ExternalID, payload); err != nil {
		return nil, err
	}
	return e.markPublished(ctx, listing, payload)
}

// Unpublish deactivates the remote listing; the external record stays.
func (e *Engine) Unpublish(ctx context.Context, shopID, productID int64) (*models.Listing, error) {
	listing, err := e.requireListing(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !listing.Status.CanTransition(models.ListingUnpublished) {
		return nil, fmt.Errorf("listing %s is %s, cannot unpublish", listing.ExternalID, listing.Status)
	}
	if err := e.remote.Unpublish(ctx, shopID, listing.ExternalID); err != nil {
		return nil, err
	}
	listing.Status = models.ListingUnpublished
	if err := e.listings.Update(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

// Remove deletes the remote listing and marks the local row removed. The
// external id is retained for audit and never reassigned.
func (e *Engine) Remove(ctx context.Context, shopID, productID int64) (*models.Listing, error) {
	listing, err := e.requireListing(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !listing.Status.CanTransition(models.ListingRemoved) {
		return nil, fmt.Errorf("listing %s is already %s", listing.ExternalID, listing.Status)
	}
	if err := e.remote.Delete(ctx, shopID, listing.ExternalID); err != nil {
		return nil, err
	}
	listing.Status = models.ListingRemoved
	if err := e.listings.Update(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

// BulkItem is one product's outcome inside a bulk operation.
type BulkItem struct {
	ProductID  int64  `json:"product_id"`
	ExternalID string `json:"external_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// BulkResult carries per-item detail; one failed product never halts the
// rest of the batch.
type BulkResult struct {
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	Items     []BulkItem `json:"items"`
}

func (e *Engine) bulk(ctx context.Context, shopID int64, productIDs []int64, op func(context.Context, int64, int64) (*models.Listing, error)) *BulkResult {
	result := &BulkResult{}
	for _, productID := range productIDs {
		item := BulkItem{ProductID: productID}
		listing, err := op(ctx, shopID, productID)
		if err != nil {
			item.Error = err.Error()
			result.Failed++
		} else {
			item.ExternalID = listing.ExternalID
			result.Succeeded++
		}
		result.Items = append(result.Items, item)
	}
	return result
}

func (e *Engine) BulkPublish(ctx context.Context, shopID int64, productIDs []int64) *BulkResult {
	return e.bulk(ctx, shopID, productIDs, e.Publish)
}

func (e *Engine) BulkUpdate(ctx context.Context, shopID int64, productIDs []int64) *BulkResult {
	return e.bulk(ctx, shopID, productIDs, e.Update)
}

func (e *Engine) BulkRemove(ctx context.Context, shopID int64, productIDs []int64) *BulkResult {
	return e.bulk(ctx, shopID, productIDs, e.Remove)
}

// PullOptions narrow a marketplace pull. SkipExisting limits the pass to
// listings with no local match.
type PullOptions struct {
	Filter       request.ListingFilter
	SkipExisting bool
}

// PullItem explains one skipped or failed remote listing.
type PullItem struct {
	ExternalID string `json:"external_id"`
	Reason     string `json:"reason"`
}

// PullResult reports a pull-from-marketplace pass. Skipped entries flag
// listings whose category or location is not in the local taxonomy cache
// (and existing ones under SkipExisting); they are actionable, not swallowed.
type PullResult struct {
	ImportLogID int64      `json:"import_log_id"`
	Imported    int        `json:"imported"`
	Updated     int        `json:"updated"`
	Skipped     int        `json:"skipped"`
	Failed      int        `json:"failed"`
	Details     []PullItem `json:"details,omitempty"`
}

// SyncFromMarketplace fetches the shop's remote listings and reconciles them
// into local products, staging every new one for audit like any other
// import source.
func (e *Engine) SyncFromMarketplace(ctx context.Context, shopID int64, opts PullOptions) (*PullResult, error) {
	remote, err := e.remote.Search(ctx, shopID, opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("fetching remote listings: %w", err)
	}

	importLog := &models.ImportLog{
		ShopID:    shopID,
		Source:    models.SourceMarketplace,
		Status:    models.LogPending,
		TotalRows: len(remote),
	}
	if err := e.logs.Create(ctx, importLog); err != nil {
		return nil, err
	}
	if _, err := e.logs.SetStatus(ctx, importLog.ID, models.LogPending, models.LogProcessing); err != nil {
		return nil, err
	}

	result := &PullResult{ImportLogID: importLog.ID}
	for i, listing := range remote {
		outcome, err := e.pullOne(ctx, shopID, importLog.ID, i+1, listing, opts.SkipExisting)
		switch {
		case err != nil:
			result.Failed++
			result.Details = append(result.Details, PullItem{ExternalID: listing.ID, Reason: err.Error()})
			e.appendPullError(ctx, importLog.ID, i+1, listing.ID, err.Error())
			e.incrementCounters(ctx, importLog.ID, false)
		case outcome.skippedReason != "":
			result.Skipped++
			result.Details = append(result.Details, PullItem{ExternalID: listing.ID, Reason: outcome.skippedReason})
		case outcome.imported:
			result.Imported++
			e.incrementCounters(ctx, importLog.ID, true)
		default:
			result.Updated++
			e.incrementCounters(ctx, importLog.ID, true)
		}
	}

	if _, err := e.logs.Finalize(ctx, importLog.ID); err != nil {
		return nil, err
	}
	e.log.Log("marketplace pull for shop %d: %d imported, %d updated, %d skipped, %d failed",
		shopID, result.Imported, result.Updated, result.Skipped, result.Failed)
	return result, nil
}

type pullOutcome struct {
	imported      bool
	skippedReason string
}

func (e *Engine) pullOne(ctx context.Context, shopID, logID int64, row int, listing response.Listing, skipExisting bool) (pullOutcome, error) {
	existing, err := e.products.ByExternalListing(ctx, shopID, listing.ID)
	if err != nil {
		return pullOutcome{}, err
	}

	if existing != nil {
		if skipExisting {
			return pullOutcome{skippedReason: "already imported"}, nil
		}
		existing.Title = listing.Title
		// the remote price becomes the new base; final_price stays derived
		// from price and the stored margin
		existing.Price = listing.Price
		existing.RecomputeFinalPrice(e.rounding)
		if listing.Currency != "" {
			existing.Currency = listing.Currency
		}
		if listing.Brand != "" {
			existing.Brand = listing.Brand
		}
		if err := e.products.Update(ctx, existing); err != nil {
			return pullOutcome{}, err
		}
		return pullOutcome{}, nil
	}

	// a listing we cannot place in the local taxonomy is skipped, and that
	// skip tells the operator to sync the taxonomy first
	category, err := e.taxonomy.CategoryByExternalID(ctx, listing.CategoryID)
	if err != nil {
		return pullOutcome{}, err
	}
	if category == nil {
		return pullOutcome{skippedReason: (&UnresolvedTaxonomyError{Kind: "category", ExternalID: listing.CategoryID}).Error()}, nil
	}
	if listing.LocationID > 0 {
		location, err := e.taxonomy.LocationByExternalID(ctx, listing.LocationID)
		if err != nil {
			return pullOutcome{}, err
		}
		if location == nil {
			return pullOutcome{skippedReason: (&UnresolvedTaxonomyError{Kind: "location", ExternalID: listing.LocationID}).Error()}, nil
		}
	}

	product := &models.Product{
		ShopID:    shopID,
		Source:    string(models.SourceMarketplace),
		SKU:       listing.SKU,
		Title:     listing.Title,
		Brand:     listing.Brand,
		Category:  category.Name,
		Price:     listing.Price,
		Currency:  listing.Currency,
		Specs:     listing.Attributes,
		ImageURLs: listing.Images,
	}
	product.RecomputeFinalPrice(e.rounding)
	var productID int64
	if product.SKU == "" {
		productID, err = e.products.Insert(ctx, product)
	} else {
		productID, err = e.products.Upsert(ctx, product)
	}
	if err != nil {
		return pullOutcome{}, err
	}

	rawData, err := json.Marshal(listing)
	if err != nil {
		return pullOutcome{}, err
	}
	staged := &models.ImportedProduct{
		ImportLogID: logID,
		ShopID:      shopID,
		Source:      models.SourceMarketplace,
		Row:         row,
		RawData:     rawData,
		Status:      models.RecordImported,
		ProductID:   &productID,
	}
	if err := e.staging.CreateBatch(ctx, []*models.ImportedProduct{staged}); err != nil {
		return pullOutcome{}, err
	}

	local := &models.Listing{
		ShopID:     shopID,
		ProductID:  productID,
		ExternalID: listing.ID,
		Status:     models.ListingPublished,
		Metadata:   rawData,
	}
	if err := e.listings.Create(ctx, local); err != nil {
		return pullOutcome{}, err
	}
	return pullOutcome{imported: true}, nil
}

func (e *Engine) loadProductAndTemplate(ctx context.Context, shopID, productID int64) (*models.Product, *models.CategoryTemplate, error) {
	product, err := e.products.Get(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	if product.ShopID != shopID {
		return nil, nil, fmt.Errorf("product %d does not belong to shop %d", productID, shopID)
	}
	if product.TemplateID == nil {
		return nil, nil, fmt.Errorf("product %d has no category template assigned", productID)
	}
	template, err := e.templates.Get(ctx, *product.TemplateID)
	if err != nil {
		return nil, nil, err
	}
	if template.ShopID != shopID {
		return nil, nil, fmt.Errorf("template %d does not belong to shop %d", template.ID, shopID)
	}
	return product, template, nil
}

func (e *Engine) requireListing(ctx context.Context, productID int64) (*models.Listing, error) {
	listing, err := e.listings.ByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, fmt.Errorf("product %d has no listing", productID)
	}
	return listing, nil
}

func (e *Engine) markPublished(ctx context.Context, listing *models.Listing, payload *request.CreateListingRequest) (*models.Listing, error) {
	snapshot, _ := json.Marshal(payload)
	listing.Metadata = snapshot
	if listing.Status != models.ListingPublished {
		listing.Status = models.ListingPublished
	}
	if listing.PublishedAt == nil {
		now := time.Now()
		listing.PublishedAt = &now
	}
	if err := e.listings.Update(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

func (e *Engine) appendPullError(ctx context.Context, logID int64, row int, externalID, message string) {
	err := e.logs.AppendError(ctx, logID, models.ImportError{
		Row:     row,
		Message: fmt.Sprintf("listing %s: %s", externalID, message),
	})
	if err != nil {
		e.log.Log("appending pull error for log %d: %v", logID, err)
	}
}

func (e *Engine) incrementCounters(ctx context.Context, logID int64, success bool) {
	if err := e.logs.IncrementCounters(ctx, logID, success); err != nil {
		e.log.Log("incrementing counters for log %d: %v", logID, err)
	}
}
