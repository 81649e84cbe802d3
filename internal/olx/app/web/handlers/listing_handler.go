package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"olxmarket_api/internal/core/models"
	"olxmarket_api/internal/olx/business/models/dto/request"
	"olxmarket_api/internal/olx/business/services/sync"
	"olxmarket_api/pkg/logger"
)

// ListingHandler exposes the push and pull sides of the sync engine.
type ListingHandler struct {
	engine   *sync.Engine
	validate *validator.Validate
	log      logger.Logger
}

func NewListingHandler(engine *sync.Engine, validate *validator.Validate, log logger.Logger) *ListingHandler {
	return &ListingHandler{engine: engine, validate: validate, log: log}
}

type ShopRequest struct {
	ShopID int64 `json:"shop_id" validate:"required"`
}

type ListingResponse struct {
	Response
	Listing *models.Listing `json:"listing"`
}

type listingOp func(r *http.Request, shopID, productID int64) (*models.Listing, error)

func (h *ListingHandler) single(name string, op listingOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			badRequest(w, r, "invalid product id")
			return
		}
		var req ShopRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			badRequest(w, r, "failed to decode request")
			return
		}
		if err := h.validate.Struct(req); err != nil {
			validationError(w, r, err)
			return
		}

		listing, err := op(r, req.ShopID, productID)
		if err != nil {
			h.log.Log("%s of product %d failed: %v", name, productID, err)
			// validation problems in the payload are the caller's to fix
			if sync.IsHardValidation(err) {
				badRequest(w, r, err.Error())
				return
			}
			internalError(w, r, err.Error())
			return
		}
		render.JSON(w, r, ListingResponse{Response: OK(), Listing: listing})
	}
}

func (h *ListingHandler) Publish() http.HandlerFunc {
	return h.single("publish", func(r *http.Request, shopID, productID int64) (*models.Listing, error) {
		return h.engine.Publish(r.Context(), shopID, productID)
	})
}

func (h *ListingHandler) Update() http.HandlerFunc {
	return h.single("update", func(r *http.Request, shopID, productID int64) (*models.Listing, error) {
		return h.engine.Update(r.Context(), shopID, productID)
	})
}

func (h *ListingHandler) Unpublish() http.HandlerFunc {
	return h.single("unpublish", func(r *http.Request, shopID, productID int64) (*models.Listing, error) {
		return h.engine.Unpublish(r.Context(), shopID, productID)
	})
}

func (h *ListingHandler) Remove() http.HandlerFunc {
	return h.single("remove", func(r *http.Request, shopID, productID int64) (*models.Listing, error) {
		return h.engine.Remove(r.Context(), shopID, productID)
	})
}

type BulkRequest struct {
	ShopID     int64   `json:"shop_id" validate:"required"`
	ProductIDs []int64 `json:"product_ids" validate:"required,min=1"`
}

type BulkResponse struct {
	Response
	Result *sync.BulkResult `json:"result"`
}

func (h *ListingHandler) bulk(op func(r *http.Request, shopID int64, productIDs []int64) *sync.BulkResult) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BulkRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			badRequest(w, r, "failed to decode request")
			return
		}
		if err := h.validate.Struct(req); err != nil {
			validationError(w, r, err)
			return
		}
		render.JSON(w, r, BulkResponse{Response: OK(), Result: op(r, req.ShopID, req.ProductIDs)})
	}
}

func (h *ListingHandler) BulkPublish() http.HandlerFunc {
	return h.bulk(func(r *http.Request, shopID int64, productIDs []int64) *sync.BulkResult {
		return h.engine.BulkPublish(r.Context(), shopID, productIDs)
	})
}

func (h *ListingHandler) BulkUpdate() http.HandlerFunc {
	return h.bulk(func(r *http.Request, shopID int64, productIDs []int64) *sync.BulkResult {
		return h.engine.BulkUpdate(r.Context(), shopID, productIDs)
	})
}

func (h *ListingHandler) BulkRemove() http.HandlerFunc {
	return h.bulk(func(r *http.Request, shopID int64, productIDs []int64) *sync.BulkResult {
		return h.engine.BulkRemove(r.Context(), shopID, productIDs)
	})
}

type MarketplaceSyncRequest struct {
	ShopID       int64  `json:"shop_id" validate:"required"`
	SkipExisting bool   `json:"skip_existing"`
	Status       string `json:"status"`
	CategoryID   int64  `json:"category_id"`
}

type MarketplaceSyncResponse struct {
	Response
	Result *sync.PullResult `json:"result"`
}

// MarketplaceSync pulls the shop's remote listings into local products.
func (h *ListingHandler) MarketplaceSync(w http.ResponseWriter, r *http.Request) {
	var req MarketplaceSyncRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "failed to decode request")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		validationError(w, r, err)
		return
	}

	result, err := h.engine.SyncFromMarketplace(r.Context(), req.ShopID, sync.PullOptions{
		Filter:       request.ListingFilter{Status: req.Status, CategoryID: req.CategoryID},
		SkipExisting: req.SkipExisting,
	})
	if err != nil {
		h.log.Log("marketplace sync for shop %d failed: %v", req.ShopID, err)
		internalError(w, r, "marketplace sync failed")
		return
	}
	render.JSON(w, r, MarketplaceSyncResponse{Response: OK(), Result: result})
}
