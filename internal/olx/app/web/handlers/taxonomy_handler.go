package handlers

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"olxmarket_api/internal/olx/business/services/sync"
	"olxmarket_api/pkg/logger"
)

type TaxonomyHandler struct {
	taxonomy *sync.TaxonomySync
	validate *validator.Validate
	log      logger.Logger
}

func NewTaxonomyHandler(taxonomy *sync.TaxonomySync, validate *validator.Validate, log logger.Logger) *TaxonomyHandler {
	return &TaxonomyHandler{taxonomy: taxonomy, validate: validate, log: log}
}

type TaxonomySyncRequest struct {
	ShopID int64 `json:"shop_id" validate:"required"`
}

type TaxonomySyncResponse struct {
	Response
	Categories *sync.Result `json:"categories"`
	Locations  *sync.Result `json:"locations"`
}

// Sync refreshes the category tree, attribute schemas and locations from the
// marketplace. Safe to re-run; per-item failures land in the result counts.
func (h *TaxonomyHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var req TaxonomySyncRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "failed to decode request")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		validationError(w, r, err)
		return
	}

	categories, err := h.taxonomy.SyncCategories(r.Context(), req.ShopID)
	if err != nil {
		h.log.Log("category sync for shop %d failed: %v", req.ShopID, err)
		internalError(w, r, "category sync failed")
		return
	}
	locations, err := h.taxonomy.SyncLocations(r.Context(), req.ShopID)
	if err != nil {
		h.log.Log("location sync for shop %d failed: %v", req.ShopID, err)
		internalError(w, r, "location sync failed")
		return
	}

	render.JSON(w, r, TaxonomySyncResponse{
		Response:   OK(),
		Categories: categories,
		Locations:  locations,
	})
}
