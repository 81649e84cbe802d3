package models

import (
	"math"
	"time"
)

// RoundingPolicy selects how final_price is derived. The marketplace moved
// from 2-decimal prices to whole numbers over time, so both policies must be
// reproducible.
type RoundingPolicy string

const (
	RoundWhole RoundingPolicy = "whole"
	RoundCents RoundingPolicy = "cents"
)

// Product is the canonical catalog entity, unique per (shop, source, sku).
// That triple is the upsert key across repeated imports of the same feed.
type Product struct {
	ID          int64             `json:"id"`
	ShopID      int64             `json:"shop_id"`
	Source      string            `json:"source"`
	SKU         string            `json:"sku"`
	Title       string            `json:"title"`
	Brand       string            `json:"brand"`
	Category    string            `json:"category"`
	Price       float64           `json:"price"`
	Currency    string            `json:"currency"`
	Stock       int               `json:"stock"`
	Description string            `json:"description"`
	MarginPct   float64           `json:"margin_pct"`
	FinalPrice  float64           `json:"final_price"`
	// Specs is intentionally unschematized overflow storage: every raw field
	// that does not map to a canonical column lands here verbatim.
	Specs      map[string]string `json:"specs"`
	TemplateID *int64            `json:"template_id,omitempty"`
	ImageURLs  []string          `json:"image_urls"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// FinalPrice computes price * (1 + margin/100) under the given policy.
// final_price is always derived, never entered, so recomputing with the same
// inputs must be drift-free.
func FinalPrice(price, marginPct float64, policy RoundingPolicy) float64 {
	raw := price * (1 + marginPct/100)
	switch policy {
	case RoundCents:
		return math.Round(raw*100) / 100
	default:
		return math.Round(raw)
	}
}

// RecomputeFinalPrice refreshes the derived price; call after any change to
// Price or MarginPct.
func (p *Product) RecomputeFinalPrice(policy RoundingPolicy) {
	p.FinalPrice = FinalPrice(p.Price, p.MarginPct, policy)
}
