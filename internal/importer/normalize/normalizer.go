package normalize

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"olxmarket_api/config/values"
	"olxmarket_api/internal/core/models"
	"olxmarket_api/internal/importer/images"
	"olxmarket_api/pkg/logger"
)

// ValidationError marks a staged record that cannot become a product. It is
// recorded on the record and never aborts the batch.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %q: %s", e.Field, e.Msg)
}

// canonical columns that never fold into the specs blob.
var canonicalFields = map[string]struct{}{
	"title": {}, "sku": {}, "brand": {}, "category": {}, "price": {},
	"currency": {}, "stock": {}, "description": {}, "image_urls": {},
	"source": {}, "source_id": {}, "margin_pct": {},
}

// Normalizer converts one staged raw record into a canonical product.
type Normalizer struct {
	fetcher images.Fetcher
	vals    values.OlxValues
	log     logger.Logger
}

func NewNormalizer(fetcher images.Fetcher, vals values.OlxValues, log logger.Logger) *Normalizer {
	return &Normalizer{fetcher: fetcher, vals: vals, log: log}
}

// Normalize applies the column mapping to the raw fields, parses the typed
// columns and folds everything unmapped into the specs blob verbatim. Image
// URLs are fetched one by one; a failed fetch is logged and the URL dropped,
// never failing the record.
func (n *Normalizer) Normalize(ctx context.Context, shopID int64, source models.ImportSource, raw map[string]string, mapping map[string]string) (*models.Product, error) {
	mapped := applyMapping(raw, mapping)

	title := strings.TrimSpace(mapped["title"])
	if title == "" {
		return nil, &ValidationError{Field: "title", Msg: "missing"}
	}

	price, err := ParsePrice(mapped["price"])
	if err != nil {
		return nil, &ValidationError{Field: "price", Msg: err.Error()}
	}

	stock := 0
	if rawStock, ok := mapped["stock"]; ok && strings.TrimSpace(rawStock) != "" {
		stock, err = strconv.Atoi(strings.TrimSpace(rawStock))
		if err != nil {
			return nil, &ValidationError{Field: "stock", Msg: fmt.Sprintf("not an integer: %q", rawStock)}
		}
	}

	currency := strings.TrimSpace(mapped["currency"])
	if currency == "" {
		currency = n.vals.DefaultCurrency
	}

	margin := 0.0
	if rawMargin, ok := mapped["margin_pct"]; ok && strings.TrimSpace(rawMargin) != "" {
		margin, err = strconv.ParseFloat(strings.TrimSpace(rawMargin), 64)
		if err != nil {
			return nil, &ValidationError{Field: "margin_pct", Msg: fmt.Sprintf("not a number: %q", rawMargin)}
		}
	}

	specs := make(map[string]string)
	for key, value := range raw {
		target, isMapped := mapping[key]
		if isMapped {
			key = target
		}
		if _, canonical := canonicalFields[key]; canonical {
			continue
		}
		if strings.TrimSpace(value) == "" {
			continue
		}
		specs[key] = value
	}

	product := &models.Product{
		ShopID:      shopID,
		Source:      string(source),
		SKU:         strings.TrimSpace(mapped["sku"]),
		Title:       title,
		Brand:       strings.TrimSpace(mapped["brand"]),
		Category:    strings.TrimSpace(mapped["category"]),
		Price:       price,
		Currency:    currency,
		Stock:       stock,
		Description: mapped["description"],
		MarginPct:   margin,
		Specs:       specs,
		ImageURLs:   n.fetchImages(ctx, mapped["image_urls"]),
	}
	product.RecomputeFinalPrice(models.RoundingPolicy(n.vals.RoundingPolicy))

	return product, nil
}

// applyMapping renames raw keys to canonical fields. When two headers map to
// the same canonical field the last one wins; this matches the documented
// mapper limitation.
func applyMapping(raw map[string]string, mapping map[string]string) map[string]string {
	if len(mapping) == 0 {
		return raw
	}
	mapped := make(map[string]string, len(raw))
	for key, value := range raw {
		if target, ok := mapping[key]; ok {
			mapped[target] = value
			continue
		}
		mapped[key] = value
	}
	return mapped
}

// ParsePrice strips everything but digits and dots (decimal commas become
// dots) and parses the remainder as a decimal. "85,50 KM" and "1.299,00"
// both survive.
func ParsePrice(raw string) (float64, error) {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
		if r == ',' {
			b.WriteRune('.')
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, fmt.Errorf("no numeric value in %q", raw)
	}
	// a thousands dot plus a decimal comma leaves two dots; keep the last
	if strings.Count(cleaned, ".") > 1 {
		last := strings.LastIndex(cleaned, ".")
		cleaned = strings.ReplaceAll(cleaned[:last], ".", "") + cleaned[last:]
	}
	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("cannot parse price %q", raw)
	}
	return price, nil
}

func (n *Normalizer) fetchImages(ctx context.Context, rawURLs string) []string {
	if strings.TrimSpace(rawURLs) == "" {
		return nil
	}
	var fetched []string
	for _, url := range strings.Split(rawURLs, ",") {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		if n.fetcher != nil {
			if _, err := n.fetcher.Fetch(ctx, url); err != nil {
				n.log.Log("image fetch skipped: %v", err)
				continue
			}
		}
		fetched = append(fetched, url)
	}
	return fetched
}
