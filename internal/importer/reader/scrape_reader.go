package reader

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ScrapedProduct is the contract the scraping subsystem must satisfy: a flat
// JSON object inside an array. How the array was produced is not our concern.
type ScrapedProduct struct {
	Source      string            `json:"source" validate:"required"`
	SourceID    string            `json:"source_id"`
	Title       string            `json:"title" validate:"required"`
	SKU         string            `json:"sku"`
	Brand       string            `json:"brand"`
	Category    string            `json:"category"`
	Price       json.Number       `json:"price" validate:"required"`
	Currency    string            `json:"currency"`
	Stock       *int              `json:"stock"`
	Description string            `json:"description"`
	Images      ImageList         `json:"images"`
	Specs       map[string]string `json:"specs"`
}

// ImageList accepts both shapes the scraper has emitted over time: a JSON
// array of URLs or one comma-separated string.
type ImageList []string

func (l *ImageList) UnmarshalJSON(data []byte) error {
	var asArray []string
	if err := json.Unmarshal(data, &asArray); err == nil {
		*l = asArray
		return nil
	}
	var asString string
	if err := json.Unmarshal(data, &asString); err != nil {
		return fmt.Errorf("images must be an array or a comma-separated string")
	}
	if asString == "" {
		*l = nil
		return nil
	}
	parts := strings.Split(asString, ",")
	urls := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			urls = append(urls, p)
		}
	}
	*l = urls
	return nil
}

// ScrapeReader decodes and validates the scraped JSON product array.
type ScrapeReader struct {
	validate *validator.Validate
}

func NewScrapeReader() *ScrapeReader {
	return &ScrapeReader{validate: validator.New()}
}

// Read decodes the array and flattens every product into a RawRecord. A
// record violating the contract is a document-level ParseError carrying the
// offending index: the scraper is ours, so a malformed element means the
// whole payload is suspect.
func (r *ScrapeReader) Read(src io.Reader) ([]RawRecord, error) {
	var products []ScrapedProduct
	decoder := json.NewDecoder(src)
	if err := decoder.Decode(&products); err != nil {
		return nil, &ParseError{Err: err}
	}

	records := make([]RawRecord, 0, len(products))
	for i, p := range products {
		if err := r.validate.Struct(p); err != nil {
			return nil, &ParseError{Row: i + 1, Err: err}
		}
		records = append(records, RawRecord{Row: i + 1, Fields: p.flatten()})
	}
	return records, nil
}

// flatten folds a scraped product into the same flat map shape CSV rows use,
// so the staging store and normalizer see one input format. Spec keys keep a
// plain name unless it would shadow a canonical field.
func (p ScrapedProduct) flatten() map[string]string {
	fields := map[string]string{
		"source":      p.Source,
		"source_id":   p.SourceID,
		"title":       p.Title,
		"sku":         p.SKU,
		"brand":       p.Brand,
		"category":    p.Category,
		"price":       p.Price.String(),
		"currency":    p.Currency,
		"description": p.Description,
		"image_urls":  strings.Join(p.Images, ","),
	}
	if p.Stock != nil {
		fields["stock"] = fmt.Sprintf("%d", *p.Stock)
	}
	for k, v := range p.Specs {
		if _, taken := fields[k]; taken {
			k = "spec_" + k
		}
		fields[k] = v
	}
	return fields
}
