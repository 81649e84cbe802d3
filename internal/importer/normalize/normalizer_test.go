package normalize

import (
	"context"
	"errors"
	"io"
	"testing"

	"olxmarket_api/config/values"
	"olxmarket_api/internal/core/models"
	"olxmarket_api/pkg/logger"
)

func newTestNormalizer() *Normalizer {
	return NewNormalizer(nil, values.DefaultOlxValues(), logger.NewLogger(io.Discard, "[test]"))
}

func TestNormalizeAppliesMappingAndMargin(t *testing.T) {
	t.Parallel()

	raw := map[string]string{
		"Title":       "Widget",
		"Part Number": "W-1",
		"Price (BAM)": "100",
		"margin_pct":  "20",
		"warranty":    "24 months",
	}
	mapping := map[string]string{
		"Title":       "title",
		"Part Number": "sku",
		"Price (BAM)": "price",
	}

	product, err := newTestNormalizer().Normalize(context.Background(), 7, models.SourceCSV, raw, mapping)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if product.Title != "Widget" || product.SKU != "W-1" {
		t.Fatalf("mapping not applied: %+v", product)
	}
	if product.Price != 100 || product.FinalPrice != 120 {
		t.Fatalf("price/final_price = %v/%v, want 100/120", product.Price, product.FinalPrice)
	}
	if product.Currency != "BAM" {
		t.Fatalf("currency = %q, want default BAM", product.Currency)
	}
	if product.Specs["warranty"] != "24 months" {
		t.Fatalf("unmapped field should fold into specs: %v", product.Specs)
	}
	if _, leaked := product.Specs["Price (BAM)"]; leaked {
		t.Fatalf("mapped field must not fold into specs: %v", product.Specs)
	}
}

func TestNormalizeMissingTitleIsValidationError(t *testing.T) {
	t.Parallel()

	_, err := newTestNormalizer().Normalize(context.Background(), 7, models.SourceCSV,
		map[string]string{"price": "10"}, nil)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("want ValidationError, got %v", err)
	}
	if verr.Field != "title" {
		t.Fatalf("field = %q, want title", verr.Field)
	}
}

func TestNormalizeBadPriceIsValidationError(t *testing.T) {
	t.Parallel()

	_, err := newTestNormalizer().Normalize(context.Background(), 7, models.SourceCSV,
		map[string]string{"title": "Widget", "price": "call us"}, nil)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("want ValidationError, got %v", err)
	}
	if verr.Field != "price" {
		t.Fatalf("field = %q, want price", verr.Field)
	}
}

func TestParsePrice(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want float64
	}{
		{"100", 100},
		{"85,50 KM", 85.50},
		{"1.299,00", 1299},
		{"19.90", 19.90},
		{" 42 BAM ", 42},
	}
	for _, tc := range cases {
		got, err := ParsePrice(tc.in)
		if err != nil {
			t.Errorf("ParsePrice(%q) errored: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParsePrice(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	if _, err := ParsePrice("free"); err == nil {
		t.Error("ParsePrice(\"free\") should error")
	}
}

func TestNormalizeDuplicateMappingLastWins(t *testing.T) {
	t.Parallel()

	// two headers mapped to price; map iteration order decides, but the
	// record must still come out with exactly one of the two values
	raw := map[string]string{"title": "Widget", "price_a": "10", "price_b": "20"}
	mapping := map[string]string{"price_a": "price", "price_b": "price"}

	product, err := newTestNormalizer().Normalize(context.Background(), 7, models.SourceCSV, raw, mapping)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if product.Price != 10 && product.Price != 20 {
		t.Fatalf("price = %v, want one of the mapped values", product.Price)
	}
}
