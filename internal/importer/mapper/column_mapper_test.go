package mapper

import (
	"reflect"
	"testing"
)

func TestProposeMappingSupplierFile(t *testing.T) {
	t.Parallel()

	headers := []string{"Title", "Part Number", "Price (BAM)", "Brand"}
	proposal := ProposeMapping(headers)

	want := map[string]string{
		"Title":       "title",
		"Part Number": "sku",
		"Price (BAM)": "price",
		"Brand":       "brand",
	}
	if !reflect.DeepEqual(proposal.Mapping, want) {
		t.Fatalf("mapping = %v, want %v", proposal.Mapping, want)
	}
	if proposal.Confidence < 0.4 {
		t.Fatalf("confidence = %v, want >= 0.4 for four matches", proposal.Confidence)
	}
}

func TestProposeMappingIsDeterministic(t *testing.T) {
	t.Parallel()

	headers := []string{"name", "cost", "qty", "img", "weird_column"}
	first := ProposeMapping(headers)
	for i := 0; i < 10; i++ {
		again := ProposeMapping(headers)
		if !reflect.DeepEqual(first.Mapping, again.Mapping) || first.Confidence != again.Confidence {
			t.Fatalf("run %d differed: %v/%v vs %v/%v", i, first.Mapping, first.Confidence, again.Mapping, again.Confidence)
		}
	}
}

func TestProposeMappingLeavesUnknownHeadersOut(t *testing.T) {
	t.Parallel()

	proposal := ProposeMapping([]string{"warranty_months", "color"})
	if len(proposal.Mapping) != 0 {
		t.Fatalf("unknown headers should not map, got %v", proposal.Mapping)
	}
	if proposal.Confidence != 0 {
		t.Fatalf("confidence = %v, want 0", proposal.Confidence)
	}
}

func TestProposeMappingConfidenceIsCapped(t *testing.T) {
	t.Parallel()

	headers := []string{
		"title", "name", "product", "price", "cost", "amount",
		"sku", "brand", "stock", "image", "category", "description",
	}
	if got := ProposeMapping(headers).Confidence; got > 1.0 {
		t.Fatalf("confidence = %v, must not exceed 1.0", got)
	}
}

func TestProposeMappingDuplicateHeadersKeepBothEntries(t *testing.T) {
	t.Parallel()

	proposal := ProposeMapping([]string{"price", "cost"})
	if proposal.Mapping["price"] != "price" || proposal.Mapping["cost"] != "price" {
		t.Fatalf("both headers should map to price, got %v", proposal.Mapping)
	}
}
