package reader

import (
	"errors"
	"strings"
	"testing"
)

func TestScrapeReaderFlattensProducts(t *testing.T) {
	t.Parallel()

	doc := `[
		{"source":"shop-x","title":"Widget","price":19.90,"sku":"W-1",
		 "images":["http://a/1.jpg","http://a/2.jpg"],
		 "specs":{"color":"red","title":"shadowed"}}
	]`
	records, err := NewScrapeReader().Read(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	fields := records[0].Fields
	if fields["title"] != "Widget" || fields["price"] != "19.90" {
		t.Fatalf("canonical fields wrong: %v", fields)
	}
	if fields["image_urls"] != "http://a/1.jpg,http://a/2.jpg" {
		t.Fatalf("image_urls = %q", fields["image_urls"])
	}
	if fields["color"] != "red" {
		t.Fatalf("spec key should keep its plain name: %v", fields)
	}
	if fields["spec_title"] != "shadowed" {
		t.Fatalf("shadowing spec key should get the spec_ prefix: %v", fields)
	}
}

func TestScrapeReaderAcceptsCommaSeparatedImages(t *testing.T) {
	t.Parallel()

	doc := `[{"source":"shop-x","title":"Widget","price":42,"images":"http://a/1.jpg, http://a/2.jpg"}]`
	records, err := NewScrapeReader().Read(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records[0].Fields["image_urls"] != "http://a/1.jpg,http://a/2.jpg" {
		t.Fatalf("image_urls = %q", records[0].Fields["image_urls"])
	}
}

func TestScrapeReaderContractViolationIsParseError(t *testing.T) {
	t.Parallel()

	// second element misses the required title
	doc := `[
		{"source":"shop-x","title":"ok","price":1},
		{"source":"shop-x","price":2}
	]`
	_, err := NewScrapeReader().Read(strings.NewReader(doc))
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("want ParseError, got %v", err)
	}
	if parseErr.Row != 2 {
		t.Fatalf("offending row = %d, want 2", parseErr.Row)
	}
}

func TestScrapeReaderMalformedJSONIsParseError(t *testing.T) {
	t.Parallel()

	_, err := NewScrapeReader().Read(strings.NewReader(`{"not":"an array"`))
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("want ParseError, got %v", err)
	}
}
