package reader

import (
	"errors"
	"strings"
	"testing"
)

func TestCSVReaderReadsAllRows(t *testing.T) {
	t.Parallel()

	doc := "title,price,sku\nWidget,10.00,W-1\nGadget,25.50,G-2\n"
	header, records, err := NewCSVReader().Read(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(header) != 3 {
		t.Fatalf("header = %v, want 3 columns", header)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Fields["title"] != "Widget" || records[1].Fields["sku"] != "G-2" {
		t.Fatalf("fields not keyed by header: %v", records)
	}
	if records[0].Row != 1 || records[1].Row != 2 {
		t.Fatalf("row numbers wrong: %d, %d", records[0].Row, records[1].Row)
	}
}

func TestCSVReaderCustomDelimiter(t *testing.T) {
	t.Parallel()

	doc := "title;price\nWidget;10,00\n"
	_, records, err := NewCSVReader().SetComma(';').Read(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records[0].Fields["price"] != "10,00" {
		t.Fatalf("price = %q, want decimal-comma value intact", records[0].Fields["price"])
	}
}

func TestCSVReaderShortRowKeepsAvailableFields(t *testing.T) {
	t.Parallel()

	doc := "title,price,sku\nWidget,10.00\n"
	_, records, err := NewCSVReader().Read(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("a short row must not abort the read phase: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if _, ok := records[0].Fields["sku"]; ok {
		t.Fatal("missing column should be absent, not empty")
	}
	if records[0].Fields["title"] != "Widget" {
		t.Fatalf("present fields should survive: %v", records[0].Fields)
	}
}

func TestCSVReaderEmptyDocumentIsParseError(t *testing.T) {
	t.Parallel()

	_, _, err := NewCSVReader().Read(strings.NewReader(""))
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("want ParseError for empty document, got %v", err)
	}
}
