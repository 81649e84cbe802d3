package reader

import (
	"encoding/csv"
	"io"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// CSVReader reads a header-rowed CSV document into raw records. Column order
// is arbitrary; the header decides field names.
type CSVReader struct {
	comma   rune
	charset *charmap.Charmap
}

func NewCSVReader() *CSVReader {
	return &CSVReader{comma: ','}
}

func (r *CSVReader) SetComma(comma rune) *CSVReader {
	if comma != 0 {
		r.comma = comma
	}
	return r
}

// SetCharset enables transcoding for supplier files that are not UTF-8
// (Windows-1250 exports are common).
func (r *CSVReader) SetCharset(cm *charmap.Charmap) *CSVReader {
	r.charset = cm
	return r
}

// Read consumes the whole document. A document-level failure (bad quoting,
// empty file, undecodable bytes) returns a ParseError; a data row with a
// field count differing from the header is still returned with whatever
// fields are present, so that it fails validation downstream instead of
// killing the batch here.
func (r *CSVReader) Read(src io.Reader) ([]string, []RawRecord, error) {
	if r.charset != nil {
		src = transform.NewReader(src, r.charset.NewDecoder())
	}

	csvReader := csv.NewReader(src)
	csvReader.Comma = r.comma
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1

	allRows, err := csvReader.ReadAll()
	if err != nil {
		return nil, nil, &ParseError{Err: err}
	}
	if len(allRows) == 0 {
		return nil, nil, &ParseError{Err: io.ErrUnexpectedEOF}
	}

	header := allRows[0]
	records := make([]RawRecord, 0, len(allRows)-1)
	for i, row := range allRows[1:] {
		fields := make(map[string]string, len(header))
		for j, col := range header {
			if j < len(row) {
				fields[col] = row[j]
			}
		}
		records = append(records, RawRecord{Row: i + 1, Fields: fields})
	}

	return header, records, nil
}
