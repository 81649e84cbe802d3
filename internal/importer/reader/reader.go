package reader

import "fmt"

// RawRecord is one raw source row: an ordered position plus its flat
// string-to-string field mapping, exactly as the source produced it.
type RawRecord struct {
	Row    int
	Fields map[string]string
}

// ParseError marks input that could not be read at all. It aborts only the
// read phase; data already staged is never touched by it.
type ParseError struct {
	Row int
	Err error
}

func (e *ParseError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("parse error at row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
