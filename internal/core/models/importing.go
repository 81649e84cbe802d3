package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ImportSource identifies where a batch came from.
type ImportSource string

const (
	SourceCSV    ImportSource = "csv"
	SourceScrape ImportSource = "scrape"
	// SourceMarketplace marks records pulled back from the marketplace by
	// the sync engine rather than ingested from a supplier feed.
	SourceMarketplace ImportSource = "olx"
)

// ImportLogStatus is a closed enumeration; statuses never move backwards.
type ImportLogStatus string

const (
	LogPending             ImportLogStatus = "pending"
	LogProcessing          ImportLogStatus = "processing"
	LogCompleted           ImportLogStatus = "completed"
	LogCompletedWithErrors ImportLogStatus = "completed_with_errors"
	LogFailed              ImportLogStatus = "failed"
)

func (s ImportLogStatus) Terminal() bool {
	return s == LogCompleted || s == LogCompletedWithErrors || s == LogFailed
}

// CanTransition reports whether moving to next is a legal lifecycle step.
func (s ImportLogStatus) CanTransition(next ImportLogStatus) bool {
	switch s {
	case LogPending:
		return next == LogProcessing || next == LogFailed
	case LogProcessing:
		return next.Terminal()
	default:
		return false
	}
}

// ImportLog is one batch-import run and the single source of truth for
// whether an import finished and how it went.
type ImportLog struct {
	ID             int64           `json:"id"`
	ShopID         int64           `json:"shop_id"`
	Source         ImportSource    `json:"source"`
	Status         ImportLogStatus `json:"status"`
	TotalRows      int             `json:"total_rows"`
	ProcessedRows  int             `json:"processed_rows"`
	SuccessfulRows int             `json:"successful_rows"`
	FailedRows     int             `json:"failed_rows"`
	// Phase is a free-form marker for long-running scrape flows
	// ("authenticating", "collecting", "importing").
	Phase     string        `json:"phase,omitempty"`
	Errors    []ImportError `json:"errors,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// ImportError is one structured entry of the log's attached error list.
type ImportError struct {
	RecordID int64  `json:"record_id,omitempty"`
	Row      int    `json:"row,omitempty"`
	Message  string `json:"message"`
}

// FinalStatus derives the terminal status from the counters per the
// finalization rule: all failed -> failed, some failed -> completed_with_errors.
func (l *ImportLog) FinalStatus() ImportLogStatus {
	switch {
	case l.FailedRows > 0 && l.SuccessfulRows == 0:
		return LogFailed
	case l.FailedRows > 0:
		return LogCompletedWithErrors
	default:
		return LogCompleted
	}
}

// Stale reports whether a non-terminal log has been idle past the threshold.
// Stuck imports have no automatic resolution; they only need to be visible.
func (l *ImportLog) Stale(now time.Time, after time.Duration) bool {
	return !l.Status.Terminal() && now.Sub(l.UpdatedAt) > after
}

// RecordStatus is the per staged record state machine:
// pending -> processing -> imported|error. The only allowed backwards move is
// the manual retry re-queue from error to pending.
type RecordStatus string

const (
	RecordPending    RecordStatus = "pending"
	RecordProcessing RecordStatus = "processing"
	RecordImported   RecordStatus = "imported"
	RecordError      RecordStatus = "error"
)

func (s RecordStatus) CanTransition(next RecordStatus) bool {
	switch s {
	case RecordPending:
		return next == RecordProcessing
	case RecordProcessing:
		return next == RecordImported || next == RecordError
	case RecordError:
		return next == RecordPending
	default:
		return false
	}
}

// ImportedProduct stages one raw record pinned to one ImportLog. RawData is
// preserved verbatim for audit and replay; it never mutates after creation.
type ImportedProduct struct {
	ID          int64           `json:"id"`
	ImportLogID int64           `json:"import_log_id"`
	ShopID      int64           `json:"shop_id"`
	Source      ImportSource    `json:"source"`
	Row         int             `json:"row"`
	RawData     json.RawMessage `json:"raw_data"`
	Status      RecordStatus    `json:"status"`
	ErrorText   string          `json:"error_text,omitempty"`
	ProductID   *int64          `json:"product_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Raw decodes the staged payload back into the flat field map it was
// created from.
func (ip *ImportedProduct) Raw() (map[string]string, error) {
	fields := make(map[string]string)
	if err := json.Unmarshal(ip.RawData, &fields); err != nil {
		return nil, fmt.Errorf("decoding staged raw_data: %w", err)
	}
	return fields, nil
}
