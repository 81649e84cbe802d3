package service

import (
	"context"
	"time"

	"olxmarket_api/internal/core/models"
)

// LogRepository owns ImportLog rows. Counter increments must be atomic in
// the store (increment operations, not read-modify-write), because record
// completions land concurrently.
type LogRepository interface {
	Create(ctx context.Context, log *models.ImportLog) error
	Get(ctx context.Context, id int64) (*models.ImportLog, error)
	// SetStatus applies the transition only when the stored status equals
	// from; it reports whether the row was moved.
	SetStatus(ctx context.Context, id int64, from, to models.ImportLogStatus) (bool, error)
	SetPhase(ctx context.Context, id int64, phase string) error
	IncrementCounters(ctx context.Context, id int64, success bool) error
	AppendError(ctx context.Context, id int64, importError models.ImportError) error
	// Finalize derives the terminal status from the stored counters and
	// returns the finalized log.
	Finalize(ctx context.Context, id int64) (*models.ImportLog, error)
	// ReopenForRetry moves a finished log back to processing and releases
	// the counter slots of the requeued records in one atomic step.
	ReopenForRetry(ctx context.Context, id int64, requeued int) error
	StaleLogs(ctx context.Context, olderThan time.Duration) ([]models.ImportLog, error)
}

// StagingRepository owns ImportedProduct rows. raw_data is written once at
// staging time and never updated.
type StagingRepository interface {
	CreateBatch(ctx context.Context, records []*models.ImportedProduct) error
	PendingForLog(ctx context.Context, logID int64) ([]models.ImportedProduct, error)
	// Claim moves one record from pending to processing; it reports false
	// when another worker already took it.
	Claim(ctx context.Context, id int64) (bool, error)
	MarkImported(ctx context.Context, id, productID int64) error
	MarkError(ctx context.Context, id int64, message string) error
	// Requeue resets an errored record to pending for a manual retry.
	Requeue(ctx context.Context, logID int64) (int, error)
}

// ProductRepository upserts canonical products keyed by (shop, source, sku).
type ProductRepository interface {
	Upsert(ctx context.Context, product *models.Product) (int64, error)
	// Insert stores a product without deduplication; used when the sku is
	// blank and no upsert key exists.
	Insert(ctx context.Context, product *models.Product) (int64, error)
	Get(ctx context.Context, id int64) (*models.Product, error)
}
