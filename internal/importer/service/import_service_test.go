package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"olxmarket_api/config/values"
	"olxmarket_api/internal/core/models"
	"olxmarket_api/internal/importer/normalize"
	"olxmarket_api/internal/importer/reader"
	"olxmarket_api/pkg/logger"
)

// in-memory repositories mirroring the SQL semantics, including the
// conditional transitions

type fakeLogRepo struct {
	mu     sync.Mutex
	nextID int64
	logs   map[int64]*models.ImportLog
}

func newFakeLogRepo() *fakeLogRepo {
	return &fakeLogRepo{logs: make(map[int64]*models.ImportLog)}
}

func (r *fakeLogRepo) Create(_ context.Context, log *models.ImportLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	log.ID = r.nextID
	log.UpdatedAt = time.Now()
	copied := *log
	r.logs[log.ID] = &copied
	return nil
}

func (r *fakeLogRepo) Get(_ context.Context, id int64) (*models.ImportLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	log, ok := r.logs[id]
	if !ok {
		return nil, fmt.Errorf("log %d not found", id)
	}
	copied := *log
	return &copied, nil
}

func (r *fakeLogRepo) SetStatus(_ context.Context, id int64, from, to models.ImportLogStatus) (bool, error) {
	if !from.CanTransition(to) {
		return false, fmt.Errorf("illegal transition %s -> %s", from, to)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	log := r.logs[id]
	if log == nil || log.Status != from {
		return false, nil
	}
	log.Status = to
	return true, nil
}

func (r *fakeLogRepo) SetPhase(_ context.Context, id int64, phase string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs[id].Phase = phase
	return nil
}

func (r *fakeLogRepo) IncrementCounters(_ context.Context, id int64, success bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	log := r.logs[id]
	log.ProcessedRows++
	if success {
		log.SuccessfulRows++
	} else {
		log.FailedRows++
	}
	return nil
}

func (r *fakeLogRepo) AppendError(_ context.Context, id int64, importError models.ImportError) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs[id].Errors = append(r.logs[id].Errors, importError)
	return nil
}

func (r *fakeLogRepo) Finalize(ctx context.Context, id int64) (*models.ImportLog, error) {
	r.mu.Lock()
	log := r.logs[id]
	if log.Status == models.LogProcessing {
		log.Status = log.FinalStatus()
	}
	r.mu.Unlock()
	return r.Get(ctx, id)
}

func (r *fakeLogRepo) ReopenForRetry(_ context.Context, id int64, requeued int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	log := r.logs[id]
	log.Status = models.LogProcessing
	log.ProcessedRows -= requeued
	log.FailedRows -= requeued
	log.Errors = nil
	return nil
}

func (r *fakeLogRepo) StaleLogs(_ context.Context, olderThan time.Duration) ([]models.ImportLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stale []models.ImportLog
	now := time.Now()
	for _, log := range r.logs {
		if log.Stale(now, olderThan) {
			stale = append(stale, *log)
		}
	}
	return stale, nil
}

type fakeStagingRepo struct {
	mu      sync.Mutex
	nextID  int64
	records map[int64]*models.ImportedProduct
}

func newFakeStagingRepo() *fakeStagingRepo {
	return &fakeStagingRepo{records: make(map[int64]*models.ImportedProduct)}
}

func (r *fakeStagingRepo) CreateBatch(_ context.Context, records []*models.ImportedProduct) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range records {
		r.nextID++
		record.ID = r.nextID
		copied := *record
		r.records[record.ID] = &copied
	}
	return nil
}

func (r *fakeStagingRepo) PendingForLog(_ context.Context, logID int64) ([]models.ImportedProduct, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pending []models.ImportedProduct
	for id := int64(1); id <= r.nextID; id++ {
		record, ok := r.records[id]
		if ok && record.ImportLogID == logID && record.Status == models.RecordPending {
			pending = append(pending, *record)
		}
	}
	return pending, nil
}

func (r *fakeStagingRepo) Claim(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record := r.records[id]
	if record == nil || record.Status != models.RecordPending {
		return false, nil
	}
	record.Status = models.RecordProcessing
	return true, nil
}

func (r *fakeStagingRepo) MarkImported(_ context.Context, id, productID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record := r.records[id]
	record.Status = models.RecordImported
	record.ProductID = &productID
	record.ErrorText = ""
	return nil
}

func (r *fakeStagingRepo) MarkError(_ context.Context, id int64, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record := r.records[id]
	record.Status = models.RecordError
	record.ErrorText = message
	return nil
}

func (r *fakeStagingRepo) Requeue(_ context.Context, logID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	requeued := 0
	for _, record := range r.records {
		if record.ImportLogID == logID && record.Status == models.RecordError {
			record.Status = models.RecordPending
			record.ErrorText = ""
			requeued++
		}
	}
	return requeued, nil
}

type fakeProductRepo struct {
	mu       sync.Mutex
	nextID   int64
	byKey    map[string]int64
	products map[int64]*models.Product
	upserts  int
	inserts  int
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{
		byKey:    make(map[string]int64),
		products: make(map[int64]*models.Product),
	}
}

func (r *fakeProductRepo) Upsert(_ context.Context, product *models.Product) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	key := fmt.Sprintf("%d/%s/%s", product.ShopID, product.Source, product.SKU)
	if id, ok := r.byKey[key]; ok {
		product.ID = id
		copied := *product
		r.products[id] = &copied
		return id, nil
	}
	r.nextID++
	product.ID = r.nextID
	r.byKey[key] = r.nextID
	copied := *product
	r.products[r.nextID] = &copied
	return r.nextID, nil
}

func (r *fakeProductRepo) Insert(_ context.Context, product *models.Product) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts++
	r.nextID++
	product.ID = r.nextID
	copied := *product
	r.products[r.nextID] = &copied
	return r.nextID, nil
}

func (r *fakeProductRepo) Get(_ context.Context, id int64) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	product, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d not found", id)
	}
	copied := *product
	return &copied, nil
}

func newTestService(t *testing.T) (*ImportService, *fakeLogRepo, *fakeStagingRepo, *fakeProductRepo) {
	t.Helper()
	logs := newFakeLogRepo()
	staging := newFakeStagingRepo()
	products := newFakeProductRepo()
	normalizer := normalize.NewNormalizer(nil, values.DefaultOlxValues(), logger.NewLogger(io.Discard, "[test]"))
	svc := NewImportService(logs, staging, products, normalizer, 4, logger.NewLogger(io.Discard, "[test]"))
	return svc, logs, staging, products
}

func csvRecords(t *testing.T, rows ...map[string]string) []reader.RawRecord {
	t.Helper()
	records := make([]reader.RawRecord, 0, len(rows))
	for i, fields := range rows {
		records = append(records, reader.RawRecord{Row: i + 1, Fields: fields})
	}
	return records
}

func TestRunProcessesBatchAndFinalizes(t *testing.T) {
	t.Parallel()

	svc, _, _, products := newTestService(t)
	ctx := context.Background()

	records := csvRecords(t,
		map[string]string{"title": "Widget", "price": "100", "sku": "W-1"},
		map[string]string{"title": "Gadget", "price": "25.50", "sku": "G-2"},
		map[string]string{"title": "", "price": "10", "sku": "X-3"}, // fails validation
	)
	logID, err := svc.StartImport(ctx, 7, models.SourceCSV, records)
	if err != nil {
		t.Fatalf("StartImport: %v", err)
	}

	finalized, err := svc.Run(ctx, logID, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if finalized.Status != models.LogCompletedWithErrors {
		t.Fatalf("status = %s, want completed_with_errors", finalized.Status)
	}
	if finalized.ProcessedRows != 3 || finalized.SuccessfulRows != 2 || finalized.FailedRows != 1 {
		t.Fatalf("counters = %d/%d/%d, want 3/2/1",
			finalized.ProcessedRows, finalized.SuccessfulRows, finalized.FailedRows)
	}
	if finalized.ProcessedRows != finalized.SuccessfulRows+finalized.FailedRows {
		t.Fatal("processed must equal successful + failed")
	}
	if len(finalized.Errors) != 1 {
		t.Fatalf("error list has %d entries, want 1", len(finalized.Errors))
	}
	if len(products.products) != 2 {
		t.Fatalf("stored %d products, want 2", len(products.products))
	}
}

func TestRerunOfSameFeedUpdatesInsteadOfDuplicating(t *testing.T) {
	t.Parallel()

	svc, _, _, products := newTestService(t)
	ctx := context.Background()

	feed := csvRecords(t, map[string]string{"title": "Widget", "price": "100", "sku": "W-1"})

	for run := 0; run < 2; run++ {
		logID, err := svc.StartImport(ctx, 7, models.SourceCSV, feed)
		if err != nil {
			t.Fatalf("StartImport run %d: %v", run, err)
		}
		if _, err := svc.Run(ctx, logID, nil); err != nil {
			t.Fatalf("Run %d: %v", run, err)
		}
	}

	if len(products.products) != 1 {
		t.Fatalf("same (shop, source, sku) imported twice should stay one product, got %d", len(products.products))
	}
	if products.upserts != 2 {
		t.Fatalf("upserts = %d, want 2", products.upserts)
	}
}

func TestBlankSKUAlwaysInserts(t *testing.T) {
	t.Parallel()

	svc, _, _, products := newTestService(t)
	ctx := context.Background()

	feed := csvRecords(t,
		map[string]string{"title": "NoSKU A", "price": "10"},
		map[string]string{"title": "NoSKU B", "price": "20"},
	)
	logID, err := svc.StartImport(ctx, 7, models.SourceCSV, feed)
	if err != nil {
		t.Fatalf("StartImport: %v", err)
	}
	if _, err := svc.Run(ctx, logID, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if products.inserts != 2 || products.upserts != 0 {
		t.Fatalf("inserts/upserts = %d/%d, want 2/0 for blank skus", products.inserts, products.upserts)
	}
}

func TestRunIsIdempotentPerRecord(t *testing.T) {
	t.Parallel()

	svc, logs, _, _ := newTestService(t)
	ctx := context.Background()

	feed := csvRecords(t, map[string]string{"title": "Widget", "price": "100", "sku": "W-1"})
	logID, err := svc.StartImport(ctx, 7, models.SourceCSV, feed)
	if err != nil {
		t.Fatalf("StartImport: %v", err)
	}
	if _, err := svc.Run(ctx, logID, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// a second Run of a finalized log must not be runnable, and the error
	// must be the typed kind queue consumers drop instead of requeueing
	_, err = svc.Run(ctx, logID, nil)
	if err == nil {
		t.Fatal("second Run of a terminal log should fail")
	}
	var notRunnable *NotRunnableError
	if !errors.As(err, &notRunnable) {
		t.Fatalf("want NotRunnableError, got %v", err)
	}
	if notRunnable.LogID != logID || !notRunnable.Status.Terminal() {
		t.Fatalf("error detail = %+v", notRunnable)
	}

	final, _ := logs.Get(ctx, logID)
	if final.ProcessedRows != 1 {
		t.Fatalf("processed = %d, want 1 after double run attempt", final.ProcessedRows)
	}
}

func TestRetryErroredReprocessesOnlyFailures(t *testing.T) {
	t.Parallel()

	svc, _, staging, products := newTestService(t)
	ctx := context.Background()

	feed := csvRecords(t,
		map[string]string{"title": "Widget", "price": "100", "sku": "W-1"},
		map[string]string{"title": "Broken", "price": "n/a", "sku": "B-2"},
	)
	logID, err := svc.StartImport(ctx, 7, models.SourceCSV, feed)
	if err != nil {
		t.Fatalf("StartImport: %v", err)
	}
	first, err := svc.Run(ctx, logID, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if first.Status != models.LogCompletedWithErrors || first.FailedRows != 1 {
		t.Fatalf("first run = %s with %d failed, want completed_with_errors/1", first.Status, first.FailedRows)
	}

	// fix the staged record's raw data out of band, then retry
	for _, record := range staging.records {
		if record.Status == models.RecordError {
			record.RawData = mustJSON(t, map[string]string{"title": "Fixed", "price": "50", "sku": "B-2"})
		}
	}

	retried, err := svc.RetryErrored(ctx, logID, nil)
	if err != nil {
		t.Fatalf("RetryErrored: %v", err)
	}
	if retried.Status != models.LogCompleted {
		t.Fatalf("status after retry = %s, want completed", retried.Status)
	}
	if retried.ProcessedRows != 2 || retried.SuccessfulRows != 2 || retried.FailedRows != 0 {
		t.Fatalf("counters after retry = %d/%d/%d, want 2/2/0",
			retried.ProcessedRows, retried.SuccessfulRows, retried.FailedRows)
	}
	if len(products.products) != 2 {
		t.Fatalf("stored %d products, want 2", len(products.products))
	}
}

func TestRetryWithoutErrorsIsNoOp(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	feed := csvRecords(t, map[string]string{"title": "Widget", "price": "100", "sku": "W-1"})
	logID, _ := svc.StartImport(ctx, 7, models.SourceCSV, feed)
	if _, err := svc.Run(ctx, logID, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	log, err := svc.RetryErrored(ctx, logID, nil)
	if err != nil {
		t.Fatalf("RetryErrored: %v", err)
	}
	if log.Status != models.LogCompleted || log.ProcessedRows != 1 {
		t.Fatalf("no-op retry changed the log: %s %d", log.Status, log.ProcessedRows)
	}
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}
