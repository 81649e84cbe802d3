package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"olxmarket_api/internal/core/models"
	"olxmarket_api/internal/importer/normalize"
	"olxmarket_api/internal/importer/reader"
	"olxmarket_api/metrics"
	"olxmarket_api/pkg/logger"
)

// NotRunnableError reports a Run call against a log already in a terminal
// status. Retrying the same task can never succeed, so queue consumers drop
// it instead of requeueing.
type NotRunnableError struct {
	LogID  int64
	Status models.ImportLogStatus
}

func (e *NotRunnableError) Error() string {
	return fmt.Sprintf("import log %d is %s, not runnable", e.LogID, e.Status)
}

// ImportService drives one batch through staging, normalization and the
// product table. Batches for different logs may run in parallel; within one
// log the per-record claim keeps workers from double-processing.
type ImportService struct {
	logs       LogRepository
	staging    StagingRepository
	products   ProductRepository
	normalizer *normalize.Normalizer
	workers    int
	log        logger.Logger
}

func NewImportService(logs LogRepository, staging StagingRepository, products ProductRepository, normalizer *normalize.Normalizer, workers int, log logger.Logger) *ImportService {
	if workers <= 0 {
		workers = 1
	}
	return &ImportService{
		logs:       logs,
		staging:    staging,
		products:   products,
		normalizer: normalizer,
		workers:    workers,
		log:        log,
	}
}

// StartImport creates the ImportLog and stages every raw record verbatim.
// It does not process anything; Run (directly or through the task queue)
// does that. Returns the new log id.
func (s *ImportService) StartImport(ctx context.Context, shopID int64, source models.ImportSource, records []reader.RawRecord) (int64, error) {
	importLog := &models.ImportLog{
		ShopID:    shopID,
		Source:    source,
		Status:    models.LogPending,
		TotalRows: len(records),
	}
	if err := s.logs.Create(ctx, importLog); err != nil {
		return 0, fmt.Errorf("creating import log: %w", err)
	}

	staged := make([]*models.ImportedProduct, 0, len(records))
	for _, record := range records {
		rawData, err := json.Marshal(record.Fields)
		if err != nil {
			return 0, fmt.Errorf("encoding raw record %d: %w", record.Row, err)
		}
		staged = append(staged, &models.ImportedProduct{
			ImportLogID: importLog.ID,
			ShopID:      shopID,
			Source:      source,
			Row:         record.Row,
			RawData:     rawData,
			Status:      models.RecordPending,
		})
	}
	if err := s.staging.CreateBatch(ctx, staged); err != nil {
		// nothing was staged; the batch fails outright
		if _, serr := s.logs.SetStatus(ctx, importLog.ID, models.LogPending, models.LogFailed); serr != nil {
			s.log.Log("failed to mark log %d failed: %v", importLog.ID, serr)
		}
		return 0, fmt.Errorf("staging records: %w", err)
	}

	return importLog.ID, nil
}

// Run processes every pending staged record of one log with bounded
// parallelism and finalizes the log once all records reached a terminal
// state. A record-level failure never short-circuits the batch.
func (s *ImportService) Run(ctx context.Context, logID int64, mapping map[string]string) (*models.ImportLog, error) {
	moved, err := s.logs.SetStatus(ctx, logID, models.LogPending, models.LogProcessing)
	if err != nil {
		return nil, fmt.Errorf("starting log %d: %w", logID, err)
	}
	if !moved {
		current, err := s.logs.Get(ctx, logID)
		if err != nil {
			return nil, err
		}
		if current.Status != models.LogProcessing {
			return nil, &NotRunnableError{LogID: logID, Status: current.Status}
		}
	}

	pending, err := s.staging.PendingForLog(ctx, logID)
	if err != nil {
		return nil, fmt.Errorf("loading staged records for log %d: %w", logID, err)
	}

	progress := &metrics.PipelineMetrics{}
	recordChan := make(chan models.ImportedProduct)
	var wg sync.WaitGroup

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			progress.WorkerCount.Add(1)
			defer progress.WorkerCount.Add(-1)
			for record := range recordChan {
				s.attempt(ctx, record, mapping, progress)
			}
		}()
	}

	for _, record := range pending {
		recordChan <- record
	}
	close(recordChan)
	wg.Wait()

	finalized, err := s.logs.Finalize(ctx, logID)
	if err != nil {
		return nil, fmt.Errorf("finalizing log %d: %w", logID, err)
	}
	s.log.Log("import %d finished: %s (%d ok / %d failed of %d)",
		logID, finalized.Status, finalized.SuccessfulRows, finalized.FailedRows, finalized.TotalRows)
	return finalized, nil
}

// attempt is the single per-record wrapper: it always produces either an
// imported record or an errored one, and feeds exactly one aggregator.
func (s *ImportService) attempt(ctx context.Context, record models.ImportedProduct, mapping map[string]string, progress *metrics.PipelineMetrics) {
	claimed, err := s.staging.Claim(ctx, record.ID)
	if err != nil {
		s.log.Log("claim of record %d failed: %v", record.ID, err)
		return
	}
	if !claimed {
		return
	}

	progress.ProcessedCount.Add(1)

	productID, err := s.importOne(ctx, record, mapping)
	if err != nil {
		progress.ErrorCount.Add(1)
		metrics.RecordImportOutcome(string(record.Source), false)
		if merr := s.staging.MarkError(ctx, record.ID, err.Error()); merr != nil {
			s.log.Log("marking record %d errored: %v", record.ID, merr)
		}
		if lerr := s.logs.AppendError(ctx, record.ImportLogID, models.ImportError{
			RecordID: record.ID,
			Row:      record.Row,
			Message:  err.Error(),
		}); lerr != nil {
			s.log.Log("appending error for record %d: %v", record.ID, lerr)
		}
		if cerr := s.logs.IncrementCounters(ctx, record.ImportLogID, false); cerr != nil {
			s.log.Log("incrementing counters for log %d: %v", record.ImportLogID, cerr)
		}
		return
	}

	progress.SuccessCount.Add(1)
	metrics.RecordImportOutcome(string(record.Source), true)
	if merr := s.staging.MarkImported(ctx, record.ID, productID); merr != nil {
		s.log.Log("marking record %d imported: %v", record.ID, merr)
	}
	if cerr := s.logs.IncrementCounters(ctx, record.ImportLogID, true); cerr != nil {
		s.log.Log("incrementing counters for log %d: %v", record.ImportLogID, cerr)
	}
}

func (s *ImportService) importOne(ctx context.Context, record models.ImportedProduct, mapping map[string]string) (int64, error) {
	raw, err := record.Raw()
	if err != nil {
		return 0, err
	}

	product, err := s.normalizer.Normalize(ctx, record.ShopID, record.Source, raw, mapping)
	if err != nil {
		return 0, err
	}

	if product.SKU == "" {
		// no dedup key; degraded always-insert mode
		s.log.Log("record %d has no sku, inserting without dedup", record.ID)
		return s.products.Insert(ctx, product)
	}
	return s.products.Upsert(ctx, product)
}

// Status returns the current log snapshot. Intermediate reads are
// approximate; counts are only settled once the status is terminal.
func (s *ImportService) Status(ctx context.Context, logID int64) (*models.ImportLog, error) {
	return s.logs.Get(ctx, logID)
}

// RetryErrored re-queues all errored records of a finished log and runs the
// batch again.
func (s *ImportService) RetryErrored(ctx context.Context, logID int64, mapping map[string]string) (*models.ImportLog, error) {
	requeued, err := s.staging.Requeue(ctx, logID)
	if err != nil {
		return nil, fmt.Errorf("requeueing log %d: %w", logID, err)
	}
	if requeued == 0 {
		return s.logs.Get(ctx, logID)
	}
	if err := s.logs.ReopenForRetry(ctx, logID, requeued); err != nil {
		return nil, fmt.Errorf("reopening log %d: %w", logID, err)
	}
	s.log.Log("requeued %d errored records for log %d", requeued, logID)

	pending, err := s.staging.PendingForLog(ctx, logID)
	if err != nil {
		return nil, err
	}
	progress := &metrics.PipelineMetrics{}
	for _, record := range pending {
		s.attempt(ctx, record, mapping, progress)
	}
	return s.logs.Finalize(ctx, logID)
}

// StaleImports lists logs stuck outside a terminal status longer than the
// threshold. Detection only; resolution is an operator decision.
func (s *ImportService) StaleImports(ctx context.Context, olderThan time.Duration) ([]models.ImportLog, error) {
	return s.logs.StaleLogs(ctx, olderThan)
}
