package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"olxmarket_api/internal/core/models"
)

type ImportLogRepository struct {
	db *sql.DB
}

func NewImportLogRepository(db *sql.DB) *ImportLogRepository {
	return &ImportLogRepository{db: db}
}

func (r *ImportLogRepository) Create(ctx context.Context, log *models.ImportLog) error {
	query := `
		INSERT INTO core.import_logs (shop_id, source, status, total_rows)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at;
	`
	err := r.db.QueryRowContext(ctx, query, log.ShopID, log.Source, log.Status, log.TotalRows).
		Scan(&log.ID, &log.CreatedAt, &log.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting import log: %w", err)
	}
	return nil
}

func (r *ImportLogRepository) Get(ctx context.Context, id int64) (*models.ImportLog, error) {
	query := `
		SELECT id, shop_id, source, status, total_rows, processed_rows,
		       successful_rows, failed_rows, phase, errors, created_at, updated_at
		FROM core.import_logs
		WHERE id = $1;
	`
	var log models.ImportLog
	var errorsJSON []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&log.ID, &log.ShopID, &log.Source, &log.Status, &log.TotalRows,
		&log.ProcessedRows, &log.SuccessfulRows, &log.FailedRows,
		&log.Phase, &errorsJSON, &log.CreatedAt, &log.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("fetching import log %d: %w", id, err)
	}
	if len(errorsJSON) > 0 {
		if err := json.Unmarshal(errorsJSON, &log.Errors); err != nil {
			return nil, fmt.Errorf("decoding error list of log %d: %w", id, err)
		}
	}
	return &log, nil
}

func (r *ImportLogRepository) SetStatus(ctx context.Context, id int64, from, to models.ImportLogStatus) (bool, error) {
	if !from.CanTransition(to) {
		return false, fmt.Errorf("illegal import log transition %s -> %s", from, to)
	}
	result, err := r.db.ExecContext(ctx, `
		UPDATE core.import_logs
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3;
	`, to, id, from)
	if err != nil {
		return false, fmt.Errorf("updating status of log %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *ImportLogRepository) SetPhase(ctx context.Context, id int64, phase string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE core.import_logs SET phase = $1, updated_at = now() WHERE id = $2;
	`, phase, id)
	if err != nil {
		return fmt.Errorf("updating phase of log %d: %w", id, err)
	}
	return nil
}

// IncrementCounters bumps the row counters in the database itself, so
// concurrent record completions never lose an increment.
func (r *ImportLogRepository) IncrementCounters(ctx context.Context, id int64, success bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE core.import_logs
		SET processed_rows  = processed_rows + 1,
		    successful_rows = successful_rows + CASE WHEN $1 THEN 1 ELSE 0 END,
		    failed_rows     = failed_rows + CASE WHEN $1 THEN 0 ELSE 1 END,
		    updated_at      = now()
		WHERE id = $2;
	`, success, id)
	if err != nil {
		return fmt.Errorf("incrementing counters of log %d: %w", id, err)
	}
	return nil
}

func (r *ImportLogRepository) AppendError(ctx context.Context, id int64, importError models.ImportError) error {
	entry, err := json.Marshal(importError)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE core.import_logs
		SET errors = COALESCE(errors, '[]'::jsonb) || $1::jsonb, updated_at = now()
		WHERE id = $2;
	`, entry, id)
	if err != nil {
		return fmt.Errorf("appending error to log %d: %w", id, err)
	}
	return nil
}

// Finalize derives the terminal status from the counters already in the row.
func (r *ImportLogRepository) Finalize(ctx context.Context, id int64) (*models.ImportLog, error) {
	_, err := r.db.ExecContext(ctx, `
		UPDATE core.import_logs
		SET status = CASE
		        WHEN failed_rows > 0 AND successful_rows = 0 THEN 'failed'
		        WHEN failed_rows > 0 THEN 'completed_with_errors'
		        ELSE 'completed'
		    END,
		    updated_at = now()
		WHERE id = $1 AND status = 'processing';
	`, id)
	if err != nil {
		return nil, fmt.Errorf("finalizing log %d: %w", id, err)
	}
	return r.Get(ctx, id)
}

func (r *ImportLogRepository) ReopenForRetry(ctx context.Context, id int64, requeued int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE core.import_logs
		SET status = 'processing',
		    processed_rows = processed_rows - $1,
		    failed_rows = failed_rows - $1,
		    errors = '[]'::jsonb,
		    updated_at = now()
		WHERE id = $2;
	`, requeued, id)
	if err != nil {
		return fmt.Errorf("reopening log %d: %w", id, err)
	}
	return nil
}

func (r *ImportLogRepository) StaleLogs(ctx context.Context, olderThan time.Duration) ([]models.ImportLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, shop_id, source, status, total_rows, processed_rows,
		       successful_rows, failed_rows, phase, created_at, updated_at
		FROM core.import_logs
		WHERE status IN ('pending', 'processing')
		  AND updated_at < now() - $1::interval;
	`, fmt.Sprintf("%f seconds", olderThan.Seconds()))
	if err != nil {
		return nil, fmt.Errorf("querying stale logs: %w", err)
	}
	defer rows.Close()

	var logs []models.ImportLog
	for rows.Next() {
		var log models.ImportLog
		if err := rows.Scan(
			&log.ID, &log.ShopID, &log.Source, &log.Status, &log.TotalRows,
			&log.ProcessedRows, &log.SuccessfulRows, &log.FailedRows,
			&log.Phase, &log.CreatedAt, &log.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning stale log: %w", err)
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

type StagingRepository struct {
	db *sql.DB
}

func NewStagingRepository(db *sql.DB) *StagingRepository {
	return &StagingRepository{db: db}
}

func (r *StagingRepository) CreateBatch(ctx context.Context, records []*models.ImportedProduct) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO core.imported_products (import_log_id, shop_id, source, row_number, raw_data, status)
		VALUES `
	valueStrings := make([]string, 0, len(records))
	args := make([]interface{}, 0, len(records)*6)
	for i, record := range records {
		valueStrings = append(valueStrings, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)",
			i*6+1, i*6+2, i*6+3, i*6+4, i*6+5, i*6+6))
		args = append(args, record.ImportLogID, record.ShopID, record.Source,
			record.Row, record.RawData, record.Status)
	}
	query += strings.Join(valueStrings, ", ")

	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("staging %d records: %w", len(records), err)
	}
	return nil
}

func (r *StagingRepository) PendingForLog(ctx context.Context, logID int64) ([]models.ImportedProduct, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, import_log_id, shop_id, source, row_number, raw_data, status,
		       COALESCE(error_text, ''), product_id, created_at, updated_at
		FROM core.imported_products
		WHERE import_log_id = $1 AND status = 'pending'
		ORDER BY row_number;
	`, logID)
	if err != nil {
		return nil, fmt.Errorf("querying staged records of log %d: %w", logID, err)
	}
	defer rows.Close()

	var records []models.ImportedProduct
	for rows.Next() {
		var record models.ImportedProduct
		if err := rows.Scan(
			&record.ID, &record.ImportLogID, &record.ShopID, &record.Source,
			&record.Row, &record.RawData, &record.Status, &record.ErrorText,
			&record.ProductID, &record.CreatedAt, &record.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning staged record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Claim is the atomic pending -> processing transition. The WHERE clause is
// the lock: only one worker gets the row.
func (r *StagingRepository) Claim(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE core.imported_products
		SET status = 'processing', updated_at = now()
		WHERE id = $1 AND status = 'pending';
	`, id)
	if err != nil {
		return false, fmt.Errorf("claiming record %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *StagingRepository) MarkImported(ctx context.Context, id, productID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE core.imported_products
		SET status = 'imported', product_id = $1, error_text = NULL, updated_at = now()
		WHERE id = $2 AND status = 'processing';
	`, productID, id)
	if err != nil {
		return fmt.Errorf("marking record %d imported: %w", id, err)
	}
	return nil
}

func (r *StagingRepository) MarkError(ctx context.Context, id int64, message string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE core.imported_products
		SET status = 'error', error_text = $1, updated_at = now()
		WHERE id = $2 AND status = 'processing';
	`, message, id)
	if err != nil {
		return fmt.Errorf("marking record %d errored: %w", id, err)
	}
	return nil
}

func (r *StagingRepository) Requeue(ctx context.Context, logID int64) (int, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE core.imported_products
		SET status = 'pending', error_text = NULL, updated_at = now()
		WHERE import_log_id = $1 AND status = 'error';
	`, logID)
	if err != nil {
		return 0, fmt.Errorf("requeueing records of log %d: %w", logID, err)
	}
	affected, err := result.RowsAffected()
	return int(affected), err
}
