package infrastructure

import (
	"database/sql"
	"fmt"
	"log"
)

type MigrationsSchema struct{}

func (m *MigrationsSchema) UpMigration(db *sql.DB) error {
	query :=
		`
		CREATE SCHEMA IF NOT EXISTS migrations;
		`
	_, err := db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create migrations schema: %w", err)
	}
	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS migrations.migrations (
            id SERIAL PRIMARY KEY,
            time TIMESTAMP NOT NULL,
            name VARCHAR(255) UNIQUE NOT NULL
        );
    `)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

type CoreSchema struct{}

func (m *CoreSchema) UpMigration(db *sql.DB) error {
	query := `
	CREATE SCHEMA IF NOT EXISTS core;`
	_, err := db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create schema core: %w", err)
	}
	return nil
}

type CreateShopsTable struct{}

func (m *CreateShopsTable) UpMigration(db *sql.DB) error {
	if ok, err := checkAndSkipMigration(db, "core.shops"); err != nil {
		return err
	} else if ok {
		return nil
	}
	query := `
	CREATE TABLE IF NOT EXISTS core.shops (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		olx_login VARCHAR(255) NOT NULL,
		olx_secret VARCHAR(255) NOT NULL,
		token TEXT,
		token_expires_at TIMESTAMP WITH TIME ZONE,
		token_version BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT now() NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT now() NOT NULL
	);`
	if err := executeAndMarkMigration(db, query, "core.shops"); err != nil {
		return err
	}
	log.Println("Migration 'core.shops' completed successfully.")
	return nil
}

type CreateCategoryTemplatesTable struct{}

func (m *CreateCategoryTemplatesTable) UpMigration(db *sql.DB) error {
	if ok, err := checkAndSkipMigration(db, "core.category_templates"); err != nil {
		return err
	} else if ok {
		return nil
	}
	query := `
	CREATE TABLE IF NOT EXISTS core.category_templates (
		id BIGSERIAL PRIMARY KEY,
		shop_id BIGINT NOT NULL REFERENCES core.shops(id) ON DELETE CASCADE,
		name VARCHAR(255) NOT NULL,
		category_external_id BIGINT NOT NULL,
		location_external_id BIGINT,
		lat DOUBLE PRECISION,
		lon DOUBLE PRECISION,
		listing_type VARCHAR(32) NOT NULL DEFAULT 'sell',
		condition VARCHAR(32) NOT NULL DEFAULT 'new',
		rules JSONB NOT NULL DEFAULT '[]'::jsonb
	);`
	if err := executeAndMarkMigration(db, query, "core.category_templates"); err != nil {
		return err
	}
	log.Println("Migration 'core.category_templates' completed successfully.")
	return nil
}

type CreateProductsTable struct{}

func (m *CreateProductsTable) UpMigration(db *sql.DB) error {
	if ok, err := checkAndSkipMigration(db, "core.products"); err != nil {
		return err
	} else if ok {
		return nil
	}
	// sku is nullable: NULL never conflicts, so records without a dedup key
	// always insert as new rows.
	query := `
	CREATE TABLE IF NOT EXISTS core.products (
		id BIGSERIAL PRIMARY KEY,
		shop_id BIGINT NOT NULL REFERENCES core.shops(id) ON DELETE CASCADE,
		source VARCHAR(32) NOT NULL,
		sku VARCHAR(255),
		title TEXT NOT NULL,
		brand VARCHAR(255) NOT NULL DEFAULT '',
		category VARCHAR(255) NOT NULL DEFAULT '',
		price NUMERIC(12, 2) NOT NULL DEFAULT 0,
		currency VARCHAR(8) NOT NULL DEFAULT 'BAM',
		stock INT NOT NULL DEFAULT 0,
		description TEXT NOT NULL DEFAULT '',
		margin_pct NUMERIC(6, 2) NOT NULL DEFAULT 0,
		final_price NUMERIC(12, 2) NOT NULL DEFAULT 0,
		specs JSONB NOT NULL DEFAULT '{}'::jsonb,
		template_id BIGINT REFERENCES core.category_templates(id),
		image_urls TEXT[],
		created_at TIMESTAMP WITH TIME ZONE DEFAULT now() NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT now() NOT NULL,
		CONSTRAINT products_dedup_key UNIQUE (shop_id, source, sku)
	);`
	if err := executeAndMarkMigration(db, query, "core.products"); err != nil {
		return err
	}
	log.Println("Migration 'core.products' completed successfully.")
	return nil
}

type CreateImportLogsTable struct{}

func (m *CreateImportLogsTable) UpMigration(db *sql.DB) error {
	if ok, err := checkAndSkipMigration(db, "core.import_logs"); err != nil {
		return err
	} else if ok {
		return nil
	}
	query := `
	CREATE TABLE IF NOT EXISTS core.import_logs (
		id BIGSERIAL PRIMARY KEY,
		shop_id BIGINT NOT NULL REFERENCES core.shops(id) ON DELETE CASCADE,
		source VARCHAR(32) NOT NULL,
		status VARCHAR(32) NOT NULL DEFAULT 'pending',
		total_rows INT NOT NULL DEFAULT 0,
		processed_rows INT NOT NULL DEFAULT 0,
		successful_rows INT NOT NULL DEFAULT 0,
		failed_rows INT NOT NULL DEFAULT 0,
		phase VARCHAR(64) NOT NULL DEFAULT '',
		errors JSONB NOT NULL DEFAULT '[]'::jsonb,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT now() NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT now() NOT NULL
	);`
	if err := executeAndMarkMigration(db, query, "core.import_logs"); err != nil {
		return err
	}
	log.Println("Migration 'core.import_logs' completed successfully.")
	return nil
}

type CreateImportedProductsTable struct{}

func (m *CreateImportedProductsTable) UpMigration(db *sql.DB) error {
	if ok, err := checkAndSkipMigration(db, "core.imported_products"); err != nil {
		return err
	} else if ok {
		return nil
	}
	query := `
	CREATE TABLE IF NOT EXISTS core.imported_products (
		id BIGSERIAL PRIMARY KEY,
		import_log_id BIGINT NOT NULL REFERENCES core.import_logs(id) ON DELETE CASCADE,
		shop_id BIGINT NOT NULL REFERENCES core.shops(id) ON DELETE CASCADE,
		source VARCHAR(32) NOT NULL,
		row_number INT NOT NULL DEFAULT 0,
		raw_data JSONB NOT NULL DEFAULT '{}'::jsonb,
		status VARCHAR(32) NOT NULL DEFAULT 'pending',
		error_text TEXT,
		product_id BIGINT REFERENCES core.products(id),
		created_at TIMESTAMP WITH TIME ZONE DEFAULT now() NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT now() NOT NULL
	);
	CREATE INDEX IF NOT EXISTS imported_products_log_status_idx
	ON core.imported_products(import_log_id, status);`
	if err := executeAndMarkMigration(db, query, "core.imported_products"); err != nil {
		return err
	}
	log.Println("Migration 'core.imported_products' completed successfully.")
	return nil
}

type CreateListingsTable struct{}

func (m *CreateListingsTable) UpMigration(db *sql.DB) error {
	if ok, err := checkAndSkipMigration(db, "core.listings"); err != nil {
		return err
	} else if ok {
		return nil
	}
	query := `
	CREATE TABLE IF NOT EXISTS core.listings (
		id BIGSERIAL PRIMARY KEY,
		shop_id BIGINT NOT NULL REFERENCES core.shops(id) ON DELETE CASCADE,
		product_id BIGINT NOT NULL REFERENCES core.products(id) ON DELETE CASCADE,
		external_id VARCHAR(64) NOT NULL,
		status VARCHAR(32) NOT NULL DEFAULT 'draft',
		published_at TIMESTAMP WITH TIME ZONE,
		metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT now() NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT now() NOT NULL,
		CONSTRAINT listings_one_per_product UNIQUE (product_id),
		CONSTRAINT listings_external_key UNIQUE (shop_id, external_id)
	);`
	if err := executeAndMarkMigration(db, query, "core.listings"); err != nil {
		return err
	}
	log.Println("Migration 'core.listings' completed successfully.")
	return nil
}

func checkAndSkipMigration(db *sql.DB, migrationName string) (bool, error) {
	var migrationExists bool
	err := db.QueryRow("SELECT EXISTS (SELECT 1 FROM migrations.migrations WHERE name = $1)", migrationName).Scan(&migrationExists)
	if err != nil {
		return migrationExists, fmt.Errorf("failed to check migration status: %w", err)
	}
	if migrationExists {
		log.Printf("Migration '%s' already completed. Skipping.\n", migrationName)
		return migrationExists, nil
	}
	return migrationExists, nil
}

func executeAndMarkMigration(db *sql.DB, query string, migrationName string) error {
	_, err := db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to execute migration '%s': %w", migrationName, err)
	}
	_, err = db.Exec("INSERT INTO migrations.migrations (name, time) VALUES ($1, current_timestamp)", migrationName)
	if err != nil {
		return fmt.Errorf("failed to mark migration '%s' as complete: %w", migrationName, err)
	}
	return nil
}
