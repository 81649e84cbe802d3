package olx

import (
	"database/sql"
	"fmt"
	"log"
)

type CreateOlxSchema struct{}

func (m *CreateOlxSchema) UpMigration(db *sql.DB) error {
	query := `
	CREATE SCHEMA IF NOT EXISTS olx;`
	_, err := db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create schema olx: %w", err)
	}
	return nil
}

type CreateOlxCategoriesTable struct{}

func (m *CreateOlxCategoriesTable) UpMigration(db *sql.DB) error {
	if ok, err := checkAndSkipMigration(db, "olx.categories"); err != nil {
		return err
	} else if ok {
		return nil
	}
	// parent_id intentionally has no FK: the resolve-parents pass writes it
	// after all nodes of a fetch landed, and an orphan keeps NULL.
	query := `
	CREATE TABLE IF NOT EXISTS olx.categories (
		id BIGSERIAL PRIMARY KEY,
		external_id BIGINT UNIQUE NOT NULL,
		name VARCHAR(255) NOT NULL,
		slug VARCHAR(255) NOT NULL DEFAULT '',
		parent_external_id BIGINT NOT NULL DEFAULT 0,
		parent_id BIGINT,
		supports_shipping BOOLEAN NOT NULL DEFAULT FALSE,
		supports_brand BOOLEAN NOT NULL DEFAULT FALSE,
		metadata JSONB NOT NULL DEFAULT '{}'::jsonb
	);`
	if err := executeAndMarkMigration(db, query, "olx.categories"); err != nil {
		return err
	}
	log.Println("Migration 'olx.categories' completed successfully.")
	return nil
}

type CreateOlxCategoryAttributesTable struct{}

func (m *CreateOlxCategoryAttributesTable) UpMigration(db *sql.DB) error {
	if ok, err := checkAndSkipMigration(db, "olx.category_attributes"); err != nil {
		return err
	} else if ok {
		return nil
	}
	query := `
	CREATE TABLE IF NOT EXISTS olx.category_attributes (
		id BIGSERIAL PRIMARY KEY,
		category_external_id BIGINT NOT NULL
			REFERENCES olx.categories(external_id) ON DELETE CASCADE,
		name VARCHAR(255) NOT NULL,
		type VARCHAR(64) NOT NULL DEFAULT '',
		input_kind VARCHAR(64) NOT NULL DEFAULT '',
		required BOOLEAN NOT NULL DEFAULT FALSE,
		options TEXT[]
	);
	CREATE INDEX IF NOT EXISTS category_attributes_category_idx
	ON olx.category_attributes(category_external_id);`
	if err := executeAndMarkMigration(db, query, "olx.category_attributes"); err != nil {
		return err
	}
	log.Println("Migration 'olx.category_attributes' completed successfully.")
	return nil
}

type CreateOlxLocationsTable struct{}

func (m *CreateOlxLocationsTable) UpMigration(db *sql.DB) error {
	if ok, err := checkAndSkipMigration(db, "olx.locations"); err != nil {
		return err
	} else if ok {
		return nil
	}
	query := `
	CREATE TABLE IF NOT EXISTS olx.locations (
		id BIGSERIAL PRIMARY KEY,
		external_id BIGINT UNIQUE NOT NULL,
		name VARCHAR(255) NOT NULL,
		country_id BIGINT,
		region_id BIGINT,
		subregion_id BIGINT,
		lat DOUBLE PRECISION,
		lon DOUBLE PRECISION,
		postal_code VARCHAR(32)
	);`
	if err := executeAndMarkMigration(db, query, "olx.locations"); err != nil {
		return err
	}
	log.Println("Migration 'olx.locations' completed successfully.")
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
