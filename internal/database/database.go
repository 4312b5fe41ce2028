package database

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/Keyhaven-io/keyhaven/internal/config"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

var db *sql.DB

// Init opens the database connection described by the configuration and
// creates the schema if it does not exist.
func Init(cfg *config.Config) error {
	driver := cfg.Database.Driver
	dsn := cfg.Database.DSN

	if driver == "sqlite3" {
		dataDir := filepath.Dir(cfg.Database.Path)
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %v", err)
		}
		dsn = cfg.Database.Path
		if cfg.Database.WALMode {
			dsn += "?_journal=WAL"
		}
	}

	var lastErr error
	for i := 0; i < cfg.Database.MaxRetries; i++ {
		var err error
		db, err = sql.Open(driver, dsn)
		if err != nil {
			lastErr = fmt.Errorf("failed to open database: %v", err)
			log.Printf("Attempt %d/%d failed: %v", i+1, cfg.Database.MaxRetries, lastErr)
			time.Sleep(time.Duration(cfg.Database.RetryDelay) * time.Second)
			continue
		}

		if err := db.Ping(); err != nil {
			lastErr = fmt.Errorf("failed to ping database: %v", err)
			log.Printf("Attempt %d/%d failed: %v", i+1, cfg.Database.MaxRetries, lastErr)
			time.Sleep(time.Duration(cfg.Database.RetryDelay) * time.Second)
			continue
		}

		lastErr = nil
		break
	}

	if lastErr != nil {
		return fmt.Errorf("failed to connect to database after %d attempts: %v", cfg.Database.MaxRetries, lastErr)
	}

	if driver == "sqlite3" {
		// SQLite only supports one writer
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	db.SetConnMaxLifetime(time.Hour)

	if err := InitTables(db, driver); err != nil {
		return fmt.Errorf("failed to initialize tables: %v", err)
	}

	log.Printf("Database initialized successfully (driver: %s)", driver)
	return nil
}

// GetDB returns the database connection
func GetDB() *sql.DB {
	return db
}

// Close closes the database connection
func Close() error {
	if db != nil {
		return db.Close()
	}
	return nil
}

// InitTables creates the necessary tables if they don't exist.
func InitTables(db *sql.DB, driver string) error {
	timestamp := "DATETIME"
	if driver == "postgres" {
		timestamp = "TIMESTAMPTZ"
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			is_staff BOOLEAN NOT NULL DEFAULT FALSE,
			email_verified BOOLEAN NOT NULL DEFAULT FALSE,
			last_login_ip TEXT,
			created_at ` + timestamp + ` NOT NULL,
			updated_at ` + timestamp + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tokens (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			secret TEXT UNIQUE NOT NULL,
			created_at ` + timestamp + ` NOT NULL,
			expires_at ` + timestamp + ` NOT NULL,
			used_at ` + timestamp + `,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tokens_user_kind ON tokens(user_id, kind)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			revoked BOOLEAN NOT NULL DEFAULT FALSE,
			created_at ` + timestamp + ` NOT NULL,
			expires_at ` + timestamp + ` NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}
