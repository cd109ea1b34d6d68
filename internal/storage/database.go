package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// dsnParams apply to every pooled connection. Foreign keys are a per-connection
// setting in SQLite, so they are enabled here rather than with a one-off PRAGMA.
// Immediate transactions take the write lock at BEGIN, so concurrent document
// writes queue on the busy timeout instead of failing on lock upgrade.
const dsnParams = "_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"

// DBTX is the subset of *sql.DB and *sql.Tx used by the repositories.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New opens a SQLite database connection at the given path.
// It enables foreign keys and WAL mode and sets connection pool settings.
func New(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?"+dsnParams)
	if err != nil {
		return nil, err
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate runs database migrations to create the required tables.
// It is idempotent and can be run multiple times safely.
//
// Deletes never rely on ON DELETE clauses: DeleteDocument removes owned rows and
// nulls incoming link targets explicitly, and doc_fts is written next to doc in
// the same transaction instead of through triggers.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS vault (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			workspace_root TEXT NOT NULL UNIQUE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS doc (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			vault_id INTEGER NOT NULL REFERENCES vault(id),
			rel_path TEXT NOT NULL,
			path_key TEXT NOT NULL,
			name_key TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			chunking_version TEXT NOT NULL DEFAULT '',
			last_hash TEXT NOT NULL DEFAULT '',
			last_source_size INTEGER NOT NULL DEFAULT 0,
			last_source_mtime INTEGER NOT NULL DEFAULT 0,
			last_embedding_model TEXT NOT NULL DEFAULT '',
			last_embedding_dim INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (vault_id, rel_path)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_doc_path_key ON doc (vault_id, path_key);`,
		`CREATE INDEX IF NOT EXISTS idx_doc_name_key ON doc (vault_id, name_key);`,
		`CREATE TABLE IF NOT EXISTS segment (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			doc_id INTEGER NOT NULL REFERENCES doc(id),
			ordinal INTEGER NOT NULL,
			last_hash TEXT NOT NULL,
			heading_path TEXT NOT NULL DEFAULT '',
			token_count INTEGER NOT NULL DEFAULT 0,
			UNIQUE (doc_id, ordinal)
		);`,
		`CREATE TABLE IF NOT EXISTS embedding (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			segment_id INTEGER NOT NULL UNIQUE REFERENCES segment(id),
			model TEXT NOT NULL,
			dim INTEGER NOT NULL,
			vec BLOB NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS link (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_doc_id INTEGER NOT NULL REFERENCES doc(id),
			target_doc_id INTEGER REFERENCES doc(id),
			target_path TEXT NOT NULL,
			target_anchor TEXT NOT NULL DEFAULT '',
			alias TEXT NOT NULL DEFAULT '',
			is_embed INTEGER NOT NULL DEFAULT 0,
			is_wiki INTEGER NOT NULL DEFAULT 0,
			is_external INTEGER NOT NULL DEFAULT 0,
			UNIQUE (source_doc_id, target_path)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_link_target ON link (target_doc_id);`,
		`CREATE TABLE IF NOT EXISTS wiki_link_ref (
			source_doc_id INTEGER NOT NULL REFERENCES doc(id),
			query_key TEXT NOT NULL,
			UNIQUE (source_doc_id, query_key)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_wiki_link_ref_key ON wiki_link_ref (query_key);`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS doc_fts USING fts4(rel_path, content, tokenize=unicode61);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}

// withTx runs fn inside a transaction, committing on success and rolling back
// on any error.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
