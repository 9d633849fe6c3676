package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stock-chatbot/src/helpers"
	"stock-chatbot/src/logger"
	"stock-chatbot/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type AsyncSQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*AsyncSQLiteDB, error) {
	return &AsyncSQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize(ctx context.Context) error {
	dsn := d.Config.Storage.DBPath
	if dir := filepath.Dir(dsn); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return helpers.NewDatabaseError("create database directory", err)
		}
	}

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return helpers.NewDatabaseError("open sqlite", err)
	}
	// One writer avoids SQLITE_BUSY between sweeps
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return helpers.NewDatabaseError("ping sqlite", err)
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables(ctx)
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) createTables(ctx context.Context) error {
	// SQLite types: INTEGER for int64 and bool, TEXT for string
	query := `
		CREATE TABLE IF NOT EXISTS deliveries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			symbol TEXT,
			text TEXT,
			delivered INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);
	`
	if _, err := d.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create deliveries: %w", err)
	}

	if _, err := d.DB.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_deliveries_user ON deliveries (user_id, id)`); err != nil {
		return fmt.Errorf("failed to create deliveries index: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Record(ctx context.Context, entries []models.MJournalEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return helpers.NewDatabaseError("begin", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO deliveries (user_id, kind, symbol, text, delivered, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return helpers.NewDatabaseError("prepare insert", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.UserID, e.Kind, e.Symbol, e.Text, e.Delivered, stamp(e.CreatedAt)); err != nil {
			return helpers.NewDatabaseError("insert delivery", err)
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Recent(ctx context.Context, userID int64, limit int) ([]models.MJournalEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, user_id, kind, symbol, text, delivered, created_at FROM deliveries`
	args := []any{}
	if userID != 0 {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := d.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, helpers.NewDatabaseError("query deliveries", err)
	}
	return scanEntries(rows)
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) CleanupOldData(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention).UnixMilli()

	d.Logger.Debug("Cleaning up deliveries older than %v (created_at < %d)", retention, cutoff)

	res, err := d.DB.ExecContext(ctx, "DELETE FROM deliveries WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, helpers.NewDatabaseError("cleanup deliveries", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
