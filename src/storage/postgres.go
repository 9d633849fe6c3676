package storage

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"stock-chatbot/src/helpers"
	"stock-chatbot/src/logger"
	"stock-chatbot/src/models"

	_ "github.com/lib/pq"
)

var unsafeIdent = regexp.MustCompile(`[^a-z0-9_]+`)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

// NewPostgresDB keeps its tables in a schema named after the app
func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	name := strings.Trim(unsafeIdent.ReplaceAllString(strings.ToLower(cfg.Name), "_"), "_")
	if name == "" {
		name = "stock_chatbot"
	}

	return &PostgresDB{
		Config: cfg,
		Schema: name,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize(ctx context.Context) error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return helpers.NewDatabaseError("open postgres", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return helpers.NewDatabaseError("ping postgres", err)
	}

	d.DB = db

	// Create Schema
	if _, err := d.DB.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.createTables(ctx); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."deliveries" (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			kind TEXT NOT NULL,
			symbol TEXT,
			text TEXT,
			delivered BOOLEAN NOT NULL,
			created_at BIGINT NOT NULL
		);
	`, d.Schema)
	if _, err := d.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create deliveries: %w", err)
	}

	query = fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_deliveries_user ON "%s"."deliveries" (user_id, id)`, d.Schema)
	if _, err := d.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create deliveries index: %w", err)
	}

	// Create symbols table (directory registry)
	query = fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."symbols" (
			code TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			market TEXT,
			source_name TEXT,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`, d.Schema)
	if _, err := d.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create symbols: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Record(ctx context.Context, entries []models.MJournalEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return helpers.NewDatabaseError("begin", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO "%s"."deliveries" (user_id, kind, symbol, text, delivered, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, d.Schema)
	stmt, err := tx.PrepareContext(ctx, query)
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

func (d *PostgresDB) Recent(ctx context.Context, userID int64, limit int) ([]models.MJournalEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows *sql.Rows
	var err error
	base := fmt.Sprintf(`SELECT id, user_id, kind, symbol, text, delivered, created_at FROM "%s"."deliveries"`, d.Schema)
	if userID != 0 {
		rows, err = d.DB.QueryContext(ctx, base+` WHERE user_id = $1 ORDER BY id DESC LIMIT $2`, userID, limit)
	} else {
		rows, err = d.DB.QueryContext(ctx, base+` ORDER BY id DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, helpers.NewDatabaseError("query deliveries", err)
	}
	return scanEntries(rows)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) CleanupOldData(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention).UnixMilli()

	d.Logger.Debug("Cleaning up deliveries older than %v (created_at < %d)", retention, cutoff)

	res, err := d.DB.ExecContext(ctx, fmt.Sprintf(`DELETE FROM "%s"."deliveries" WHERE created_at < $1`, d.Schema), cutoff)
	if err != nil {
		return 0, helpers.NewDatabaseError("cleanup deliveries", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
