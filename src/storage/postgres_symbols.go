package storage

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"stock-chatbot/src/models"
)

// Info: Separate file for the symbol registry specific to Postgres

var symbolsRefRegex = regexp.MustCompile(`^(\w+)\.(\w+)$`)

// -----------------------------------------------------------------------------

// LoadSymbols reads extra directory entries from ref ("schema.table"), which
// must have name and code columns and may have a market column.
func (d *PostgresDB) LoadSymbols(ctx context.Context, ref string) ([]models.MSymbolConfig, error) {
	matches := symbolsRefRegex.FindStringSubmatch(ref)
	if len(matches) != 3 {
		return nil, fmt.Errorf("invalid symbols reference '%s'", ref)
	}

	query := fmt.Sprintf(`SELECT * FROM "%s"."%s" LIMIT 0`, matches[1], matches[2])
	probe, err := d.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ref, err)
	}
	cols, err := probe.Columns()
	probe.Close()
	if err != nil {
		return nil, err
	}

	marketExpr := `'KOSPI'`
	for _, c := range cols {
		if c == "market" {
			marketExpr = `COALESCE("market", 'KOSPI')`
		}
	}

	query = fmt.Sprintf(`SELECT "name", "code", %s FROM "%s"."%s"`, marketExpr, matches[1], matches[2])
	rows, err := d.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load symbols from %s: %w", ref, err)
	}
	defer rows.Close()

	var symbols []models.MSymbolConfig
	for rows.Next() {
		var s models.MSymbolConfig
		if err := rows.Scan(&s.Name, &s.Code, &s.Market); err != nil {
			return nil, err
		}
		if s.Name != "" && s.Code != "" {
			symbols = append(symbols, s)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	d.Logger.Info("Loaded %d symbols from %s", len(symbols), ref)
	return symbols, nil
}

// -----------------------------------------------------------------------------

// RegisterSymbols upserts the active directory so journal rows can be joined
// to names.
func (d *PostgresDB) RegisterSymbols(ctx context.Context, sourceName string, symbols []models.MSearchResult) error {
	if len(symbols) == 0 {
		return nil
	}

	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO "%s"."symbols" (code, name, market, source_name, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			market = EXCLUDED.market,
			source_name = EXCLUDED.source_name,
			updated_at = EXCLUDED.updated_at
	`, d.Schema)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, s := range symbols {
		if _, err := stmt.ExecContext(ctx, s.Code, s.Name, s.Market, sourceName, now); err != nil {
			return err
		}
	}

	return tx.Commit()
}
