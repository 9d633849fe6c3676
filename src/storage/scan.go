package storage

import (
	"database/sql"
	"time"

	"stock-chatbot/src/helpers"
	"stock-chatbot/src/models"
)

// stamp stores times as unix milliseconds; a zero time means now
func stamp(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().UnixMilli()
}

// -----------------------------------------------------------------------------

func scanEntries(rows *sql.Rows) ([]models.MJournalEntry, error) {
	defer rows.Close()

	var out []models.MJournalEntry
	for rows.Next() {
		var e models.MJournalEntry
		var symbol, text sql.NullString
		var created int64
		if err := rows.Scan(&e.ID, &e.UserID, &e.Kind, &symbol, &text, &e.Delivered, &created); err != nil {
			return nil, helpers.NewDatabaseError("scan delivery", err)
		}
		e.Symbol = symbol.String
		e.Text = text.String
		e.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, helpers.NewDatabaseError("iterate deliveries", err)
	}
	return out, nil
}
