package storage

import (
	"context"
	"time"

	"stock-chatbot/src/models"
)

// NopJournal discards everything, used with db_type none
type NopJournal struct{}

func (NopJournal) Initialize(context.Context) error { return nil }

func (NopJournal) Record(context.Context, []models.MJournalEntry) error { return nil }

func (NopJournal) Recent(context.Context, int64, int) ([]models.MJournalEntry, error) {
	return nil, nil
}

func (NopJournal) CleanupOldData(context.Context, time.Duration) (int64, error) { return 0, nil }

func (NopJournal) Close() error { return nil }
