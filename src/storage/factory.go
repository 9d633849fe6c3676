package storage

import (
	"fmt"

	"stock-chatbot/src/interfaces"
	"stock-chatbot/src/logger"
	"stock-chatbot/src/models"
)

// NewJournal picks the backend named by storage.db_type. The returned journal
// still needs Initialize.
func NewJournal(cfg *models.MConfig, log *logger.Logger) (interfaces.IJournal, error) {
	switch cfg.Storage.DBType {
	case "", "none":
		return NopJournal{}, nil
	case "sqlite":
		return NewAsyncSQLiteDB(cfg, log)
	case "postgres":
		return NewPostgresDB(cfg, log)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Storage.DBType)
	}
}
