package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	logx "dailytales/pkg/logx"
)

const defaultSQLitePath = "./data/dailytales.db"

// Open initializes the configured store. An empty driver selects sqlite.
func Open(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "storage"), logx.String("driver", driver))

	switch driver {
	case "", "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Path) == "" {
			cfg.Path = defaultSQLitePath
		}
		return openSQLite(ctx, cfg, log)
	case "postgres", "postgresql", "pg":
		return openPostgres(ctx, cfg, log)
	case "file":
		return openFile(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

// prepareRecord fills id/time defaults and checks the status.
func prepareRecord(rec HistoryRecord) (HistoryRecord, error) {
	if !rec.Status.Valid() {
		return rec, errors.New("storage: invalid history status " + string(rec.Status))
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.SentAt.IsZero() {
		rec.SentAt = time.Now()
	}
	rec.SentAt = rec.SentAt.UTC()
	return rec, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}
