package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "dailytales/pkg/logx"
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer keeps the settings upsert serialized.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	_, _ = db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	if path != ":memory:" {
		_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	}
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if _, err := db.ExecContext(ctx, sqliteMigrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	log.Debug("sqlite store ready", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const sqliteSettingsCols = `chat_id, bot_token, api_id, api_hash, session_string, auto_send_enabled, auto_send_time, updated_at`

func (s *sqliteStore) LoadSettings(ctx context.Context) (Settings, error) {
	return scanSQLiteSettings(s.db.QueryRowContext(ctx, `SELECT `+sqliteSettingsCols+` FROM settings WHERE id = 1`))
}

func scanSQLiteSettings(row *sql.Row) (Settings, error) {
	var (
		st      Settings
		enabled int
		updated int64
	)
	err := row.Scan(&st.ChatID, &st.BotToken, &st.APIID, &st.APIHash, &st.SessionString, &enabled, &st.AutoSendTime, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Settings{}, ErrNotFound
	}
	if err != nil {
		return Settings{}, err
	}
	st.AutoSendEnabled = enabled != 0
	st.UpdatedAt = time.UnixMilli(updated).UTC()
	return st, nil
}

func (s *sqliteStore) SaveSettings(ctx context.Context, p SettingsPatch) (Settings, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Settings{}, err
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := scanSQLiteSettings(tx.QueryRowContext(ctx, `SELECT `+sqliteSettingsCols+` FROM settings WHERE id = 1`))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Settings{}, err
	}
	next := cur.Apply(p, time.Now())

	_, err = tx.ExecContext(ctx,
		`INSERT INTO settings(id, `+sqliteSettingsCols+`) VALUES(1,?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   chat_id=excluded.chat_id, bot_token=excluded.bot_token, api_id=excluded.api_id,
		   api_hash=excluded.api_hash, session_string=excluded.session_string,
		   auto_send_enabled=excluded.auto_send_enabled, auto_send_time=excluded.auto_send_time,
		   updated_at=excluded.updated_at`,
		next.ChatID, next.BotToken, next.APIID, next.APIHash, next.SessionString,
		boolInt(next.AutoSendEnabled), next.AutoSendTime, next.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return Settings{}, err
	}
	if err := tx.Commit(); err != nil {
		return Settings{}, err
	}
	return next, nil
}

func (s *sqliteStore) AppendHistory(ctx context.Context, rec HistoryRecord) error {
	rec, err := prepareRecord(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages(id, title_used, main_category, sub_category, voice_type, scenes_count, duration, full_message, status, transport, error, sent_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.TitleUsed, rec.MainCategory, rec.SubCategory, rec.VoiceType, rec.ScenesCount, rec.Duration,
		rec.FullMessage, string(rec.Status), nullStr(rec.Transport), nullStr(rec.Error), rec.SentAt.UnixMilli(),
	)
	return err
}

func (s *sqliteStore) RecentHistory(ctx context.Context, limit int, includeFailed bool) ([]HistoryRecord, error) {
	q := `SELECT id, title_used, main_category, sub_category, voice_type, scenes_count, duration, full_message, status,
	             COALESCE(transport,''), COALESCE(error,''), sent_at
	      FROM messages`
	if !includeFailed {
		q += ` WHERE status <> 'failed'`
	}
	q += ` ORDER BY sent_at DESC, rowid DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, q, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryRecord
	for rows.Next() {
		var (
			r      HistoryRecord
			status string
			ms     int64
		)
		if err := rows.Scan(&r.ID, &r.TitleUsed, &r.MainCategory, &r.SubCategory, &r.VoiceType, &r.ScenesCount,
			&r.Duration, &r.FullMessage, &status, &r.Transport, &r.Error, &ms); err != nil {
			return nil, err
		}
		r.Status = Status(status)
		r.SentAt = time.UnixMilli(ms).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) CountSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE status <> 'failed' AND sent_at >= ?`, since.UnixMilli()).Scan(&n)
	return n, err
}

func (s *sqliteStore) CountAll(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE status <> 'failed'`).Scan(&n)
	return n, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
