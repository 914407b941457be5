package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	logx "dailytales/pkg/logx"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type pgStore struct {
	pool *pgxpool.Pool
	log  logx.Logger
}

var newPool = pgxpool.NewWithConfig

func openPostgres(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("storage.dsn is required for postgres driver")
	}
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	pool, err := newPool(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	st := &pgStore{pool: pool, log: log}
	if err := st.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	log.Debug("postgres store ready", logx.String("host", pcfg.ConnConfig.Host))
	return st, nil
}

func (s *pgStore) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(postgresMigrations, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *pgStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *pgStore) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

const pgSettingsSelect = `SELECT chat_id, bot_token, api_id, api_hash, session_string, auto_send_enabled, auto_send_time, updated_at
	FROM settings WHERE id = 1`

func scanPGSettings(row pgx.Row) (Settings, error) {
	var st Settings
	err := row.Scan(&st.ChatID, &st.BotToken, &st.APIID, &st.APIHash, &st.SessionString,
		&st.AutoSendEnabled, &st.AutoSendTime, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Settings{}, ErrNotFound
	}
	if err != nil {
		return Settings{}, err
	}
	st.UpdatedAt = st.UpdatedAt.UTC()
	return st, nil
}

func (s *pgStore) LoadSettings(ctx context.Context) (Settings, error) {
	return scanPGSettings(s.pool.QueryRow(ctx, pgSettingsSelect))
}

func (s *pgStore) SaveSettings(ctx context.Context, p SettingsPatch) (Settings, error) {
	var next Settings
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		cur, err := scanPGSettings(tx.QueryRow(ctx, pgSettingsSelect+` FOR UPDATE`))
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		next = cur.Apply(p, time.Now())
		_, err = tx.Exec(ctx,
			`INSERT INTO settings(id, chat_id, bot_token, api_id, api_hash, session_string, auto_send_enabled, auto_send_time, updated_at)
			 VALUES(1,$1,$2,$3,$4,$5,$6,$7,$8)
			 ON CONFLICT(id) DO UPDATE SET
			   chat_id=EXCLUDED.chat_id, bot_token=EXCLUDED.bot_token, api_id=EXCLUDED.api_id,
			   api_hash=EXCLUDED.api_hash, session_string=EXCLUDED.session_string,
			   auto_send_enabled=EXCLUDED.auto_send_enabled, auto_send_time=EXCLUDED.auto_send_time,
			   updated_at=EXCLUDED.updated_at`,
			next.ChatID, next.BotToken, next.APIID, next.APIHash, next.SessionString,
			next.AutoSendEnabled, next.AutoSendTime, next.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return Settings{}, err
	}
	return next, nil
}

func (s *pgStore) AppendHistory(ctx context.Context, rec HistoryRecord) error {
	rec, err := prepareRecord(rec)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO messages(id, title_used, main_category, sub_category, voice_type, scenes_count, duration, full_message, status, transport, error, sent_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		rec.ID, rec.TitleUsed, rec.MainCategory, rec.SubCategory, rec.VoiceType, rec.ScenesCount, rec.Duration,
		rec.FullMessage, string(rec.Status), nullStr(rec.Transport), nullStr(rec.Error), rec.SentAt,
	)
	return err
}

func (s *pgStore) RecentHistory(ctx context.Context, limit int, includeFailed bool) ([]HistoryRecord, error) {
	q := `SELECT id::text, title_used, main_category, sub_category, voice_type, scenes_count, duration, full_message, status,
	             COALESCE(transport,''), COALESCE(error,''), sent_at
	      FROM messages`
	if !includeFailed {
		q += ` WHERE status <> 'failed'`
	}
	q += ` ORDER BY sent_at DESC, seq DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, q, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryRecord
	for rows.Next() {
		var (
			r      HistoryRecord
			status string
		)
		if err := rows.Scan(&r.ID, &r.TitleUsed, &r.MainCategory, &r.SubCategory, &r.VoiceType, &r.ScenesCount,
			&r.Duration, &r.FullMessage, &status, &r.Transport, &r.Error, &r.SentAt); err != nil {
			return nil, err
		}
		r.Status = Status(status)
		r.SentAt = r.SentAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *pgStore) CountSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE status <> 'failed' AND sent_at >= $1`, since).Scan(&n)
	return n, err
}

func (s *pgStore) CountAll(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages WHERE status <> 'failed'`).Scan(&n)
	return n, err
}
