package storage

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("storage: not found")
	ErrClosed   = errors.New("storage: closed")
)

// Config configures storage.
type Config struct {
	Driver      string
	Path        string        // sqlite database file, or file-driver prefix
	DSN         string        // postgres connection string
	BusyTimeout time.Duration // sqlite only; 0 means default
	MaxConns    int32         // postgres only; 0 means pgx default
}

type Status string

const (
	StatusSent     Status = "sent"
	StatusAutoSent Status = "auto_sent"
	StatusFailed   Status = "failed"
)

func (s Status) Valid() bool {
	return s == StatusSent || s == StatusAutoSent || s == StatusFailed
}

// Settings is the single delivery-settings record.
type Settings struct {
	ChatID          string    `json:"chat_id"`
	BotToken        string    `json:"bot_token"`
	APIID           string    `json:"api_id"`
	APIHash         string    `json:"api_hash"`
	SessionString   string    `json:"session_string"`
	AutoSendEnabled bool      `json:"auto_send_enabled"`
	AutoSendTime    string    `json:"auto_send_time"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SettingsPatch is a partial update. Nil fields are left untouched.
// Secret fields are write-only: an empty value never clears a stored secret;
// ClearBotToken and ClearSession do. Clears run before new values are set.
type SettingsPatch struct {
	ChatID          *string
	BotToken        *string
	APIID           *string
	APIHash         *string
	SessionString   *string
	AutoSendEnabled *bool
	AutoSendTime    *string

	ClearBotToken bool
	ClearSession  bool // api id, api hash and session string together
}

const DefaultAutoSendTime = "09:00"

// Apply returns s with p merged in.
func (s Settings) Apply(p SettingsPatch, now time.Time) Settings {
	if p.ChatID != nil {
		s.ChatID = strings.TrimSpace(*p.ChatID)
	}
	if p.ClearBotToken {
		s.BotToken = ""
	}
	if p.ClearSession {
		s.APIID, s.APIHash, s.SessionString = "", "", ""
	}
	setSecret(&s.BotToken, p.BotToken)
	setSecret(&s.APIID, p.APIID)
	setSecret(&s.APIHash, p.APIHash)
	setSecret(&s.SessionString, p.SessionString)
	if p.AutoSendEnabled != nil {
		s.AutoSendEnabled = *p.AutoSendEnabled
	}
	if p.AutoSendTime != nil {
		s.AutoSendTime = strings.TrimSpace(*p.AutoSendTime)
	}
	if s.AutoSendTime == "" {
		s.AutoSendTime = DefaultAutoSendTime
	}
	s.UpdatedAt = now.UTC()
	return s
}

func setSecret(dst *string, v *string) {
	if v == nil {
		return
	}
	if t := strings.TrimSpace(*v); t != "" {
		*dst = t
	}
}

// HistoryRecord is one dispatch attempt. Records are immutable once appended.
type HistoryRecord struct {
	ID           string    `json:"id"`
	TitleUsed    string    `json:"title_used"`
	MainCategory string    `json:"main_category"`
	SubCategory  string    `json:"sub_category"`
	VoiceType    string    `json:"voice_type"`
	ScenesCount  int       `json:"scenes_count"`
	Duration     int       `json:"duration"`
	FullMessage  string    `json:"full_message"`
	Status       Status    `json:"status"`
	Transport    string    `json:"transport,omitempty"`
	Error        string    `json:"error,omitempty"`
	SentAt       time.Time `json:"sent_at"`
}

type SettingsStore interface {
	LoadSettings(ctx context.Context) (Settings, error) // ErrNotFound when never saved
	SaveSettings(ctx context.Context, p SettingsPatch) (Settings, error)
}

type HistoryStore interface {
	AppendHistory(ctx context.Context, rec HistoryRecord) error
	// RecentHistory returns up to limit records, newest first.
	RecentHistory(ctx context.Context, limit int, includeFailed bool) ([]HistoryRecord, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
	CountAll(ctx context.Context) (int, error)
}

// Store is the persistence API used by the app.
type Store interface {
	SettingsStore
	HistoryStore
	Ping(ctx context.Context) error
	Close() error
}

// HasSession reports whether a complete user-session credential set is stored.
func (s Settings) HasSession() bool {
	return s.APIID != "" && s.APIHash != "" && s.SessionString != ""
}

func (s Settings) HasBotToken() bool { return s.BotToken != "" }
