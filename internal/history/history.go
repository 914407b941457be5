// Package history reads the dispatch history: recent titles for duplicate
// avoidance, listings, and dashboard counters.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dailytales/internal/storage"
)

var ErrStorageUnavailable = errors.New("history: storage unavailable")

const (
	DefaultWindow = 50
	MaxWindow     = 500
)

// ClampWindow bounds a configured dedup window to [1, MaxWindow]; zero or
// negative means DefaultWindow.
func ClampWindow(n int) int {
	switch {
	case n <= 0:
		return DefaultWindow
	case n > MaxWindow:
		return MaxWindow
	default:
		return n
	}
}

type Query struct {
	records  storage.HistoryStore
	settings storage.SettingsStore
	loc      *time.Location
}

// New builds a Query. loc decides where "today" starts; nil means time.Local.
func New(records storage.HistoryStore, settings storage.SettingsStore, loc *time.Location) *Query {
	if loc == nil {
		loc = time.Local
	}
	return &Query{records: records, settings: settings, loc: loc}
}

// RecentTitles returns titles of successful dispatches, newest first.
func (q *Query) RecentTitles(ctx context.Context, limit int) ([]string, error) {
	recs, err := q.records.RecentHistory(ctx, ClampWindow(limit), false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		if r.TitleUsed != "" {
			out = append(out, r.TitleUsed)
		}
	}
	return out, nil
}

// Recent lists history records newest first. Failed records are included.
func (q *Query) Recent(ctx context.Context, limit int) ([]storage.HistoryRecord, error) {
	recs, err := q.records.RecentHistory(ctx, ClampWindow(limit), true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return recs, nil
}

type Stats struct {
	Total       int  `json:"total"`
	Today       int  `json:"today"`
	IsConnected bool `json:"isConnected"`
}

func (q *Query) Stats(ctx context.Context, now time.Time) (Stats, error) {
	var st Stats
	total, err := q.records.CountAll(ctx)
	if err != nil {
		return st, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	today, err := q.records.CountSince(ctx, StartOfDay(now, q.loc))
	if err != nil {
		return st, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	st.Total, st.Today = total, today

	if q.settings != nil {
		s, err := q.settings.LoadSettings(ctx)
		switch {
		case err == nil:
			st.IsConnected = s.HasSession()
		case errors.Is(err, storage.ErrNotFound):
		default:
			return st, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
	}
	return st, nil
}

// StartOfDay returns local midnight of t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
