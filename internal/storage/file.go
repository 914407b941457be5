package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	logx "dailytales/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.settings.json  (snapshot, replaced atomically)
//   - <prefix>.history.jsonl  (append-only JSON Lines)
//
// History is loaded into memory on open.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	settingsPath string
	settings     *Settings

	historyFile *os.File
	history     []HistoryRecord
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	st := &fileStore{log: log, settingsPath: prefix + ".settings.json"}

	if b, err := os.ReadFile(st.settingsPath); err == nil {
		var s Settings
		if err := json.Unmarshal(b, &s); err != nil {
			return nil, errors.New("settings snapshot is corrupt: " + err.Error())
		}
		st.settings = &s
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	historyPath := prefix + ".history.jsonl"
	if err := replayHistory(historyPath, &st.history, log); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	hf, err := os.OpenFile(historyPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	st.historyFile = hf
	return st, nil
}

func replayHistory(path string, out *[]HistoryRecord, log logx.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for s.Scan() {
		var r HistoryRecord
		if err := json.Unmarshal(s.Bytes(), &r); err != nil {
			log.Warn("skipping corrupt history line", logx.Err(err))
			continue
		}
		*out = append(*out, r)
	}
	return s.Err()
}

func (s *fileStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.historyFile == nil {
		return ErrClosed
	}
	return nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.historyFile == nil {
		return nil
	}
	err := s.historyFile.Close()
	s.historyFile = nil
	return err
}

func (s *fileStore) LoadSettings(ctx context.Context) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.historyFile == nil {
		return Settings{}, ErrClosed
	}
	if s.settings == nil {
		return Settings{}, ErrNotFound
	}
	return *s.settings, nil
}

func (s *fileStore) SaveSettings(ctx context.Context, p SettingsPatch) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.historyFile == nil {
		return Settings{}, ErrClosed
	}
	var cur Settings
	if s.settings != nil {
		cur = *s.settings
	}
	next := cur.Apply(p, time.Now())
	if err := writeJSONAtomic(s.settingsPath, next); err != nil {
		return Settings{}, err
	}
	s.settings = &next
	return next, nil
}

func writeJSONAtomic(path string, v any) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(v); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *fileStore) AppendHistory(ctx context.Context, rec HistoryRecord) error {
	rec, err := prepareRecord(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.historyFile == nil {
		return ErrClosed
	}
	if err := json.NewEncoder(s.historyFile).Encode(rec); err != nil {
		return err
	}
	s.history = append(s.history, rec)
	return nil
}

func (s *fileStore) RecentHistory(ctx context.Context, limit int, includeFailed bool) ([]HistoryRecord, error) {
	limit = clampLimit(limit)
	s.mu.Lock()
	out := make([]HistoryRecord, 0, min(limit, len(s.history)))
	// Walk newest-appended first; the stable sort below only reorders on clock skew.
	for i := len(s.history) - 1; i >= 0; i-- {
		r := s.history[i]
		if !includeFailed && r.Status == StatusFailed {
			continue
		}
		out = append(out, r)
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fileStore) CountSince(ctx context.Context, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.history {
		if r.Status != StatusFailed && !r.SentAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *fileStore) CountAll(ctx context.Context) (int, error) {
	return s.CountSince(ctx, time.Time{})
}
