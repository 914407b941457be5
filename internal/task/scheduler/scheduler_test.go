package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"dailytales/internal/storage"
	logx "dailytales/pkg/logx"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newStarted(t *testing.T, cfg Config, job Job) *Service {
	t.Helper()
	s := New(cfg, job, logx.Nop())
	s.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s
}

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		h, m, s int
		wantErr bool
	}{
		{in: "09:00", h: 9},
		{in: " 23:59 ", h: 23, m: 59},
		{in: "07:30:15", h: 7, m: 30, s: 15},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "12:00:60", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		h, m, s, err := parseTimeOfDay(tt.in)
		if tt.wantErr {
			require.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		require.Equal(t, []int{tt.h, tt.m, tt.s}, []int{h, m, s}, tt.in)
	}
}

func TestSyncRegistersOnSettingsChange(t *testing.T) {
	s := newStarted(t, Config{Enabled: true, Timezone: "UTC"}, func(context.Context) error { return nil })

	require.NoError(t, s.Sync(storage.Settings{AutoSendEnabled: true, AutoSendTime: "09:00"}))
	snap := s.Snapshot()
	require.True(t, snap.Active)
	require.Equal(t, "0 0 9 * * *", snap.Spec)
	require.Equal(t, 9, s.Next().In(time.UTC).Hour())
	require.Equal(t, 0, s.Next().In(time.UTC).Minute())

	// New time replaces the entry.
	require.NoError(t, s.Sync(storage.Settings{AutoSendEnabled: true, AutoSendTime: "18:45:30"}))
	snap = s.Snapshot()
	require.True(t, snap.Active)
	require.Equal(t, "18:45:30", snap.At)
	next := s.Next().In(time.UTC)
	require.Equal(t, []int{18, 45, 30}, []int{next.Hour(), next.Minute(), next.Second()})

	s.mu.Lock()
	entries := len(s.c.Entries())
	s.mu.Unlock()
	require.Equal(t, 1, entries)

	// Disabling auto send removes it.
	require.NoError(t, s.Sync(storage.Settings{AutoSendEnabled: false, AutoSendTime: "18:45:30"}))
	snap = s.Snapshot()
	require.False(t, snap.Active)
	require.True(t, s.Next().IsZero())
	s.mu.Lock()
	entries = len(s.c.Entries())
	s.mu.Unlock()
	require.Zero(t, entries)
}

func TestSyncDefaultsAndRejectsBadTime(t *testing.T) {
	s := newStarted(t, Config{Enabled: true}, nil)
	require.NoError(t, s.Sync(storage.Settings{AutoSendEnabled: true}))
	require.Equal(t, "09:00:00", s.Snapshot().At)

	require.Error(t, s.Sync(storage.Settings{AutoSendEnabled: true, AutoSendTime: "25:00"}))
	require.Equal(t, "09:00:00", s.Snapshot().At)
}

func TestSyncBeforeStartRegistersOnStart(t *testing.T) {
	s := New(Config{Enabled: true, Timezone: "UTC"}, nil, logx.Nop())
	require.NoError(t, s.Sync(storage.Settings{AutoSendEnabled: true, AutoSendTime: "06:15"}))
	require.False(t, s.Snapshot().Active)
	require.False(t, s.Next().IsZero())

	s.Start(context.Background())
	defer s.Stop(context.Background())
	require.True(t, s.Snapshot().Active)
}

func TestConfigDisabledKeepsDefinition(t *testing.T) {
	s := newStarted(t, Config{Enabled: false, Timezone: "UTC"}, nil)
	require.NoError(t, s.Sync(storage.Settings{AutoSendEnabled: true, AutoSendTime: "06:15"}))
	require.False(t, s.Snapshot().Active)

	s.Apply(Config{Enabled: true, Timezone: "UTC"})
	require.True(t, s.Snapshot().Active)

	s.Apply(Config{Enabled: false, Timezone: "UTC"})
	require.False(t, s.Snapshot().Active)
	require.Equal(t, "06:15:00", s.Snapshot().At)
}

func TestTimezoneChangeRestarts(t *testing.T) {
	s := newStarted(t, Config{Enabled: true, Timezone: "UTC"}, nil)
	require.NoError(t, s.Sync(storage.Settings{AutoSendEnabled: true, AutoSendTime: "09:00"}))

	s.Apply(Config{Enabled: true, Timezone: "Asia/Riyadh"})
	require.Equal(t, "Asia/Riyadh", s.Location().String())
	require.True(t, s.Snapshot().Active)
	next := s.Next()
	require.Equal(t, 9, next.In(s.Location()).Hour())
	require.Equal(t, 6, next.In(time.UTC).Hour())
}

func TestTriggerRecordsRunAndTimeout(t *testing.T) {
	boom := errors.New("boom")
	s := newStarted(t, Config{Enabled: true, Timeout: 20 * time.Millisecond}, func(ctx context.Context) error {
		<-ctx.Done()
		return boom
	})

	ran, err := s.Trigger(context.Background())
	require.True(t, ran)
	require.ErrorIs(t, err, boom)

	snap := s.Snapshot()
	require.EqualValues(t, 1, snap.Runs)
	require.Equal(t, "boom", snap.LastErr)
	require.False(t, snap.LastRun.IsZero())
}

func TestTriggerSkipsOverlap(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	s := newStarted(t, Config{Enabled: true}, func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Trigger(context.Background())
	}()
	<-started

	ran, err := s.Trigger(context.Background())
	require.False(t, ran)
	require.NoError(t, err)

	close(release)
	<-done
	snap := s.Snapshot()
	require.EqualValues(t, 1, snap.Runs)
	require.EqualValues(t, 1, snap.Skipped)
}

func TestTriggerRecoversPanic(t *testing.T) {
	s := newStarted(t, Config{Enabled: true}, func(context.Context) error { panic("bad") })
	ran, err := s.Trigger(context.Background())
	require.True(t, ran)
	require.ErrorContains(t, err, "panic: bad")
}
