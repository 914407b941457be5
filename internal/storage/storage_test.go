package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	logx "dailytales/pkg/logx"
)

func openDrivers(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()
	out := map[string]Store{}
	for _, driver := range []string{"sqlite", "file"} {
		st, err := Open(ctx, Config{Driver: driver, Path: filepath.Join(t.TempDir(), "dt.db")}, logx.Nop())
		require.NoError(t, err, driver)
		t.Cleanup(func() { _ = st.Close() })
		out[driver] = st
	}
	return out
}

func strp(s string) *string { return &s }
func boolp(b bool) *bool    { return &b }

func TestSettingsSingleRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for driver, st := range openDrivers(t) {
		_, err := st.LoadSettings(ctx)
		require.True(t, errors.Is(err, ErrNotFound), "%s: %v", driver, err)

		_, err = st.SaveSettings(ctx, SettingsPatch{ChatID: strp("@first"), BotToken: strp("tok-1")})
		require.NoError(t, err, driver)
		saved, err := st.SaveSettings(ctx, SettingsPatch{ChatID: strp("@second"), AutoSendEnabled: boolp(true)})
		require.NoError(t, err, driver)
		require.Equal(t, "@second", saved.ChatID)

		got, err := st.LoadSettings(ctx)
		require.NoError(t, err, driver)
		require.Equal(t, "@second", got.ChatID, driver)
		require.Equal(t, "tok-1", got.BotToken, driver)
		require.True(t, got.AutoSendEnabled, driver)
		require.Equal(t, DefaultAutoSendTime, got.AutoSendTime, driver)
	}
}

func TestSettingsSecretsNotClearedByEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for driver, st := range openDrivers(t) {
		_, err := st.SaveSettings(ctx, SettingsPatch{APIID: strp("12345"), APIHash: strp("hash"), SessionString: strp("sess")})
		require.NoError(t, err, driver)
		_, err = st.SaveSettings(ctx, SettingsPatch{APIID: strp(""), APIHash: strp("  "), SessionString: nil})
		require.NoError(t, err, driver)
		got, err := st.LoadSettings(ctx)
		require.NoError(t, err, driver)
		require.Equal(t, "12345", got.APIID, driver)
		require.Equal(t, "hash", got.APIHash, driver)
		require.Equal(t, "sess", got.SessionString, driver)
	}
}

func TestSettingsClearSecrets(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for driver, st := range openDrivers(t) {
		_, err := st.SaveSettings(ctx, SettingsPatch{BotToken: strp("tok"), APIID: strp("12345"), APIHash: strp("hash"), SessionString: strp("sess")})
		require.NoError(t, err, driver)

		got, err := st.SaveSettings(ctx, SettingsPatch{ClearSession: true})
		require.NoError(t, err, driver)
		require.False(t, got.HasSession(), driver)
		require.Empty(t, got.APIID, driver)
		require.Equal(t, "tok", got.BotToken, driver)

		// A new value in the same patch wins over the clear.
		_, err = st.SaveSettings(ctx, SettingsPatch{ClearBotToken: true, BotToken: strp("tok-2")})
		require.NoError(t, err, driver)
		got, err = st.LoadSettings(ctx)
		require.NoError(t, err, driver)
		require.Equal(t, "tok-2", got.BotToken, driver)
		require.False(t, got.HasSession(), driver)
	}
}

func TestHistoryOrderingAndCounts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for driver, st := range openDrivers(t) {
		recs := []HistoryRecord{
			{TitleUsed: "one", VoiceType: "male_arabic", ScenesCount: 3, Duration: 15, FullMessage: "m1", Status: StatusSent, SentAt: base},
			{TitleUsed: "two", VoiceType: "male_arabic", ScenesCount: 3, Duration: 15, FullMessage: "m2", Status: StatusAutoSent, SentAt: base.Add(time.Hour)},
			{TitleUsed: "bad", VoiceType: "male_arabic", ScenesCount: 3, Duration: 15, FullMessage: "m3", Status: StatusFailed, SentAt: base.Add(2 * time.Hour)},
			{TitleUsed: "three", VoiceType: "male_arabic", ScenesCount: 3, Duration: 15, FullMessage: "m4", Status: StatusSent, SentAt: base.Add(3 * time.Hour)},
		}
		for _, r := range recs {
			require.NoError(t, st.AppendHistory(ctx, r), driver)
		}

		got, err := st.RecentHistory(ctx, 2, false)
		require.NoError(t, err, driver)
		require.Len(t, got, 2, driver)
		require.Equal(t, "three", got[0].TitleUsed, driver)
		require.Equal(t, "two", got[1].TitleUsed, driver)
		require.NotEmpty(t, got[0].ID, driver)

		all, err := st.RecentHistory(ctx, 10, true)
		require.NoError(t, err, driver)
		require.Len(t, all, 4, driver)
		require.Equal(t, StatusFailed, all[1].Status, driver)

		total, err := st.CountAll(ctx)
		require.NoError(t, err, driver)
		require.Equal(t, 3, total, driver)

		since, err := st.CountSince(ctx, base.Add(30*time.Minute))
		require.NoError(t, err, driver)
		require.Equal(t, 2, since, driver)
	}
}

func TestAppendHistoryRejectsUnknownStatus(t *testing.T) {
	t.Parallel()
	for driver, st := range openDrivers(t) {
		err := st.AppendHistory(context.Background(), HistoryRecord{TitleUsed: "x", Status: "queued"})
		require.Error(t, err, driver)
	}
}

func TestFileStoreReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dt.db")
	st, err := Open(ctx, Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	_, err = st.SaveSettings(ctx, SettingsPatch{ChatID: strp("-1001")})
	require.NoError(t, err)
	require.NoError(t, st.AppendHistory(ctx, HistoryRecord{TitleUsed: "kept", Status: StatusSent}))
	require.NoError(t, st.Close())

	st, err = Open(ctx, Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()
	s, err := st.LoadSettings(ctx)
	require.NoError(t, err)
	require.Equal(t, "-1001", s.ChatID)
	recs, err := st.RecentHistory(ctx, 5, false)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "kept", recs[0].TitleUsed)
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	_, err := Open(context.Background(), Config{Driver: "mongo"}, logx.Nop())
	require.Error(t, err)
	_, err = Open(context.Background(), Config{Driver: "postgres"}, logx.Nop())
	require.Error(t, err)
}
