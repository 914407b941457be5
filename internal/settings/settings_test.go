package settings

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"dailytales/internal/delivery"
	"dailytales/internal/storage"
	"dailytales/internal/validation"
	logx "dailytales/pkg/logx"
)

func sp(s string) *string { return &s }
func bp(b bool) *bool     { return &b }

func openStore(t *testing.T) storage.Store {
	t.Helper()
	st, err := storage.Open(context.Background(), storage.Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "s.db")}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

type recTransport struct {
	err  error
	to   delivery.Destination
	text string
	seen storage.Settings
}

func (r *recTransport) Name() string { return "rec" }
func (r *recTransport) Send(ctx context.Context, to delivery.Destination, text string) error {
	r.to, r.text = to, text
	return r.err
}

func TestViewNeverExposesSecrets(t *testing.T) {
	t.Parallel()
	v := NewView(storage.Settings{
		ChatID: "@c", BotToken: "bot-secret", APIID: "123", APIHash: "hash-secret", SessionString: "sess-secret",
	})
	b, err := json.Marshal(v)
	require.NoError(t, err)
	for _, secret := range []string{"bot-secret", "hash-secret", "sess-secret", "123"} {
		require.NotContains(t, string(b), secret)
	}
	require.True(t, v.HasBotToken)
	require.True(t, v.HasSessionString)
	require.Equal(t, "session", v.Transport)
}

func TestSaveKeepsUnspecifiedSecrets(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := New(openStore(t), Options{})

	_, err := svc.Save(ctx, Patch{ChatID: sp("@chan"), BotToken: sp("tok"), APIID: sp("42"), APIHash: sp("h"), SessionString: sp("s")})
	require.NoError(t, err)

	v, err := svc.Save(ctx, Patch{ChatID: sp("-100123"), BotToken: sp(""), AutoSendEnabled: bp(true), AutoSendTime: sp("07:30")})
	require.NoError(t, err)
	require.Equal(t, "-100123", v.ChatID)
	require.True(t, v.HasBotToken)
	require.True(t, v.HasAPIID)
	require.True(t, v.HasAPIHash)
	require.True(t, v.HasSessionString)
	require.True(t, v.AutoSendEnabled)
	require.Equal(t, "07:30", v.AutoSendTime)
}

func TestSaveBlankSecretsKeepStored(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := New(openStore(t), Options{})

	_, err := svc.Save(ctx, Patch{ChatID: sp("@chan"), APIID: sp("42"), APIHash: sp("h"), SessionString: sp("s")})
	require.NoError(t, err)

	// Forms send write-only fields back empty.
	v, err := svc.Save(ctx, Patch{ChatID: sp("@c"), APIID: sp(""), APIHash: sp(" "), SessionString: sp("")})
	require.NoError(t, err)
	require.Equal(t, "@c", v.ChatID)
	require.True(t, v.HasAPIID)
	require.True(t, v.HasAPIHash)
	require.True(t, v.HasSessionString)
	require.Equal(t, "session", v.Transport)
}

func TestSaveClearSwitchesTransport(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openStore(t)
	svc := New(store, Options{})

	v, err := svc.Save(ctx, Patch{ChatID: sp("@chan"), BotToken: sp("tok"), APIID: sp("42"), APIHash: sp("h"), SessionString: sp("s")})
	require.NoError(t, err)
	require.Equal(t, "session", v.Transport)

	v, err = svc.Save(ctx, Patch{Clear: []string{" Session "}})
	require.NoError(t, err)
	require.Equal(t, "bot", v.Transport)
	require.False(t, v.HasAPIID)
	require.False(t, v.HasAPIHash)
	require.False(t, v.HasSessionString)
	require.True(t, v.HasBotToken)

	st, err := store.LoadSettings(ctx)
	require.NoError(t, err)
	tr, err := delivery.Select(st, delivery.Options{})
	require.NoError(t, err)
	require.Equal(t, "bot", tr.Name())

	v, err = svc.Save(ctx, Patch{Clear: []string{ClearBotToken}})
	require.NoError(t, err)
	require.Empty(t, v.Transport)

	st, err = store.LoadSettings(ctx)
	require.NoError(t, err)
	_, err = delivery.Select(st, delivery.Options{})
	require.True(t, errors.Is(err, delivery.ErrMissingCredentials))
}

func TestSaveValidation(t *testing.T) {
	t.Parallel()
	svc := New(openStore(t), Options{})
	long := make([]byte, 101)
	for i := range long {
		long[i] = 'a'
	}
	tests := []struct {
		name  string
		patch Patch
		field string
	}{
		{name: "chat id too long", patch: Patch{ChatID: sp(string(long))}, field: "chat_id"},
		{name: "api id not digits", patch: Patch{APIID: sp("12a")}, field: "api_id"},
		{name: "api id too long", patch: Patch{APIID: sp("123456789012345678901")}, field: "api_id"},
		{name: "bad time", patch: Patch{AutoSendTime: sp("25:00")}, field: "auto_send_time"},
		{name: "unknown clear target", patch: Patch{Clear: []string{"chat_id"}}, field: "clear[0]"},
	}
	for _, tt := range tests {
		_, err := svc.Save(context.Background(), tt.patch)
		var ve *validation.Error
		require.True(t, errors.As(err, &ve), "%s: %v", tt.name, err)
		require.Equal(t, tt.field, ve.Field, tt.name)
	}
}

func TestGetDefaults(t *testing.T) {
	t.Parallel()
	v, err := New(openStore(t), Options{}).Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, storage.DefaultAutoSendTime, v.AutoSendTime)
	require.Empty(t, v.Transport)
}

func TestOnSavedHook(t *testing.T) {
	t.Parallel()
	svc := New(openStore(t), Options{})
	var got []storage.Settings
	svc.OnSaved(func(s storage.Settings) { got = append(got, s) })

	_, err := svc.Save(context.Background(), Patch{AutoSendEnabled: bp(true), AutoSendTime: sp("10:15")})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.True(t, got[0].AutoSendEnabled)
	require.Equal(t, "10:15", got[0].AutoSendTime)

	_, err = svc.Save(context.Background(), Patch{AutoSendTime: sp("nope")})
	require.Error(t, err)
	require.Len(t, got, 1)
}

func TestConnectionTest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := openStore(t)
	tr := &recTransport{}
	svc := New(store, Options{Select: func(s storage.Settings) (delivery.Transport, error) {
		tr.seen = s
		return delivery.Select(s, delivery.Options{NewSessionClient: nil})
	}})

	// Nothing stored and no override: missing credentials.
	_, err := svc.Test(ctx, nil)
	require.True(t, errors.Is(err, delivery.ErrMissingCredentials))

	svc.selectTr = func(s storage.Settings) (delivery.Transport, error) {
		tr.seen = s
		return tr, nil
	}
	name, err := svc.Test(ctx, &Patch{ChatID: sp("123456789"), BotToken: sp("form-token")})
	require.NoError(t, err)
	require.Equal(t, "rec", name)
	require.Equal(t, TestMessage, tr.text)
	require.True(t, tr.to.Numeric)
	require.Equal(t, "form-token", tr.seen.BotToken)

	// The override was not persisted.
	_, err = store.LoadSettings(ctx)
	require.True(t, errors.Is(err, storage.ErrNotFound))

	tr.err = &delivery.Error{Reason: delivery.ReasonTransportRejected, Detail: "chat not found"}
	_, err = svc.Test(ctx, &Patch{ChatID: sp("@x"), BotToken: sp("t")})
	require.Equal(t, delivery.ReasonTransportRejected, delivery.ReasonOf(err))
}
