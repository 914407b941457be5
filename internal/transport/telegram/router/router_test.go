package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dailytales/internal/delivery"
	"dailytales/internal/dispatch"
	"dailytales/internal/history"
	"dailytales/internal/settings"
	"dailytales/internal/storage"
	kit "dailytales/internal/transport"
	logx "dailytales/pkg/logx"
)

type sent struct {
	to   kit.ChatTarget
	text string
	opt  *kit.SendOptions
}

type fakeAdapter struct {
	mu   sync.Mutex
	msgs []sent
	menu []kit.BotCommand
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                        { return nil }
func (f *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, sent{to: to, text: text, opt: opt})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.msgs)}, nil
}
func (f *fakeAdapter) UpdateMenuCommands(ctx context.Context, cmds []kit.BotCommand) error {
	f.mu.Lock()
	f.menu = cmds
	f.mu.Unlock()
	return nil
}

func (f *fakeAdapter) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.msgs) == 0 {
		return ""
	}
	return f.msgs[len(f.msgs)-1].text
}

type fakeDispatcher struct {
	got dispatch.Request
	res dispatch.Result
	err error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, req dispatch.Request) (dispatch.Result, error) {
	f.got = req
	return f.res, f.err
}
func (f *fakeDispatcher) AutoDispatch(ctx context.Context) (dispatch.Result, error) {
	return f.res, f.err
}

type fakeHistory struct {
	limit int
	recs  []storage.HistoryRecord
}

func (f *fakeHistory) Recent(ctx context.Context, limit int) ([]storage.HistoryRecord, error) {
	f.limit = limit
	return f.recs, nil
}
func (f *fakeHistory) Stats(ctx context.Context, now time.Time) (history.Stats, error) {
	return history.Stats{Total: 12, Today: 3, IsConnected: true}, nil
}

type fakeSettings struct {
	view    settings.View
	testErr error
}

func (f *fakeSettings) Get(ctx context.Context) (settings.View, error) { return f.view, nil }
func (f *fakeSettings) Test(ctx context.Context, override *settings.Patch) (string, error) {
	return "bot", f.testErr
}

const owner = int64(42)

type harness struct {
	m  *Manager
	ad *fakeAdapter
	d  *fakeDispatcher
	h  *fakeHistory
	s  *fakeSettings
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		ad: &fakeAdapter{},
		d:  &fakeDispatcher{},
		h:  &fakeHistory{},
		s:  &fakeSettings{},
	}
	h.m = NewManager(logx.Nop(), h.ad, []int64{owner})
	h.m.SetCommands(context.Background(), Commands(Deps{
		Dispatch: h.d,
		History:  h.h,
		Settings: h.s,
	}))
	return h
}

// run executes one message synchronously, bypassing the worker pool.
func (h *harness) run(t *testing.T, from int64, text string) string {
	t.Helper()
	up := kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: 7, FromID: from, Text: text}}
	req, final, ok := h.m.prepare(context.Background(), up)
	if ok {
		_ = final(context.Background(), req)
	}
	return h.ad.last()
}

func TestTokenizeAndFlags(t *testing.T) {
	t.Parallel()
	parts := tokenizeCommandLine(`/send history "ancient_egypt" --voice=female_arabic --scenes 8 --dry`)
	require.Equal(t, []string{"/send", "history", "ancient_egypt", "--voice=female_arabic", "--scenes", "8", "--dry"}, parts)

	pos, flags, bools := parseFlags(parts[1:])
	require.Equal(t, []string{"history", "ancient_egypt"}, pos)
	require.Equal(t, map[string]string{"voice": "female_arabic", "scenes": "8"}, flags)
	require.True(t, bools["dry"])

	pos, _, _ = parseFlags([]string{"-100123"})
	require.Equal(t, []string{"-100123"}, pos)
}

func TestSanitizeTelegramCommand(t *testing.T) {
	t.Parallel()
	require.Equal(t, "send_now", sanitizeTelegramCommand(" Send-Now "))
	require.Equal(t, "cmd_9lives", sanitizeTelegramCommand("9lives"))
	require.Empty(t, sanitizeTelegramCommand("!!"))
}

func TestMenuRegistered(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.ad.mu.Lock()
	defer h.ad.mu.Unlock()
	require.NotEmpty(t, h.ad.menu)
	require.Equal(t, "send", h.ad.menu[0].Command)
	require.True(t, strings.HasPrefix(h.ad.menu[0].Description, "🔒 "))
	require.Equal(t, "help", h.ad.menu[len(h.ad.menu)-1].Command)
}

func TestUnknownAndUnauthorized(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	require.Equal(t, "unknown command, try /help", h.run(t, owner, "/nope"))
	require.Equal(t, "unauthorized", h.run(t, 1, "/send history battles"))
	require.Empty(t, h.d.got.MainCategory)

	// Public commands work for anyone; plain text is ignored.
	require.Contains(t, h.run(t, 1, "/categories"), "<code>ancient_egypt</code>")
	n := len(h.ad.msgs)
	h.run(t, owner, "hello")
	require.Len(t, h.ad.msgs, n)
}

func TestSendDefaultsAndFlags(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.d.res = dispatch.Result{Message: "/create\n\nعنوان: x", Transport: "bot"}

	out := h.run(t, owner, "/send@dailybot science space --voice female_arabic --scenes=9 --duration=60")
	require.Equal(t, dispatch.Request{MainCategory: "science", SubCategory: "space", VoiceType: "female_arabic", ScenesCount: 9, Duration: 60}, h.d.got)
	require.True(t, strings.HasPrefix(out, "✅ Sent successfully"))
	require.Contains(t, out, "/create")

	h.run(t, owner, "/send battles")
	require.Equal(t, dispatch.Request{MainCategory: "history", SubCategory: "battles", VoiceType: "male_arabic", ScenesCount: 6, Duration: 30}, h.d.got)
}

func TestSendUsageErrors(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	require.Equal(t, "⚠️ unknown subcategory \"zzz\", see /categories", h.run(t, owner, "/send zzz"))
	require.Equal(t, "⚠️ --scenes must be a number", h.run(t, owner, "/send science space --scenes=many"))
	require.True(t, strings.HasPrefix(h.run(t, owner, "/send"), "⚠️ usage: /send"))
}

func TestSendFailureShowsUserMessage(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.d.err = &dispatch.Error{Kind: dispatch.KindDelivery, Reason: string(delivery.ReasonTransportRejected), Err: errors.New("Bad Request: chat not found")}
	out := h.run(t, owner, "/send science space")
	require.Equal(t, "❌ Telegram rejected the message", out)
	require.NotContains(t, out, "chat not found")
}

func TestHistoryStatsSettings(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.h.recs = []storage.HistoryRecord{{TitleUsed: "<b>x</b>", MainCategory: "science", SubCategory: "space", Status: storage.StatusAutoSent, SentAt: time.Now()}}

	out := h.run(t, owner, "/history 500")
	require.Equal(t, maxHistoryRows, h.h.limit)
	require.Contains(t, out, "&lt;b&gt;x&lt;/b&gt;")
	require.Contains(t, out, "🤖")

	require.Equal(t, "📊 total: 12\ntoday: 3\nsession connected: yes", h.run(t, owner, "/stats"))

	h.s.view = settings.View{ChatID: "@chan", Transport: "bot", HasBotToken: true, AutoSendTime: "09:00"}
	out = h.run(t, owner, "/settings")
	require.Contains(t, out, "chat_id: @chan")
	require.Contains(t, out, "bot_token: set")
	require.Contains(t, out, "session_string: missing")
}

func TestConnectionTestCommand(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	require.Equal(t, "✅ test message sent via bot", h.run(t, owner, "/test"))

	h.s.testErr = delivery.ErrMissingCredentials
	require.Equal(t, "❌ Add a bot token or a complete session (api id, api hash, session string)", h.run(t, owner, "/test"))
}

func TestHelp(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	out := h.run(t, 1, "/help")
	require.Contains(t, out, "<code>/send</code>")
	require.Contains(t, out, "🔒")

	out = h.run(t, 1, "/help send")
	require.Contains(t, out, "&lt;main&gt;")
	require.Contains(t, h.run(t, 1, "/start"), "Commands")
}

func TestDispatchLoop(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan kit.Update, 1)
	done := make(chan error, 1)
	go func() { done <- h.m.DispatchLoop(ctx, updates) }()

	updates <- kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: 7, FromID: owner, Text: "/stats"}}
	require.Eventually(t, func() bool { return strings.HasPrefix(h.ad.last(), "📊") }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("dispatch loop did not stop")
	}
}
