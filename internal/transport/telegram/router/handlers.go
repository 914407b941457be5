package router

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"dailytales/internal/catalog"
	"dailytales/internal/dispatch"
	"dailytales/internal/history"
	"dailytales/internal/settings"
	"dailytales/internal/storage"
	"dailytales/internal/task/scheduler"
	logx "dailytales/pkg/logx"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) (dispatch.Result, error)
	AutoDispatch(ctx context.Context) (dispatch.Result, error)
}

type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]storage.HistoryRecord, error)
	Stats(ctx context.Context, now time.Time) (history.Stats, error)
}

type SettingsReader interface {
	Get(ctx context.Context) (settings.View, error)
	Test(ctx context.Context, override *settings.Patch) (string, error)
}

type ScheduleReader interface {
	Snapshot() scheduler.Snapshot
}

type Deps struct {
	Dispatch  Dispatcher
	History   HistoryReader
	Settings  SettingsReader
	Scheduler ScheduleReader // optional
	// Lang returns the reply language (en|ar); read per request so reloads apply.
	Lang func() string
	Now  func() time.Time
}

const (
	defaultHistoryRows = 10
	maxHistoryRows     = 50
)

// Commands builds the operator command set. Everything but /help and
// /categories is owner only.
func Commands(d Deps) []Command {
	if d.Lang == nil {
		d.Lang = func() string { return dispatch.LangEN }
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	h := &handlers{d: d}
	return []Command{
		{
			Name:        "send",
			Description: "Generate and send one /create message",
			Usage:       "/send <main> <sub> [--voice=male_arabic|female_arabic] [--scenes=1..20] [--duration=15|30|60]\n/send <sub>",
			Access:      AccessOwnerOnly,
			Handle:      h.send,
		},
		{
			Name:        "auto",
			Description: "Run an auto dispatch now",
			Access:      AccessOwnerOnly,
			Handle:      h.auto,
		},
		{
			Name:        "history",
			Aliases:     []string{"messages"},
			Description: "Recent dispatches",
			Usage:       "/history [n]",
			Access:      AccessOwnerOnly,
			Timeout:     15 * time.Second,
			Handle:      h.history,
		},
		{
			Name:        "stats",
			Description: "Dispatch counters",
			Access:      AccessOwnerOnly,
			Timeout:     15 * time.Second,
			Handle:      h.stats,
		},
		{
			Name:        "settings",
			Description: "Delivery settings (secrets hidden)",
			Access:      AccessOwnerOnly,
			Timeout:     15 * time.Second,
			Handle:      h.settings,
		},
		{
			Name:        "categories",
			Aliases:     []string{"cats"},
			Description: "Category and subcategory ids",
			Access:      AccessEveryone,
			Handle:      h.categories,
		},
		{
			Name:        "test",
			Description: "Send a test message to the destination",
			Access:      AccessOwnerOnly,
			Timeout:     30 * time.Second,
			Handle:      h.test,
		},
	}
}

type handlers struct{ d Deps }

func (h *handlers) send(ctx context.Context, req *Request) error {
	dr, err := parseSendArgs(req.Args, req.Flags)
	if err != nil {
		return err
	}
	res, err := h.d.Dispatch.Dispatch(ctx, dr)
	return h.replyDispatch(ctx, req, res, err)
}

func (h *handlers) auto(ctx context.Context, req *Request) error {
	res, err := h.d.Dispatch.AutoDispatch(ctx)
	return h.replyDispatch(ctx, req, res, err)
}

func (h *handlers) replyDispatch(ctx context.Context, req *Request, res dispatch.Result, err error) error {
	lang := h.d.Lang()
	if err != nil {
		req.Logger.Warn("dispatch failed", logx.String("kind", string(dispatch.KindOf(err))), logx.Err(err))
		return req.Reply(ctx, "❌ "+dispatch.UserMessage(err, lang))
	}
	var b strings.Builder
	b.WriteString("✅ " + dispatch.SuccessMessage(res, lang) + "\n\n")
	b.WriteString(res.Message)
	fmt.Fprintf(&b, "\n\n(%s)", res.Transport)
	return req.Reply(ctx, b.String())
}

func parseSendArgs(args []string, flags map[string]string) (dispatch.Request, error) {
	r := dispatch.Request{
		VoiceType:   catalog.DefaultVoice,
		ScenesCount: catalog.DefaultScenes,
		Duration:    catalog.DefaultDuration,
	}
	switch len(args) {
	case 1:
		main, ok := catalog.MainOf(args[0])
		if !ok {
			return r, usagef("unknown subcategory %q, see /categories", args[0])
		}
		r.MainCategory, r.SubCategory = main, args[0]
	case 2:
		r.MainCategory, r.SubCategory = args[0], args[1]
	default:
		return r, usagef("usage: /send <main> <sub> [--voice=..] [--scenes=..] [--duration=..]")
	}
	if v, ok := flags["voice"]; ok {
		r.VoiceType = v
	}
	for _, f := range []struct {
		key string
		dst *int
	}{{"scenes", &r.ScenesCount}, {"duration", &r.Duration}} {
		v, ok := flags[f.key]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return r, usagef("--%s must be a number", f.key)
		}
		*f.dst = n
	}
	return r, nil
}

func (h *handlers) history(ctx context.Context, req *Request) error {
	n := defaultHistoryRows
	if len(req.Args) > 0 {
		v, err := strconv.Atoi(req.Args[0])
		if err != nil || v <= 0 {
			return usagef("usage: /history [n]")
		}
		n = min(v, maxHistoryRows)
	}
	recs, err := h.d.History.Recent(ctx, n)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return req.Reply(ctx, "No messages yet.")
	}
	lines := make([]string, 0, len(recs)+1)
	lines = append(lines, fmt.Sprintf("🗂 <b>Last %d</b>", len(recs)))
	for _, r := range recs {
		lines = append(lines, fmt.Sprintf("%s <code>%s</code> %s/%s <b>%s</b>",
			statusIcon(r.Status),
			r.SentAt.Local().Format("01-02 15:04"),
			html.EscapeString(r.MainCategory),
			html.EscapeString(r.SubCategory),
			html.EscapeString(r.TitleUsed),
		))
	}
	return req.ReplyHTML(ctx, strings.Join(lines, "\n"))
}

func statusIcon(s storage.Status) string {
	switch s {
	case storage.StatusSent:
		return "✅"
	case storage.StatusAutoSent:
		return "🤖"
	default:
		return "❌"
	}
}

func (h *handlers) stats(ctx context.Context, req *Request) error {
	st, err := h.d.History.Stats(ctx, h.d.Now())
	if err != nil {
		return err
	}
	conn := "no"
	if st.IsConnected {
		conn = "yes"
	}
	text := fmt.Sprintf("📊 total: %d\ntoday: %d\nsession connected: %s", st.Total, st.Today, conn)
	if h.d.Scheduler != nil {
		if snap := h.d.Scheduler.Snapshot(); snap.Active {
			text += "\nnext auto: " + snap.Next.Format("2006-01-02 15:04:05 MST")
		}
	}
	return req.Reply(ctx, text)
}

func (h *handlers) settings(ctx context.Context, req *Request) error {
	v, err := h.d.Settings.Get(ctx)
	if err != nil {
		return err
	}
	yn := func(b bool) string {
		if b {
			return "set"
		}
		return "missing"
	}
	transport := v.Transport
	if transport == "" {
		transport = "none"
	}
	chat := v.ChatID
	if chat == "" {
		chat = "(not set)"
	}
	lines := []string{
		"⚙️ chat_id: " + chat,
		"transport: " + transport,
		"bot_token: " + yn(v.HasBotToken),
		"api_id: " + yn(v.HasAPIID),
		"api_hash: " + yn(v.HasAPIHash),
		"session_string: " + yn(v.HasSessionString),
		fmt.Sprintf("auto_send: %t at %s", v.AutoSendEnabled, v.AutoSendTime),
	}
	return req.Reply(ctx, strings.Join(lines, "\n"))
}

func (h *handlers) categories(ctx context.Context, req *Request) error {
	var b strings.Builder
	for _, c := range catalog.Categories() {
		fmt.Fprintf(&b, "%s <b>%s</b> <code>%s</code>\n", c.Icon, html.EscapeString(c.LabelEn), c.ID)
		for _, s := range c.Subcategories {
			fmt.Fprintf(&b, "  • <code>%s</code> %s\n", s.ID, html.EscapeString(s.LabelEn))
		}
	}
	return req.ReplyHTML(ctx, strings.TrimRight(b.String(), "\n"))
}

func (h *handlers) test(ctx context.Context, req *Request) error {
	name, err := h.d.Settings.Test(ctx, nil)
	if err != nil {
		req.Logger.Warn("connection test failed", logx.Err(err))
		return req.Reply(ctx, "❌ "+dispatch.UserMessage(asDispatchError(err), h.d.Lang()))
	}
	return req.Reply(ctx, "✅ test message sent via "+name)
}

// asDispatchError gives settings test failures the same user text as dispatches.
func asDispatchError(err error) error {
	return dispatch.Classify(err)
}
