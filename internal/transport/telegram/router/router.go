// Package router turns operator bot messages into commands: it parses the
// command line, enforces owner-only access and runs handlers on a bounded
// worker pool.
package router

import (
	"context"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"dailytales/internal/runtime/supervisor"
	kit "dailytales/internal/transport"
	logx "dailytales/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Access      Access
	Timeout     time.Duration // optional per-command override
	Handle      HandlerFunc
}

type Request struct {
	Update  kit.Update
	Chat    kit.ChatTarget
	FromID  int64
	Command string
	Args    []string // positionals after the command word

	RawArgs   []string
	Flags     map[string]string
	BoolFlags map[string]bool
	ReqID     string

	Adapter kit.Adapter
	Logger  logx.Logger
}

// Reply sends plain text back to the requesting chat.
func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, &kit.SendOptions{DisablePreview: true})
	return err
}

// ReplyHTML sends text with HTML parse mode. Callers escape dynamic parts.
func (r *Request) ReplyHTML(ctx context.Context, text string) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, &kit.SendOptions{DisablePreview: true, ParseMode: "HTML"})
	return err
}

const defaultCommandTimeout = 90 * time.Second

type Manager struct {
	mu       sync.RWMutex
	commands map[string]*Command // name -> command
	alias    map[string]*Command
	order    []string
	owners   []int64

	log     logx.Logger
	adapter kit.Adapter

	jobs chan func()
}

func NewManager(log logx.Logger, adapter kit.Adapter, owners []int64) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{
		commands: map[string]*Command{},
		alias:    map[string]*Command{},
		owners:   append([]int64(nil), owners...),
		log:      log.With(logx.String("comp", "telegram.router")),
		adapter:  adapter,
		jobs:     make(chan func(), 64),
	}
}

// SetOwners replaces the owner list. Safe during hot reload.
func (m *Manager) SetOwners(owners []int64) {
	cp := append([]int64(nil), owners...)
	m.mu.Lock()
	m.owners = cp
	m.mu.Unlock()
}

func (m *Manager) ownersSnapshot() []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int64(nil), m.owners...)
}

// SetCommands installs the registry. /help is always added.
func (m *Manager) SetCommands(ctx context.Context, cmds []Command) {
	cmds = append(cmds, Command{
		Name:        "help",
		Aliases:     []string{"start", "h"},
		Description: "Show the command list",
		Usage:       "/help [command]",
		Access:      AccessEveryone,
		Handle: func(ctx context.Context, req *Request) error {
			return req.ReplyHTML(ctx, m.helpText(req.Args))
		},
	})

	byName := map[string]*Command{}
	alias := map[string]*Command{}
	order := make([]string, 0, len(cmds))
	for i := range cmds {
		c := cmds[i]
		name := sanitizeTelegramCommand(c.Name)
		if name == "" || c.Handle == nil {
			continue
		}
		c.Name = name
		if _, dup := byName[name]; !dup {
			order = append(order, name)
		}
		byName[name] = &c
		for _, a := range c.Aliases {
			if a = sanitizeTelegramCommand(a); a != "" {
				alias[a] = &c
			}
		}
	}

	m.mu.Lock()
	m.commands = byName
	m.alias = alias
	m.order = order
	m.mu.Unlock()

	if up, ok := m.adapter.(kit.CommandMenuUpdater); ok {
		mctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := up.UpdateMenuCommands(mctx, buildMenu(m.list())); err != nil {
			m.log.Warn("menu update failed", logx.Err(err))
		}
	}
}

func (m *Manager) list() []Command {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Command, 0, len(m.order))
	for _, n := range m.order {
		out = append(out, *m.commands[n])
	}
	return out
}

func (m *Manager) lookup(word string) (*Command, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.commands[word]; ok {
		return c, true
	}
	c, ok := m.alias[word]
	return c, ok
}

// DispatchLoop consumes updates until ctx is done or updates is closed.
func (m *Manager) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}
	if workers > 8 {
		workers = 8
	}

	sup := supervisor.New(ctx, supervisor.WithLogger(m.log))
	for i := 0; i < workers; i++ {
		idx := i
		sup.GoRestart("command.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job := <-m.jobs:
					job()
				}
			}
		}, supervisor.WithRestartBackoff(200*time.Millisecond, 5*time.Second))
	}
	m.log.Info("command dispatcher started", logx.Int("workers", workers))

	defer func() {
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Stop(wctx)
		cancel()
		m.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			m.route(ctx, up)
		}
	}
}

func (m *Manager) route(ctx context.Context, up kit.Update) {
	if up.Kind != kit.UpdateMessage || up.Message == nil {
		return
	}
	req, final, ok := m.prepare(ctx, up)
	if !ok {
		return
	}
	select {
	case m.jobs <- func() { _ = final(ctx, req) }:
	default:
		_ = req.Reply(ctx, "busy, try again")
	}
}

// prepare parses the message and applies access control. It replies
// directly for unknown or unauthorized commands and reports false.
func (m *Manager) prepare(ctx context.Context, up kit.Update) (*Request, HandlerFunc, bool) {
	msg := up.Message
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return nil, nil, false
	}
	parts := tokenizeCommandLine(text)
	if len(parts) == 0 {
		return nil, nil, false
	}
	word := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	chat := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}

	cmd, ok := m.lookup(word)
	if !ok {
		_, _ = m.adapter.SendText(ctx, chat, "unknown command, try /help", nil)
		return nil, nil, false
	}
	if cmd.Access == AccessOwnerOnly && !isOwner(msg.FromID, m.ownersSnapshot()) {
		_, _ = m.adapter.SendText(ctx, chat, "unauthorized", nil)
		return nil, nil, false
	}

	raw := parts[1:]
	pos, flags, bools := parseFlags(raw)
	rid := newReqID()
	req := &Request{
		Update:    up,
		Chat:      chat,
		FromID:    msg.FromID,
		Command:   cmd.Name,
		Args:      pos,
		RawArgs:   raw,
		Flags:     flags,
		BoolFlags: bools,
		ReqID:     rid,
		Adapter:   m.adapter,
		Logger: m.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", cmd.Name),
		),
	}
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	final := Chain(cmd.Handle,
		MWPanicRecover(m.log),
		MWRequestLog(m.log),
		MWReplyError(),
		MWTimeout(timeout),
	)
	return req, final, true
}

func isOwner(id int64, owners []int64) bool {
	for _, o := range owners {
		if o == id {
			return true
		}
	}
	return false
}
