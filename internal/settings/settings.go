// Package settings manages the delivery settings record: a redacted view for
// callers, validated partial updates, and a connection test.
package settings

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"dailytales/internal/delivery"
	"dailytales/internal/storage"
	"dailytales/internal/validation"
	logx "dailytales/pkg/logx"
)

const TestMessage = "✅ رسالة اختبار من مُنشئ المحتوى اليومي\n\nتم إعداد الاتصال بنجاح!"

// View is what callers may see. Secrets are reported only as present or absent.
type View struct {
	ChatID           string    `json:"chat_id"`
	AutoSendEnabled  bool      `json:"auto_send_enabled"`
	AutoSendTime     string    `json:"auto_send_time"`
	HasBotToken      bool      `json:"has_bot_token"`
	HasAPIID         bool      `json:"has_api_id"`
	HasAPIHash       bool      `json:"has_api_hash"`
	HasSessionString bool      `json:"has_session_string"`
	Transport        string    `json:"transport"` // session | bot | ""
	UpdatedAt        time.Time `json:"updated_at,omitempty"`
}

func NewView(s storage.Settings) View {
	v := View{
		ChatID:           s.ChatID,
		AutoSendEnabled:  s.AutoSendEnabled,
		AutoSendTime:     s.AutoSendTime,
		HasBotToken:      s.BotToken != "",
		HasAPIID:         s.APIID != "",
		HasAPIHash:       s.APIHash != "",
		HasSessionString: s.SessionString != "",
		UpdatedAt:        s.UpdatedAt,
	}
	switch {
	case s.HasSession():
		v.Transport = "session"
	case s.HasBotToken():
		v.Transport = "bot"
	}
	if v.AutoSendTime == "" {
		v.AutoSendTime = storage.DefaultAutoSendTime
	}
	return v
}

// Clear targets for Patch.Clear.
const (
	ClearBotToken = "bot_token"
	ClearSession  = "session"
)

// Patch is a partial update. Blank secret values leave stored secrets
// untouched; Clear removes them.
type Patch struct {
	ChatID          *string `json:"chat_id,omitempty" validate:"omitempty,max=100"`
	BotToken        *string `json:"bot_token,omitempty" validate:"omitempty,max=200"`
	APIID           *string `json:"api_id,omitempty" validate:"omitempty,digits,max=20"`
	APIHash         *string `json:"api_hash,omitempty" validate:"omitempty,max=100"`
	SessionString   *string `json:"session_string,omitempty" validate:"omitempty,max=5000"`
	AutoSendEnabled *bool   `json:"auto_send_enabled,omitempty"`
	AutoSendTime    *string `json:"auto_send_time,omitempty" validate:"omitempty,timeofday"`
	// Clear lists stored credentials to remove: bot_token, session.
	Clear []string `json:"clear,omitempty" validate:"omitempty,dive,oneof=bot_token session"`
}

func (p Patch) normalized() Patch {
	for _, f := range []**string{&p.ChatID, &p.BotToken, &p.APIID, &p.APIHash, &p.SessionString, &p.AutoSendTime} {
		if *f != nil {
			v := strings.TrimSpace(**f)
			*f = &v
		}
	}
	// A blank write-only field means "keep what is stored".
	for _, f := range []**string{&p.BotToken, &p.APIID, &p.APIHash, &p.SessionString} {
		if *f != nil && **f == "" {
			*f = nil
		}
	}
	if len(p.Clear) > 0 {
		cl := make([]string, 0, len(p.Clear))
		for _, c := range p.Clear {
			cl = append(cl, strings.ToLower(strings.TrimSpace(c)))
		}
		p.Clear = cl
	}
	return p
}


// IsZero reports whether p changes nothing.
func (p Patch) IsZero() bool {
	return p.ChatID == nil && p.BotToken == nil && p.APIID == nil && p.APIHash == nil &&
		p.SessionString == nil && p.AutoSendEnabled == nil && p.AutoSendTime == nil && len(p.Clear) == 0
}

func (p Patch) toStore() storage.SettingsPatch {
	return storage.SettingsPatch{
		ChatID:          p.ChatID,
		BotToken:        p.BotToken,
		APIID:           p.APIID,
		APIHash:         p.APIHash,
		SessionString:   p.SessionString,
		AutoSendEnabled: p.AutoSendEnabled,
		AutoSendTime:    p.AutoSendTime,
		ClearBotToken:   slices.Contains(p.Clear, ClearBotToken),
		ClearSession:    slices.Contains(p.Clear, ClearSession),
	}
}

// Validate checks field formats and lengths.
func (p Patch) Validate() error {
	return validation.Struct(p.normalized())
}

type Options struct {
	// Select picks the transport for Test; nil means delivery.Select with default options.
	Select      func(storage.Settings) (delivery.Transport, error)
	TestTimeout time.Duration
	Log         logx.Logger
}

type Service struct {
	store       storage.SettingsStore
	selectTr    func(storage.Settings) (delivery.Transport, error)
	testTimeout time.Duration
	log         logx.Logger

	mu      sync.Mutex
	onSaved []func(storage.Settings)
}

func New(store storage.SettingsStore, opt Options) *Service {
	s := &Service{store: store, selectTr: opt.Select, testTimeout: opt.TestTimeout, log: opt.Log}
	if s.selectTr == nil {
		s.selectTr = func(st storage.Settings) (delivery.Transport, error) {
			return delivery.Select(st, delivery.Options{})
		}
	}
	if s.testTimeout <= 0 {
		s.testTimeout = 20 * time.Second
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	s.log = s.log.With(logx.String("comp", "settings"))
	return s
}

// OnSaved registers fn to run after every successful save.
func (s *Service) OnSaved(fn func(storage.Settings)) {
	s.mu.Lock()
	s.onSaved = append(s.onSaved, fn)
	s.mu.Unlock()
}

// Get returns the redacted view. An unsaved record yields the defaults.
func (s *Service) Get(ctx context.Context) (View, error) {
	st, err := s.store.LoadSettings(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return NewView(storage.Settings{}), nil
	}
	if err != nil {
		return View{}, err
	}
	return NewView(st), nil
}

// Save validates and applies p. Returns *validation.Error for bad input.
func (s *Service) Save(ctx context.Context, p Patch) (View, error) {
	p = p.normalized()
	if err := validation.Struct(p); err != nil {
		return View{}, err
	}
	st, err := s.store.SaveSettings(ctx, p.toStore())
	if err != nil {
		return View{}, err
	}

	v := NewView(st)
	s.log.Info("settings saved",
		logx.Bool("chat_id_set", v.ChatID != ""),
		logx.Bool("bot_token_set", v.HasBotToken),
		logx.Bool("session_set", v.Transport == "session"),
		logx.Bool("auto_send", v.AutoSendEnabled),
		logx.String("auto_send_time", v.AutoSendTime),
	)

	s.mu.Lock()
	hooks := append([]func(storage.Settings){}, s.onSaved...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn(st)
	}
	return v, nil
}

// Test sends TestMessage using the stored settings with override merged on
// top. Nothing is saved.
func (s *Service) Test(ctx context.Context, override *Patch) (string, error) {
	st, err := s.store.LoadSettings(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}
	if override != nil {
		p := override.normalized()
		if err := validation.Struct(p); err != nil {
			return "", err
		}
		st = st.Apply(p.toStore(), time.Now())
	}

	dest, err := delivery.ParseDestination(st.ChatID)
	if err != nil {
		return "", err
	}
	tr, err := s.selectTr(st)
	if err != nil {
		return "", err
	}

	tctx, cancel := context.WithTimeout(ctx, s.testTimeout)
	defer cancel()
	if err := tr.Send(tctx, dest, TestMessage); err != nil {
		s.log.Warn("connection test failed", logx.String("transport", tr.Name()), logx.Err(err))
		return tr.Name(), err
	}
	s.log.Info("connection test ok", logx.String("transport", tr.Name()))
	return tr.Name(), nil
}
