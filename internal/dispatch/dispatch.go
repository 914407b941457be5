// Package dispatch runs one end-to-end dispatch: validate the request, load
// delivery settings, generate a title and description, format the /create
// message, deliver it and record it in the history.
package dispatch

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"dailytales/internal/catalog"
	"dailytales/internal/delivery"
	"dailytales/internal/format"
	"dailytales/internal/generate"
	"dailytales/internal/history"
	"dailytales/internal/metrics"
	"dailytales/internal/storage"
	"dailytales/internal/validation"
	logx "dailytales/pkg/logx"
)

type Request struct {
	MainCategory string `json:"mainCategory" validate:"required"`
	SubCategory  string `json:"subCategory" validate:"required"`
	VoiceType    string `json:"voiceType" validate:"voice"`
	ScenesCount  int    `json:"scenesCount" validate:"min=1,max=20"`
	Duration     int    `json:"duration" validate:"duration"`
}

// WarningPersistence means the message was delivered but not recorded.
const WarningPersistence = "persistence_warning"

type Result struct {
	RecordID    string  `json:"id,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Message     string  `json:"message"`
	Transport   string  `json:"transport"`
	Request     Request `json:"request"`
	Warning     string  `json:"warning,omitempty"`
}

type Trigger string

const (
	TriggerManual Trigger = "manual"
	TriggerAuto   Trigger = "auto"
)

type TitleSource interface {
	RecentTitles(ctx context.Context, limit int) ([]string, error)
}

type ContentGenerator interface {
	Generate(ctx context.Context, mainLabel, subLabel string, avoid []string) generate.Content
}

type TransportSelector func(storage.Settings) (delivery.Transport, error)

type Config struct {
	DedupWindow     int
	RecordFailures  bool
	DeliveryTimeout time.Duration
}

const DefaultDeliveryTimeout = 20 * time.Second

type Deps struct {
	Settings  storage.SettingsStore
	History   storage.HistoryStore
	Titles    TitleSource
	Generator ContentGenerator
	// Select picks the transport; nil means delivery.Select with default options.
	Select TransportSelector
	Log    logx.Logger
	Now    func() time.Time
	Rand   catalog.Rand
}

type Service struct {
	settings storage.SettingsStore
	history  storage.HistoryStore
	titles   TitleSource
	gen      ContentGenerator
	selectTr TransportSelector
	log      logx.Logger
	now      func() time.Time

	randMu sync.Mutex
	rand   catalog.Rand

	cfgMu sync.RWMutex
	cfg   Config
}

func New(d Deps, cfg Config) *Service {
	s := &Service{
		settings: d.Settings,
		history:  d.History,
		titles:   d.Titles,
		gen:      d.Generator,
		selectTr: d.Select,
		log:      d.Log,
		now:      d.Now,
		rand:     d.Rand,
	}
	if s.selectTr == nil {
		s.selectTr = func(st storage.Settings) (delivery.Transport, error) {
			return delivery.Select(st, delivery.Options{})
		}
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	s.log = s.log.With(logx.String("comp", "dispatch"))
	if s.now == nil {
		s.now = time.Now
	}
	if s.rand == nil {
		s.rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if s.titles == nil && d.History != nil {
		s.titles = history.New(d.History, d.Settings, nil)
	}
	s.SetConfig(cfg)
	return s
}

// SetConfig swaps the tunables; safe while dispatches are running.
func (s *Service) SetConfig(cfg Config) {
	cfg.DedupWindow = history.ClampWindow(cfg.DedupWindow)
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = DefaultDeliveryTimeout
	}
	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()
}

func (s *Service) config() Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// Dispatch runs an operator-requested dispatch. Records are written with status sent.
func (s *Service) Dispatch(ctx context.Context, req Request) (Result, error) {
	start := s.now()
	if err := validate(req); err != nil {
		s.observe(TriggerManual, start, err)
		return Result{}, err
	}
	st, err := s.loadSettings(ctx)
	if err != nil {
		s.observe(TriggerManual, start, err)
		return Result{}, err
	}
	res, err := s.run(ctx, req, st, storage.StatusSent)
	s.observe(TriggerManual, start, err)
	return res, err
}

// AutoDispatch picks a random category pair, voice, scene count and
// duration and dispatches with status auto_sent. It refuses to run while
// auto send is disabled in the settings.
func (s *Service) AutoDispatch(ctx context.Context) (Result, error) {
	start := s.now()
	st, err := s.loadSettings(ctx)
	if err == nil && !st.AutoSendEnabled {
		err = &Error{Kind: KindConfiguration, Stage: StageSettingsLoaded, Err: ErrAutoDisabled}
	}
	if err != nil {
		s.observe(TriggerAuto, start, err)
		return Result{}, err
	}

	s.randMu.Lock()
	p := catalog.Random(s.rand)
	s.randMu.Unlock()

	req := Request{
		MainCategory: p.MainCategory,
		SubCategory:  p.SubCategory,
		VoiceType:    p.VoiceType,
		ScenesCount:  p.ScenesCount,
		Duration:     p.Duration,
	}
	res, err := s.run(ctx, req, st, storage.StatusAutoSent)
	s.observe(TriggerAuto, start, err)
	return res, err
}

func validate(req Request) error {
	if err := validation.Struct(req); err != nil {
		var ve *validation.Error
		if errors.As(err, &ve) {
			return &Error{Kind: KindValidation, Stage: StageValidating, Reason: ve.Message, Field: ve.Field}
		}
		return &Error{Kind: KindValidation, Stage: StageValidating, Reason: err.Error()}
	}
	if !catalog.ValidPair(req.MainCategory, req.SubCategory) {
		return &Error{Kind: KindValidation, Stage: StageValidating, Field: "subCategory",
			Reason: "unknown category " + req.MainCategory + "/" + req.SubCategory}
	}
	return nil
}

func (s *Service) loadSettings(ctx context.Context) (storage.Settings, error) {
	st, err := s.settings.LoadSettings(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return st, &Error{Kind: KindConfiguration, Stage: StageSettingsLoaded, Err: ErrNoSettings}
	case err != nil:
		s.log.Error("settings load failed", logx.Err(err))
		return st, &Error{Kind: KindInternal, Stage: StageSettingsLoaded, Err: err}
	}
	return st, nil
}

func (s *Service) run(ctx context.Context, req Request, st storage.Settings, status storage.Status) (Result, error) {
	cfg := s.config()
	log := s.log.With(
		logx.String("main", req.MainCategory),
		logx.String("sub", req.SubCategory),
		logx.String("status", string(status)),
	)

	dest, err := delivery.ParseDestination(st.ChatID)
	if err != nil {
		return Result{}, &Error{Kind: KindConfiguration, Stage: StageSettingsLoaded, Err: ErrNoChatID}
	}
	tr, err := s.selectTr(st)
	if err != nil {
		return Result{}, &Error{Kind: KindConfiguration, Stage: StageSettingsLoaded, Err: err}
	}

	mainLabel, subLabel, err := catalog.ResolveLabels(req.MainCategory, req.SubCategory)
	if err != nil {
		log.Error("label lookup failed after validation", logx.Err(err))
		return Result{}, &Error{Kind: KindInternal, Stage: StageGenerating, Err: err}
	}

	var avoid []string
	if s.titles != nil {
		avoid, err = s.titles.RecentTitles(ctx, cfg.DedupWindow)
		if err != nil {
			metrics.StorageDegraded.WithLabelValues("recent_titles").Inc()
			log.Warn("history unavailable, generating without dedup", logx.Err(err))
			avoid = nil
		}
	}

	content := s.gen.Generate(ctx, mainLabel, subLabel, avoid)
	msg := format.Message(content.Title, content.Description, req.VoiceType, req.ScenesCount, req.Duration)

	res := Result{
		Title:       content.Title,
		Description: content.Description,
		Message:     msg,
		Transport:   tr.Name(),
		Request:     req,
	}
	rec := storage.HistoryRecord{
		ID:           uuid.NewString(),
		TitleUsed:    content.Title,
		MainCategory: req.MainCategory,
		SubCategory:  req.SubCategory,
		VoiceType:    req.VoiceType,
		ScenesCount:  req.ScenesCount,
		Duration:     req.Duration,
		FullMessage:  msg,
		Status:       status,
		Transport:    tr.Name(),
	}

	dctx, cancel := context.WithTimeout(ctx, cfg.DeliveryTimeout)
	err = tr.Send(dctx, dest, msg)
	cancel()
	if err != nil {
		reason := delivery.ReasonOf(err)
		if reason == "" {
			reason = delivery.ReasonTransportRejected
		}
		metrics.Deliveries.WithLabelValues(tr.Name(), string(reason)).Inc()
		log.Warn("delivery failed", logx.String("transport", tr.Name()), logx.String("reason", string(reason)), logx.Err(err))
		if cfg.RecordFailures {
			rec.Status = storage.StatusFailed
			rec.Error = string(reason)
			rec.SentAt = s.now()
			if perr := s.history.AppendHistory(context.WithoutCancel(ctx), rec); perr != nil {
				log.Warn("failed attempt not recorded", logx.Err(perr))
			}
		}
		return Result{}, &Error{Kind: KindDelivery, Stage: StageDelivering, Reason: string(reason), Err: err}
	}
	metrics.Deliveries.WithLabelValues(tr.Name(), "ok").Inc()

	// The message is out; record it even if the caller has gone away.
	rec.SentAt = s.now()
	if err := s.history.AppendHistory(context.WithoutCancel(ctx), rec); err != nil {
		metrics.StorageDegraded.WithLabelValues("append").Inc()
		log.Warn("history append failed after delivery", logx.Err(err))
		res.Warning = WarningPersistence
	} else {
		res.RecordID = rec.ID
	}

	log.Info("dispatch done",
		logx.String("title", content.Title),
		logx.String("transport", tr.Name()),
		logx.Bool("degraded", content.Degraded),
		logx.Int("avoid", len(avoid)),
	)
	return res, nil
}

func (s *Service) observe(trigger Trigger, start time.Time, err error) {
	metrics.DispatchDuration.WithLabelValues(string(trigger)).Observe(s.now().Sub(start).Seconds())
	if err != nil {
		metrics.Dispatches.WithLabelValues(string(trigger), "failed", string(KindOf(err))).Inc()
		return
	}
	metrics.Dispatches.WithLabelValues(string(trigger), "sent", "").Inc()
}
