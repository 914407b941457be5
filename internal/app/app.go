// Package app wires the daemon: config, logging, storage, the dispatch
// pipeline, the daily scheduler, the operator bot and the HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"dailytales/internal/ai"
	"dailytales/internal/config"
	"dailytales/internal/delivery"
	"dailytales/internal/dispatch"
	"dailytales/internal/generate"
	"dailytales/internal/history"
	"dailytales/internal/httpapi"
	"dailytales/internal/runtime/supervisor"
	"dailytales/internal/settings"
	"dailytales/internal/storage"
	"dailytales/internal/task/scheduler"
	kit "dailytales/internal/transport"
	telegram "dailytales/internal/transport/telegram/adapter"
	"dailytales/internal/transport/telegram/router"
	logx "dailytales/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	cfg  *config.Config
	lang atomic.Value // string

	log  logx.Logger
	logs *logx.Service

	store    storage.Store
	history  *history.Query
	dispatch *dispatch.Service
	settings *settings.Service
	sched    *scheduler.Service

	adapter *telegram.Adapter // nil without telegram.token
	router  *router.Manager
	http    *httpapi.Server // nil unless http.enabled

	sup     *supervisor.Supervisor
	updates chan kit.Update
}

// Option adjusts how New builds the app.
type Option func(*options)

type options struct {
	noDaemon bool
	logLevel string
}

// WithoutDaemon builds only the dispatch pipeline and its stores. The CLI
// one-shot commands use it: no bot, no scheduler, no HTTP listener.
func WithoutDaemon() Option { return func(o *options) { o.noDaemon = true } }

// WithLogLevel overrides logging.level.
func WithLogLevel(level string) Option { return func(o *options) { o.logLevel = level } }

// New loads cfgPath and builds every component. Nothing runs until Start.
func New(ctx context.Context, cfgPath string, opts ...Option) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	return build(ctx, cfgm, cfg, opts...)
}

func build(ctx context.Context, cfgm *config.Manager, cfg *config.Config, opts ...Option) (*App, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	logCfg := mapLogConfig(cfg)
	if o.logLevel != "" {
		logCfg.Level = o.logLevel
	}
	if o.noDaemon {
		logCfg.Telegram.Enabled = false
	}
	logs, log := logx.New(logCfg)
	a := &App{cfgm: cfgm, cfg: cfg, logs: logs, log: log.With(logx.String("comp", "app"))}
	a.lang.Store(cfg.Language())
	cfgm.SetLogger(log)

	store, err := storage.Open(ctx, mapStorageConfig(cfg), log)
	if err != nil {
		_ = logs.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.store = store

	completer, err := ai.New(ctx, mapAIConfig(cfg))
	switch {
	case errors.Is(err, ai.ErrNotConfigured):
		a.log.Warn("ai provider not configured, titles fall back to category labels")
	case err != nil:
		a.Close()
		return nil, err
	}
	gen := generate.New(completer, cfg.AITimeout(), log)

	selectTr := func(st storage.Settings) (delivery.Transport, error) {
		return delivery.Select(st, delivery.Options{BotAPIBase: cfg.Delivery.APIBaseURL})
	}
	loc := location(cfg)
	a.history = history.New(store, store, loc)
	a.dispatch = dispatch.New(dispatch.Deps{
		Settings:  store,
		History:   store,
		Titles:    a.history,
		Generator: gen,
		Select:    selectTr,
		Log:       log,
	}, mapDispatchConfig(cfg))
	a.settings = settings.New(store, settings.Options{
		Select:      selectTr,
		TestTimeout: cfg.DeliveryTimeout(),
		Log:         log,
	})

	if o.noDaemon {
		return a, nil
	}

	a.sched = scheduler.New(mapSchedulerConfig(cfg), a.autoJob, log)
	a.settings.OnSaved(func(st storage.Settings) {
		if err := a.sched.Sync(st); err != nil {
			a.log.Warn("auto send schedule not updated", logx.Err(err))
		}
	})

	var ad *telegram.Adapter
	if strings.TrimSpace(cfg.Telegram.Token) != "" {
		ad, err = telegram.New(telegram.Config{Token: cfg.Telegram.Token, PollTimeout: cfg.PollTimeout()}, log)
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	if ad != nil {
		a.adapter = ad
		a.updates = make(chan kit.Update, 256)
		a.router = router.NewManager(log, ad, cfg.Telegram.OwnerUserIDs)
		if id := cfg.GroupLogChatID(); id != 0 {
			logs.AttachTelegram(ad, id)
		}
	} else {
		a.log.Info("telegram.token not set, operator bot disabled")
	}

	if cfg.HTTP.Enabled {
		a.http = httpapi.New(mapHTTPConfig(cfg), httpapi.Deps{
			Dispatch:  a.dispatch,
			History:   a.history,
			Settings:  a.settings,
			Scheduler: a.sched,
			Workers:   a.workers,
			Ping:      store.Ping,
			Lang:      a.Lang,
			Log:       log,
		})
	}
	return a, nil
}

func (a *App) Log() logx.Logger { return a.log }

func (a *App) Dispatcher() *dispatch.Service { return a.dispatch }

func (a *App) History() *history.Query { return a.history }

func (a *App) Settings() *settings.Service { return a.settings }

// Scheduler is nil for apps built WithoutDaemon.
func (a *App) Scheduler() *scheduler.Service { return a.sched }

// Lang is the configured reply language; it follows hot reloads.
func (a *App) Lang() string {
	if s, ok := a.lang.Load().(string); ok {
		return s
	}
	return dispatch.LangEN
}

func (a *App) workers() supervisor.Snapshot {
	if a.sup == nil {
		return supervisor.Snapshot{}
	}
	return a.sup.Snapshot()
}

func (a *App) autoJob(ctx context.Context) error {
	res, err := a.dispatch.AutoDispatch(ctx)
	if err != nil {
		a.log.Warn("scheduled auto dispatch failed", logx.String("kind", string(dispatch.KindOf(err))), logx.Err(err))
		return err
	}
	a.log.Info("scheduled auto dispatch sent",
		logx.String("id", res.RecordID),
		logx.String("sub", res.Request.SubCategory),
		logx.String("transport", res.Transport),
	)
	return nil
}

// Done is closed once the app supervisor stops (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Done()
}

// Err is the first fatal error seen by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start runs the daemon components under one supervisor.
func (a *App) Start(ctx context.Context) error {
	if a.sched == nil {
		return errors.New("app built without daemon components")
	}
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	run := a.sup.Context()

	st, err := a.store.LoadSettings(run)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		a.log.Warn("settings not readable, auto send stays off until the next save", logx.Err(err))
	default:
		if err := a.sched.Sync(st); err != nil {
			a.log.Warn("auto send schedule rejected", logx.Err(err))
		}
	}
	a.sched.Start(run)

	if a.adapter != nil {
		if err := a.adapter.Start(run, a.updates); err != nil {
			return err
		}
		a.router.SetCommands(run, router.Commands(router.Deps{
			Dispatch:  a.dispatch,
			History:   a.history,
			Settings:  a.settings,
			Scheduler: a.sched,
			Lang:      a.Lang,
		}))
		a.sup.Go("commands.dispatch", func(c context.Context) error {
			return a.router.DispatchLoop(c, a.updates)
		})
	}

	if a.http != nil {
		a.sup.Go("http.server", a.http.Run)
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(newCfg)
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.log.Info("app started",
		logx.Bool("bot", a.adapter != nil),
		logx.Bool("http", a.http != nil),
		logx.Bool("scheduler", a.sched.Enabled()),
	)
	return nil
}

// applyConfig applies the hot reloadable parts of newCfg and warns about the rest.
func (a *App) applyConfig(newCfg *config.Config) {
	old := a.cfg
	sections, attrs := config.SummarizeChange(old, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, no effective changes")
		return
	}
	a.cfg = newCfg

	if a.adapter != nil {
		a.logs.AttachTelegram(a.adapter, newCfg.GroupLogChatID())
	}
	a.logs.Apply(mapLogConfig(newCfg))
	a.lang.Store(newCfg.Language())
	a.dispatch.SetConfig(mapDispatchConfig(newCfg))
	a.sched.Apply(mapSchedulerConfig(newCfg))
	if a.router != nil {
		a.router.SetOwners(newCfg.Telegram.OwnerUserIDs)
	}

	if restart := config.RestartRequired(old, newCfg); len(restart) > 0 {
		a.log.Warn("config sections changed that need a restart", logx.Strings("sections", restart))
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// Stop shuts the daemon down. Each step is bounded so one component cannot
// stall the rest.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		a.Close()
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		sctx, cancel := context.WithTimeout(ctx, limit)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(sctx)
		}()
		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-sctx.Done():
			a.log.Warn("stop step deadline reached, continuing", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("scheduler", 5*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	if a.adapter != nil {
		step("adapter", 3*time.Second, a.adapter.Stop)
	}
	step("supervisor", 12*time.Second, a.sup.Wait)
	err := a.sup.Err()
	a.Close()
	return err
}

// Close releases the store and log sinks. Stop calls it.
func (a *App) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
		a.store = nil
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
}
