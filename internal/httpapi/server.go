// Package httpapi is the operator HTTP API: dispatch, history, stats,
// settings and catalog under /api/v1, plus /healthz, /metrics and optional
// pprof.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"dailytales/internal/dispatch"
	"dailytales/internal/history"
	"dailytales/internal/runtime/supervisor"
	"dailytales/internal/settings"
	"dailytales/internal/storage"
	"dailytales/internal/task/scheduler"
	logx "dailytales/pkg/logx"
)

type Config struct {
	Addr  string
	Token string // bearer token for /api/v1 and /debug; empty disables auth
	PProf bool
	// RateRPS and RateBurst bound requests per client IP; RateRPS <= 0 disables.
	RateRPS   float64
	RateBurst int
}

const DefaultAddr = "127.0.0.1:8080"

type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) (dispatch.Result, error)
	AutoDispatch(ctx context.Context) (dispatch.Result, error)
}

type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]storage.HistoryRecord, error)
	Stats(ctx context.Context, now time.Time) (history.Stats, error)
}

type SettingsService interface {
	Get(ctx context.Context) (settings.View, error)
	Save(ctx context.Context, p settings.Patch) (settings.View, error)
	Test(ctx context.Context, override *settings.Patch) (string, error)
}

type Deps struct {
	Dispatch  Dispatcher
	History   HistoryReader
	Settings  SettingsService
	Scheduler interface{ Snapshot() scheduler.Snapshot } // optional
	// Workers reports supervised goroutines for /healthz; optional.
	Workers func() supervisor.Snapshot
	// Ping checks the storage backend for /healthz; optional.
	Ping func(ctx context.Context) error
	Lang func() string
	Log  logx.Logger
	Now  func() time.Time
}

type Server struct {
	cfg Config
	d   Deps
	log logx.Logger
	h   http.Handler
}

func New(cfg Config, d Deps) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.Lang == nil {
		d.Lang = func() string { return dispatch.LangEN }
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	s := &Server{cfg: cfg, d: d, log: d.Log.With(logx.String("comp", "http"))}
	s.h = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.h }

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info("http listening", logx.String("addr", ln.Addr().String()), logx.Bool("auth", s.cfg.Token != ""), logx.Bool("pprof", s.cfg.PProf))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(sctx)
	<-errCh
	s.log.Info("http stopped")
	return err
}
