package scheduler

import (
	"context"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	logx "dailytales/pkg/logx"
)

func New(cfg Config, job Job, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		cfg: cfg,
		log: log.With(logx.String("comp", "scheduler")),
		job: job,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
	s.loc = s.loadLocationLocked()
	s.timeout.Store(int64(cfg.Timeout))
	return s
}

// Enabled reports the current config flag. (Thread-safe; Apply() may run concurrently.)
func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

// Location is the timezone daily times are interpreted in.
func (s *Service) Location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loc == nil {
		return time.Local
	}
	return s.loc
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldTZ := strings.TrimSpace(s.cfg.Timezone)
	newTZ := strings.TrimSpace(cfg.Timezone)
	wasEnabled := s.cfg.Enabled
	s.cfg = cfg
	s.timeout.Store(int64(cfg.Timeout))

	if s.c == nil {
		s.loc = s.loadLocationLocked()
		return
	}
	switch {
	case oldTZ != newTZ:
		s.restartLocked()
	case wasEnabled && !cfg.Enabled:
		s.unregisterLocked()
		s.log.Info("auto dispatch trigger disabled by config")
	case !wasEnabled && cfg.Enabled && s.def != nil:
		if err := s.addCronLocked(s.def); err != nil {
			s.log.Warn("re-register failed", logx.Err(err))
		}
	}
}

// Start starts cron triggering. The daily entry, if Sync already ran, is
// registered now.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.base, s.baseCancel = context.WithCancel(context.WithoutCancel(ctx))

	loc := s.loadLocationLocked()
	s.loc = loc
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	if s.def != nil && s.cfg.Enabled {
		if err := s.addCronLocked(s.def); err != nil {
			s.log.Warn("daily schedule rejected", logx.String("spec", s.def.spec), logx.Err(err))
		}
	}
	s.c.Start()
	s.log.Info("service started", logx.String("tz", loc.String()), logx.Bool("enabled", s.cfg.Enabled), logx.Bool("active", s.def != nil && s.def.entryID != 0))
}

// Stop stops cron triggering and waits (bounded by ctx) for a run in flight.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.log.Info("stop requested")

	s.mu.Lock()
	c := s.c
	s.c = nil
	cancel := s.baseCancel
	if s.def != nil {
		s.def.entryID = 0
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
}

func (s *Service) restartLocked() {
	if s.c != nil {
		<-s.c.Stop().Done()
	}
	loc := s.loadLocationLocked()
	s.loc = loc
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	if s.def != nil {
		s.def.entryID = 0
		if s.cfg.Enabled {
			_ = s.addCronLocked(s.def)
		}
	}
	s.c.Start()
	s.log.Info("service restarted", logx.String("tz", loc.String()))
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Any("err", err))
		return time.Local
	}
	return loc
}
