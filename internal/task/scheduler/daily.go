package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"dailytales/internal/metrics"
	"dailytales/internal/storage"
	logx "dailytales/pkg/logx"
)

// Sync registers the daily trigger from saved settings, or removes it when
// auto send is off. Safe to call before Start and from settings save hooks.
func (s *Service) Sync(st storage.Settings) error {
	if !st.AutoSendEnabled {
		if s.Remove() {
			s.log.Info("auto dispatch unscheduled")
		}
		return nil
	}
	at := st.AutoSendTime
	if strings.TrimSpace(at) == "" {
		at = storage.DefaultAutoSendTime
	}
	return s.SetDaily(at)
}

// SetDaily (re)registers the daily trigger at atHHMM ("HH:MM" or "HH:MM:SS")
// in the scheduler timezone. Registering the same time twice is a no-op.
func (s *Service) SetDaily(atHHMM string) error {
	h, m, sec, err := parseTimeOfDay(atHHMM)
	if err != nil {
		return err
	}
	d := &scheduleDef{
		name: dailyName,
		at:   fmt.Sprintf("%02d:%02d:%02d", h, m, sec),
		spec: fmt.Sprintf("%d %d %d * * *", sec, m, h),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.def != nil && s.def.spec == d.spec && (s.def.entryID != 0 || s.c == nil || !s.cfg.Enabled) {
		return nil
	}
	s.unregisterLocked()
	s.def = d
	if s.c != nil && s.cfg.Enabled {
		if err := s.addCronLocked(d); err != nil {
			s.def = nil
			return err
		}
	}
	s.log.Info("auto dispatch scheduled", logx.String("at", d.at), logx.String("tz", s.locNameLocked()), logx.String("next", s.nextLocked().Format(time.RFC3339)))
	return nil
}

// Remove drops the daily trigger. It returns true if one was defined.
func (s *Service) Remove() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.def == nil {
		return false
	}
	s.unregisterLocked()
	s.def = nil
	return true
}

// Trigger runs the job now, outside the schedule. It reports false when a
// run is already in flight.
func (s *Service) Trigger(ctx context.Context) (bool, error) {
	return s.fire(ctx)
}

// unregisterLocked removes the cron entry but keeps the definition. Call with s.mu held.
func (s *Service) unregisterLocked() {
	if s.def == nil || s.def.entryID == 0 {
		return
	}
	if s.c != nil {
		s.c.Remove(s.def.entryID)
	}
	s.def.entryID = 0
}

func (s *Service) addCronLocked(d *scheduleDef) error {
	base := s.base
	if base == nil {
		base = context.Background()
	}
	eid, err := s.c.AddJob(d.spec, cron.FuncJob(func() {
		ok, err := s.fire(base)
		switch {
		case !ok:
			metrics.SchedulerRuns.WithLabelValues("skipped").Inc()
			s.log.Warn("previous auto dispatch still running; skipped")
		case err != nil:
			metrics.SchedulerRuns.WithLabelValues("failed").Inc()
			s.log.Warn("auto dispatch failed", logx.Err(err))
		default:
			metrics.SchedulerRuns.WithLabelValues("ok").Inc()
		}
	}))
	if err != nil {
		return err
	}
	d.entryID = eid
	return nil
}

// fire runs the job with the configured timeout. Overlapping runs are skipped.
func (s *Service) fire(ctx context.Context) (bool, error) {
	if s.job == nil {
		return true, nil
	}
	if !s.running.TryLock() {
		s.rmu.Lock()
		s.skipped++
		s.rmu.Unlock()
		return false, nil
	}
	defer s.running.Unlock()

	timeout := time.Duration(s.timeout.Load())
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := s.runJob(rctx)
	took := time.Since(start)

	ri := runInfo{at: start, took: took}
	if err != nil {
		ri.err = err.Error()
	}
	s.rmu.Lock()
	s.last = ri
	s.runs++
	s.rmu.Unlock()

	s.log.Debug("auto dispatch run", logx.Duration("took", took), logx.Bool("ok", err == nil))
	return true, err
}

func (s *Service) runJob(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.log.Error("auto dispatch panic", logx.Any("panic", r))
		}
	}()
	return s.job(ctx)
}

func (s *Service) nextLocked() time.Time {
	if s.c != nil && s.def != nil && s.def.entryID != 0 {
		return s.c.Entry(s.def.entryID).Next
	}
	if s.def == nil {
		return time.Time{}
	}
	sched, err := s.parser.Parse(s.def.spec)
	if err != nil {
		return time.Time{}
	}
	loc := s.loc
	if loc == nil {
		loc = time.Local
	}
	return sched.Next(time.Now().In(loc))
}

func (s *Service) locNameLocked() string {
	if s.loc == nil {
		return time.Local.String()
	}
	return s.loc.String()
}

// parseTimeOfDay accepts "HH:MM" and "HH:MM:SS".
func parseTimeOfDay(s string) (hour, minute, second int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid time %q, expected HH:MM or HH:MM:SS", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	if len(parts) == 3 {
		second, err = strconv.Atoi(parts[2])
		if err != nil || second < 0 || second > 59 {
			return 0, 0, 0, fmt.Errorf("invalid second in %q", s)
		}
	}
	return hour, minute, second, nil
}
