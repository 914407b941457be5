package app

import (
	"strings"
	"time"

	"dailytales/internal/ai"
	"dailytales/internal/config"
	"dailytales/internal/dispatch"
	"dailytales/internal/httpapi"
	"dailytales/internal/storage"
	"dailytales/internal/task/scheduler"
	logx "dailytales/pkg/logx"
)

func mapStorageConfig(cfg *config.Config) storage.Config {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "sqlite3" {
		driver = "sqlite"
	}
	return storage.Config{
		Driver:      driver,
		Path:        strings.TrimSpace(sc.Path),
		DSN:         strings.TrimSpace(sc.DSN),
		BusyTimeout: cfg.BusyTimeout(),
		MaxConns:    sc.MaxConns,
	}
}

func mapLogConfig(cfg *config.Config) logx.Config {
	lc := cfg.Logging
	return logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		File:    logx.FileConfig{Enabled: lc.File.Enabled, Path: lc.File.Path},
		Telegram: logx.TelegramConfig{
			Enabled:    lc.Telegram.Enabled && cfg.GroupLogChatID() != 0,
			ThreadID:   lc.Telegram.ThreadID,
			MinLevel:   lc.Telegram.MinLevel,
			RatePerSec: lc.Telegram.RatePerSec,
		},
	}
}

func mapAIConfig(cfg *config.Config) ai.Config {
	return ai.Config{
		Provider: cfg.AI.Provider,
		BaseURL:  cfg.AI.BaseURL,
		Model:    cfg.AI.Model,
		APIKey:   cfg.AI.APIKey,
		Timeout:  cfg.AITimeout(),
	}
}

func mapDispatchConfig(cfg *config.Config) dispatch.Config {
	return dispatch.Config{
		DedupWindow:     cfg.DedupWindow(),
		RecordFailures:  cfg.Dispatch.RecordFailures,
		DeliveryTimeout: cfg.DeliveryTimeout(),
	}
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		Enabled:  cfg.Scheduler.Enabled,
		Timezone: cfg.Scheduler.Timezone,
		Timeout:  cfg.SchedulerTimeout(),
	}
}

func mapHTTPConfig(cfg *config.Config) httpapi.Config {
	return httpapi.Config{
		Addr:      cfg.HTTPAddr(),
		Token:     cfg.HTTP.Token,
		PProf:     cfg.HTTP.PProf,
		RateRPS:   cfg.HTTP.RateRPS,
		RateBurst: cfg.HTTP.RateBurst,
	}
}

// location is where "today" and the daily auto send time are measured.
func location(cfg *config.Config) *time.Location {
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	return time.Local
}
