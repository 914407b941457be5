package config

import (
	"reflect"
	"sort"
	"strings"

	logx "dailytales/pkg/logx"
)

// SummarizeChange lists the sections that differ between two configs and
// log fields describing the new values. Secrets are reported only as *_set.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 24)
	set := func(s string) bool { return strings.TrimSpace(s) != "" }

	o, n := oldCfg.Telegram, newCfg.Telegram
	if o.Token != n.Token || o.PollTimeout != n.PollTimeout || o.GroupLog != n.GroupLog ||
		!reflect.DeepEqual(o.OwnerUserIDs, n.OwnerUserIDs) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_set", set(n.Token)),
			logx.Bool("telegram.token_changed", o.Token != n.Token),
			logx.Int("telegram.owner_count", len(n.OwnerUserIDs)),
			logx.Bool("telegram.group_log_set", set(n.GroupLog)),
			logx.String("telegram.poll_timeout", n.PollTimeout),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newCfg.Storage.Driver),
			logx.Bool("storage.path_set", set(newCfg.Storage.Path)),
			logx.Bool("storage.dsn_set", set(newCfg.Storage.DSN)),
		)
	}

	if oldCfg.AI != newCfg.AI {
		changed = append(changed, "ai")
		attrs = append(attrs,
			logx.String("ai.provider", newCfg.AI.Provider),
			logx.String("ai.model", newCfg.AI.Model),
			logx.Bool("ai.api_key_set", set(newCfg.AI.APIKey)),
		)
	}

	if oldCfg.Delivery != newCfg.Delivery {
		changed = append(changed, "delivery")
		attrs = append(attrs,
			logx.Bool("delivery.api_base_url_set", set(newCfg.Delivery.APIBaseURL)),
			logx.String("delivery.timeout", newCfg.Delivery.Timeout),
		)
	}

	if oldCfg.Dispatch != newCfg.Dispatch {
		changed = append(changed, "dispatch")
		attrs = append(attrs,
			logx.Int("dispatch.dedup_window", newCfg.DedupWindow()),
			logx.Bool("dispatch.record_failures", newCfg.Dispatch.RecordFailures),
			logx.String("dispatch.language", newCfg.Language()),
		)
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
			logx.String("scheduler.timezone", newCfg.Scheduler.Timezone),
			logx.String("scheduler.timeout", newCfg.Scheduler.Timeout),
		)
	}

	if oldCfg.HTTP != newCfg.HTTP {
		changed = append(changed, "http")
		attrs = append(attrs,
			logx.Bool("http.enabled", newCfg.HTTP.Enabled),
			logx.String("http.addr", newCfg.HTTP.Addr),
			logx.Bool("http.token_set", set(newCfg.HTTP.Token)),
			logx.Bool("http.pprof", newCfg.HTTP.PProf),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

// RestartRequired lists changed sections that only take effect after a
// restart: the stores, clients and listeners are built once at startup.
func RestartRequired(oldCfg, newCfg *Config) []string {
	if oldCfg == nil || newCfg == nil {
		return nil
	}
	var out []string
	if oldCfg.Telegram.Token != newCfg.Telegram.Token || oldCfg.Telegram.PollTimeout != newCfg.Telegram.PollTimeout {
		out = append(out, "telegram")
	}
	if oldCfg.Storage != newCfg.Storage {
		out = append(out, "storage")
	}
	if oldCfg.AI != newCfg.AI {
		out = append(out, "ai")
	}
	if oldCfg.Delivery.APIBaseURL != newCfg.Delivery.APIBaseURL {
		out = append(out, "delivery")
	}
	if oldCfg.HTTP != newCfg.HTTP {
		out = append(out, "http")
	}
	return out
}
