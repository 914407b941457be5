package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPollTimeout      = 10 * time.Second
	DefaultSchedulerTimeout = 2 * time.Minute
	DefaultDeliveryTimeout  = 20 * time.Second
	DefaultDedupWindow      = 50
	MaxDedupWindow          = 500
	DefaultHTTPAddr         = "127.0.0.1:8080"
)

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandSecrets replaces ${NAME} references in the fields that usually hold
// secrets or deployment specific endpoints. Unset variables expand to "".
func expandSecrets(cfg *Config, getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	expand := func(s string) string {
		return envRef.ReplaceAllStringFunc(s, func(m string) string {
			return getenv(m[2 : len(m)-1])
		})
	}
	for _, f := range []*string{
		&cfg.Telegram.Token,
		&cfg.Telegram.GroupLog,
		&cfg.AI.APIKey,
		&cfg.AI.BaseURL,
		&cfg.Storage.DSN,
		&cfg.Storage.Path,
		&cfg.Delivery.APIBaseURL,
		&cfg.HTTP.Token,
		&cfg.HTTP.Addr,
	} {
		*f = expand(*f)
	}
}

// Validate reports every problem in cfg at once.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	for _, d := range []struct{ path, raw string }{
		{"telegram.poll_timeout", cfg.Telegram.PollTimeout},
		{"storage.busy_timeout", cfg.Storage.BusyTimeout},
		{"ai.timeout", cfg.AI.Timeout},
		{"delivery.timeout", cfg.Delivery.Timeout},
		{"scheduler.timeout", cfg.Scheduler.Timeout},
	} {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			errs = append(errs, err)
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "sqlite", "sqlite3", "file":
	case "postgres", "postgresql", "pg":
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			errs = append(errs, errors.New("storage.dsn is required when storage.driver=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
	}

	switch strings.ToLower(strings.TrimSpace(cfg.AI.Provider)) {
	case "", "openai", "gateway", "gemini", "genai":
	default:
		errs = append(errs, fmt.Errorf("ai.provider: unknown provider %q", cfg.AI.Provider))
	}

	if n := cfg.Dispatch.DedupWindow; n < 0 || n > MaxDedupWindow {
		errs = append(errs, fmt.Errorf("dispatch.dedup_window must be between 0 and %d", MaxDedupWindow))
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Dispatch.Language)) {
	case "", "en", "ar":
	default:
		errs = append(errs, fmt.Errorf("dispatch.language: want en or ar, got %q", cfg.Dispatch.Language))
	}

	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Errorf("scheduler.timezone: %w", err))
		}
	}

	if g := strings.TrimSpace(cfg.Telegram.GroupLog); g != "" {
		if _, err := strconv.ParseInt(g, 10, 64); err != nil {
			errs = append(errs, fmt.Errorf("telegram.group_log must be a numeric chat id, got %q", g))
		}
	}
	if cfg.Logging.Telegram.Enabled && strings.TrimSpace(cfg.Telegram.Token) == "" {
		errs = append(errs, errors.New("logging.telegram.enabled needs telegram.token"))
	}

	if cfg.HTTP.Enabled {
		if addr := strings.TrimSpace(cfg.HTTP.Addr); addr != "" {
			if _, _, err := net.SplitHostPort(addr); err != nil {
				errs = append(errs, fmt.Errorf("http.addr: %w", err))
			}
		}
		if cfg.HTTP.RateRPS < 0 || cfg.HTTP.RateBurst < 0 {
			errs = append(errs, errors.New("http.rate_rps and http.rate_burst must be >= 0"))
		}
		if cfg.HTTP.Token == "" && !isLoopback(cfg.HTTP.Addr) {
			errs = append(errs, errors.New("http.token is required when http.addr is not a loopback address"))
		}
	}
	return errors.Join(errs...)
}

func isLoopback(addr string) bool {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return true
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// GroupLogChatID is telegram.group_log as a chat id, 0 when unset.
func (c *Config) GroupLogChatID() int64 {
	id, _ := strconv.ParseInt(strings.TrimSpace(c.Telegram.GroupLog), 10, 64)
	return id
}

func (c *Config) PollTimeout() time.Duration {
	return mustDuration(c.Telegram.PollTimeout, DefaultPollTimeout)
}

func (c *Config) SchedulerTimeout() time.Duration {
	return mustDuration(c.Scheduler.Timeout, DefaultSchedulerTimeout)
}

func (c *Config) DeliveryTimeout() time.Duration {
	return mustDuration(c.Delivery.Timeout, DefaultDeliveryTimeout)
}

// AITimeout is 0 when unset so the provider keeps its own default.
func (c *Config) AITimeout() time.Duration { return mustDuration(c.AI.Timeout, 0) }

func (c *Config) BusyTimeout() time.Duration { return mustDuration(c.Storage.BusyTimeout, 0) }

func (c *Config) DedupWindow() int {
	if c.Dispatch.DedupWindow <= 0 {
		return DefaultDedupWindow
	}
	return min(c.Dispatch.DedupWindow, MaxDedupWindow)
}

func (c *Config) Language() string {
	if strings.EqualFold(strings.TrimSpace(c.Dispatch.Language), "ar") {
		return "ar"
	}
	return "en"
}

func (c *Config) HTTPAddr() string {
	if a := strings.TrimSpace(c.HTTP.Addr); a != "" {
		return a
	}
	return DefaultHTTPAddr
}
