package config

// Config is the daemon configuration file (config.json or config.yaml).
// Durations are Go duration strings ("500ms", "20s", "2m").
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	AI        AIConfig        `json:"ai"`
	Delivery  DeliveryConfig  `json:"delivery"`
	Dispatch  DispatchConfig  `json:"dispatch"`
	Scheduler SchedulerConfig `json:"scheduler"`
	HTTP      HTTPConfig      `json:"http"`
}

// TelegramConfig is the operator bot. An empty token leaves the bot off;
// the HTTP API and CLI still work.
type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// GroupLog is the chat id that receives the Telegram log sink.
	GroupLog    string `json:"group_log"`
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig selects the settings and history backend.
//
//	"storage": { "driver": "sqlite", "path": "./data/dailytales.db" }
//	"storage": { "driver": "postgres", "dsn": "${DATABASE_URL}" }
type StorageConfig struct {
	Driver      string `json:"driver"` // sqlite (default) | postgres | file
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
	MaxConns    int32  `json:"max_conns,omitempty"`
}

type AIConfig struct {
	Provider string `json:"provider"` // openai (default) | gemini
	BaseURL  string `json:"base_url,omitempty"`
	Model    string `json:"model,omitempty"`
	APIKey   string `json:"api_key"`
	Timeout  string `json:"timeout,omitempty"`
}

type DeliveryConfig struct {
	APIBaseURL string `json:"api_base_url,omitempty"`
	Timeout    string `json:"timeout,omitempty"`
}

type DispatchConfig struct {
	// DedupWindow is how many recent titles the generator is told to avoid.
	DedupWindow    int    `json:"dedup_window,omitempty"`
	RecordFailures bool   `json:"record_failures"`
	Language       string `json:"language,omitempty"` // en | ar, for user-facing replies
}

type SchedulerConfig struct {
	Enabled  bool   `json:"enabled"`
	Timezone string `json:"timezone,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
}

type HTTPConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	Token   string `json:"token,omitempty"`
	PProf   bool   `json:"pprof,omitempty"`
	// RateRPS limits requests per client IP; 0 disables.
	RateRPS   float64 `json:"rate_rps,omitempty"`
	RateBurst int     `json:"rate_burst,omitempty"`
}
