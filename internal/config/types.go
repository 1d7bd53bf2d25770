package config

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Metadata  MetadataConfig  `json:"metadata"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Promo     PromoConfig     `json:"promo"`

	Observability ObservabilityConfig `json:"observability"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	GroupLog     string  `json:"group_log"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
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

// StorageConfig selects where channel snapshots live.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./data/crosspromo" }
//	"storage": { "driver": "redis", "addr": "127.0.0.1:6379", "db": 0 }
type StorageConfig struct {
	Driver      string `json:"driver"` // file | sqlite | redis | memory | none
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
	Addr        string `json:"addr,omitempty"`         // redis
	Password    string `json:"password,omitempty"`     // redis (do not log)
	DB          int    `json:"db,omitempty"`           // redis
}

// MetadataConfig controls channel lookups (member count, canonical handle).
// Extra tokens spread lookups across several bots; the main bot is always used.
type MetadataConfig struct {
	Tokens     []string `json:"tokens,omitempty"`
	RatePerSec float64  `json:"rate_per_sec,omitempty"`
	Timeout    string   `json:"timeout,omitempty"`
}

type SchedulerConfig struct {
	Enabled  bool   `json:"enabled"`
	Timezone string `json:"timezone,omitempty"`
}

// PromoConfig tunes the promotion workflow. Schedules accept cron
// ("0 3 * * *", "@daily") or intervals ("6h", "24:00"); empty disables.
type PromoConfig struct {
	CommandDelay string `json:"command_delay,omitempty"` // default 1s
	RefreshDelay string `json:"refresh_delay,omitempty"` // default 2s

	CleanSchedule   string `json:"clean_schedule,omitempty"`
	RefreshSchedule string `json:"refresh_schedule,omitempty"`
	PublishSchedule string `json:"publish_schedule,omitempty"`
	JobTimeout      string `json:"job_timeout,omitempty"` // default 30m

	PublishChat   int64    `json:"publish_chat,omitempty"`
	PublishRange  string   `json:"publish_range,omitempty"`
	PublishLists  int      `json:"publish_lists,omitempty"`
	PublishLabels []string `json:"publish_labels,omitempty"`

	ListHeader string `json:"list_header,omitempty"`
	ListFooter string `json:"list_footer,omitempty"`
}

// ObservabilityConfig exposes /metrics, /healthz and optional pprof.
// Non-loopback binds need a token unless allow_insecure is set.
type ObservabilityConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"` // default 127.0.0.1:9464
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Pprof         bool   `json:"pprof,omitempty"`
	ReadTimeout   string `json:"read_timeout,omitempty"`
	WriteTimeout  string `json:"write_timeout,omitempty"`
}
