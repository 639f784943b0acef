package config

// Config is the daemon configuration file (JSON or YAML).
//
// All durations are Go duration strings (e.g. "800ms", "3s", "1m").
type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Policy is handed to the toast manager. The manager's policy is
	// immutable, so a change here rebuilds it.
	Policy PolicyConfig `json:"policy"`

	// Storage persists critical toasts across background/foreground and keeps
	// the audit trail. Nil means disabled.
	Storage *StorageConfig `json:"storage,omitempty"`

	HTTP    HTTPConfig    `json:"http"`
	Metrics MetricsConfig `json:"metrics"`

	// Telegram mirrors the active toast into a chat. Nil means disabled.
	Telegram *TelegramConfig `json:"telegram,omitempty"`

	Scheduler SchedulerConfig  `json:"scheduler"`
	Reminders []ReminderConfig `json:"reminders,omitempty" validate:"dive"`
}

type LoggingConfig struct {
	Level   string      `json:"level" validate:"omitempty,oneof=trace debug info warn warning error"`
	Console bool        `json:"console"`
	Format  string      `json:"format,omitempty" validate:"omitempty,oneof=pretty json"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path" validate:"required_if=Enabled true"`
	// MaxSizeMB caps the file before it is rotated to <path>.1; 0 never rotates.
	MaxSizeMB  int `json:"max_size_mb,omitempty" validate:"gte=0"`
	MaxBackups int `json:"max_backups,omitempty" validate:"gte=0"`
}

// PolicyConfig mirrors toast.Policy. Omitted fields keep the built-in
// defaults, so pointers distinguish "unset" from an explicit zero/false.
type PolicyConfig struct {
	MinimumInterval       string `json:"minimum_interval,omitempty"`
	MaxQueueSize          *int   `json:"max_queue_size,omitempty" validate:"omitempty,min=1,max=1000"`
	CoalescingWindow      string `json:"coalescing_window,omitempty"`
	PersistCriticalToasts *bool  `json:"persist_critical_toasts,omitempty"`
	RespectLowPowerMode   *bool  `json:"respect_low_power_mode,omitempty"`
}

// StorageConfig selects the persistence backend.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./toastd.db" }
type StorageConfig struct {
	Driver      string `json:"driver" validate:"omitempty,oneof=none memory file sqlite sqlite3"`
	Path        string `json:"path" validate:"required_if=Driver file,required_if=Driver sqlite,required_if=Driver sqlite3"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
}

// HTTPConfig controls the control API. Bind to loopback unless a token is set.
type HTTPConfig struct {
	Enabled        bool     `json:"enabled"`
	Addr           string   `json:"addr,omitempty" validate:"omitempty,hostname_port"`
	Token          string   `json:"token,omitempty"` // bearer token (do not log)
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
	ReadTimeout    string   `json:"read_timeout,omitempty"`
	WriteTimeout   string   `json:"write_timeout,omitempty"`
	ShutdownGrace  string   `json:"shutdown_grace,omitempty"`
	// Pprof mounts net/http/pprof under /debug, behind the token.
	Pprof bool `json:"pprof,omitempty"`
}

type MetricsConfig struct {
	Enabled   bool   `json:"enabled"`
	Namespace string `json:"namespace,omitempty"`
}

type TelegramConfig struct {
	Token    string `json:"token" validate:"required"`
	ChatID   int64  `json:"chat_id" validate:"required"`
	ThreadID int    `json:"thread_id,omitempty" validate:"min=0"`
	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

// SchedulerConfig controls reminder triggers.
type SchedulerConfig struct {
	Enabled  bool   `json:"enabled"`
	Timezone string `json:"timezone,omitempty"`
}

// ReminderConfig shows a toast on a cron schedule.
type ReminderConfig struct {
	Name     string `json:"name" validate:"required"`
	Schedule string `json:"schedule" validate:"required"`
	Message  string `json:"message" validate:"required"`
	Kind     string `json:"kind,omitempty" validate:"omitempty,oneof=success error warning info custom"`
	Priority string `json:"priority,omitempty" validate:"omitempty,oneof=normal elevated high critical"`
	Duration string `json:"duration,omitempty"`
	// DedupeKey defaults to "reminder:<name>" so a slow presenter never
	// stacks copies of the same reminder.
	DedupeKey   string `json:"dedupe_key,omitempty"`
	Dismissable *bool  `json:"dismissable,omitempty"`
}
