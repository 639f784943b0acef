package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"toastd/internal/reminders"
	"toastd/internal/storage"
	"toastd/internal/toast"
	logx "toastd/pkg/logx"
)

const (
	DefaultHTTPAddr      = "127.0.0.1:8740"
	DefaultShutdownGrace = 5 * time.Second
	DefaultPollTimeout   = 10 * time.Second
)

var ErrInvalid = errors.New("invalid config")

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Console: true},
		HTTP:    HTTPConfig{Enabled: true, Addr: DefaultHTTPAddr},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Validate checks struct tags first, then the fields tags cannot express
// (durations, timezone, the resulting toast policy).
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalid)
	}
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fieldPath(fe.Namespace()), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if _, err := cfg.ToastPolicy(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := cfg.HTTPTimeouts(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := cfg.StorageOptions(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if cfg.Telegram != nil {
		if _, err := ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	}
	if _, err := cfg.Location(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	seen := map[string]bool{}
	for i, r := range cfg.Reminders {
		if seen[r.Name] {
			return fmt.Errorf("%w: reminders[%d].name: duplicate %q", ErrInvalid, i, r.Name)
		}
		seen[r.Name] = true
	}
	if _, err := cfg.ReminderSet(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// fieldPath turns "Config.storage.path" into "storage.path".
func fieldPath(ns string) string {
	return strings.TrimPrefix(ns, "Config.")
}

// ToastPolicy resolves the policy section against toast.DefaultPolicy.
func (c *Config) ToastPolicy() (toast.Policy, error) {
	p := toast.DefaultPolicy()
	pc := c.Policy

	var err error
	if p.MinimumInterval, err = ParseDurationOrDefault("policy.minimum_interval", pc.MinimumInterval, p.MinimumInterval); err != nil {
		return p, err
	}
	if p.CoalescingWindow, err = ParseDurationOrDefault("policy.coalescing_window", pc.CoalescingWindow, p.CoalescingWindow); err != nil {
		return p, err
	}
	if pc.MaxQueueSize != nil {
		p.MaxQueueSize = *pc.MaxQueueSize
	}
	if pc.PersistCriticalToasts != nil {
		p.PersistCriticalToasts = *pc.PersistCriticalToasts
	}
	if pc.RespectLowPowerMode != nil {
		p.RespectLowPowerMode = *pc.RespectLowPowerMode
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("policy: %w", err)
	}
	return p, nil
}

// LogConfig maps the logging section onto logx.
func (c *Config) LogConfig() logx.Config {
	return logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		Format:  c.Logging.Format,
		File: logx.FileConfig{
			Enabled:    c.Logging.File.Enabled,
			Path:       c.Logging.File.Path,
			MaxSizeMB:  c.Logging.File.MaxSizeMB,
			MaxBackups: c.Logging.File.MaxBackups,
		},
	}
}

// StorageOptions maps the storage section; a nil section yields a disabled
// store.
func (c *Config) StorageOptions() (storage.Config, error) {
	if c.Storage == nil {
		return storage.Config{}, nil
	}
	busy, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{Driver: c.Storage.Driver, Path: c.Storage.Path, BusyTimeout: busy}, nil
}

type HTTPTimeouts struct {
	Read, Write, ShutdownGrace time.Duration
}

func (c *Config) HTTPTimeouts() (HTTPTimeouts, error) {
	var (
		t   HTTPTimeouts
		err error
	)
	if t.Read, err = ParseDurationOrDefault("http.read_timeout", c.HTTP.ReadTimeout, 10*time.Second); err != nil {
		return t, err
	}
	// The websocket route holds connections open; keep writes unbounded by default.
	if t.Write, err = ParseDurationField("http.write_timeout", c.HTTP.WriteTimeout); err != nil {
		return t, err
	}
	if t.ShutdownGrace, err = ParseDurationOrDefault("http.shutdown_grace", c.HTTP.ShutdownGrace, DefaultShutdownGrace); err != nil {
		return t, err
	}
	return t, nil
}

// HTTPAddr returns the listen address, defaulting to loopback.
func (c *Config) HTTPAddr() string {
	if a := strings.TrimSpace(c.HTTP.Addr); a != "" {
		return a
	}
	return DefaultHTTPAddr
}

// Location resolves scheduler.timezone (empty means local time).
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Scheduler.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone: %w", err)
	}
	return loc, nil
}

// PollTimeoutOrDefault returns telegram.poll_timeout or its default.
func (t *TelegramConfig) PollTimeoutOrDefault() time.Duration {
	d, err := ParseDurationOrDefault("telegram.poll_timeout", t.PollTimeout, DefaultPollTimeout)
	if err != nil || d <= 0 {
		return DefaultPollTimeout
	}
	return d
}

// ReminderSet maps the scheduler and reminders sections.
func (c *Config) ReminderSet() (reminders.Config, error) {
	loc, err := c.Location()
	if err != nil {
		return reminders.Config{}, err
	}
	out := reminders.Config{Enabled: c.Scheduler.Enabled, Location: loc}
	for i, rc := range c.Reminders {
		path := fmt.Sprintf("reminders[%d]", i)
		spec, err := reminders.ParseSchedule(rc.Schedule)
		if err != nil {
			return reminders.Config{}, fmt.Errorf("%s.schedule: %w", path, err)
		}
		kind, err := toast.ParseKind(rc.Kind)
		if err != nil {
			return reminders.Config{}, fmt.Errorf("%s.kind: %w", path, err)
		}
		opts := toast.DefaultOptions()
		if opts.Priority, err = toast.ParsePriority(rc.Priority); err != nil {
			return reminders.Config{}, fmt.Errorf("%s.priority: %w", path, err)
		}
		if opts.Duration, err = ParseDurationOrDefault(path+".duration", rc.Duration, opts.Duration); err != nil {
			return reminders.Config{}, err
		}
		opts.DedupeKey = strings.TrimSpace(rc.DedupeKey)
		if opts.DedupeKey == "" {
			opts.DedupeKey = reminders.DefaultDedupeKey(rc.Name)
		}
		if rc.Dismissable != nil {
			opts.AllowsUserDismiss = *rc.Dismissable
		}
		out.Reminders = append(out.Reminders, reminders.Reminder{
			Name:    rc.Name,
			Spec:    spec,
			Message: rc.Message,
			Kind:    kind,
			Options: opts,
		})
	}
	return out, nil
}
