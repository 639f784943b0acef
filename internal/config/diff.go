package config

import (
	"reflect"
	"sort"
	"strings"

	logx "toastd/pkg/logx"
)

// Change lists the sections that differ between two configs.
type Change struct {
	Sections []string
	// Attrs are safe to log: tokens are reported only as *_set booleans.
	Attrs []logx.Field
}

func (c Change) Has(section string) bool {
	for _, s := range c.Sections {
		if s == section {
			return true
		}
	}
	return false
}

func (c Change) Empty() bool { return len(c.Sections) == 0 }

// SummarizeConfigChange compares oldCfg and newCfg section by section.
func SummarizeConfigChange(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var ch Change
	add := func(section string, attrs ...logx.Field) {
		ch.Sections = append(ch.Sections, section)
		ch.Attrs = append(ch.Attrs, attrs...)
	}

	if oldCfg.Logging != newCfg.Logging {
		add("logging",
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Int("logging.file_max_size_mb", newCfg.Logging.File.MaxSizeMB),
		)
	}

	oldP, _ := oldCfg.ToastPolicy()
	newP, _ := newCfg.ToastPolicy()
	if oldP != newP {
		add("policy",
			logx.Duration("policy.minimum_interval", newP.MinimumInterval),
			logx.Int("policy.max_queue_size", newP.MaxQueueSize),
			logx.Duration("policy.coalescing_window", newP.CoalescingWindow),
			logx.Bool("policy.persist_critical_toasts", newP.PersistCriticalToasts),
			logx.Bool("policy.respect_low_power_mode", newP.RespectLowPowerMode),
		)
	}

	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		var driver string
		var pathSet bool
		if newCfg.Storage != nil {
			driver = strings.TrimSpace(newCfg.Storage.Driver)
			pathSet = strings.TrimSpace(newCfg.Storage.Path) != ""
		}
		add("storage", logx.String("storage.driver", driver), logx.Bool("storage.path_set", pathSet))
	}

	if !reflect.DeepEqual(oldCfg.HTTP, newCfg.HTTP) {
		add("http",
			logx.Bool("http.enabled", newCfg.HTTP.Enabled),
			logx.String("http.addr", newCfg.HTTPAddr()),
			logx.Bool("http.token_set", strings.TrimSpace(newCfg.HTTP.Token) != ""),
		)
	}

	if oldCfg.Metrics != newCfg.Metrics {
		add("metrics", logx.Bool("metrics.enabled", newCfg.Metrics.Enabled))
	}

	if !reflect.DeepEqual(oldCfg.Telegram, newCfg.Telegram) {
		attrs := []logx.Field{logx.Bool("telegram.enabled", newCfg.Telegram != nil)}
		if newCfg.Telegram != nil {
			attrs = append(attrs,
				logx.Int64("telegram.chat_id", newCfg.Telegram.ChatID),
				logx.Bool("telegram.token_set", strings.TrimSpace(newCfg.Telegram.Token) != ""),
			)
		}
		add("telegram", attrs...)
	}

	if oldCfg.Scheduler != newCfg.Scheduler || !reflect.DeepEqual(oldCfg.Reminders, newCfg.Reminders) {
		add("reminders",
			logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
			logx.String("scheduler.timezone", newCfg.Scheduler.Timezone),
			logx.Int("reminders.count", len(newCfg.Reminders)),
		)
	}

	sort.Strings(ch.Sections)
	return ch
}
