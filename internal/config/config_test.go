package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toastd/internal/reminders"
	"toastd/internal/toast"
)

const sampleYAML = `
logging:
  level: debug
  console: true
policy:
  minimum_interval: 500ms
  max_queue_size: 3
  coalescing_window: 0s
  persist_critical_toasts: false
storage:
  driver: sqlite
  path: ./toastd.db
http:
  enabled: true
  addr: 127.0.0.1:9000
scheduler:
  enabled: true
  timezone: UTC
reminders:
  - name: standup
    schedule: "0 9 * * 1-5"
    message: Standup in 5 minutes
    kind: info
    priority: elevated
    dismissable: false
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_YAML(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "toastd.yaml", sampleYAML))
	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Same(t, cfg, m.Get())

	p, err := cfg.ToastPolicy()
	require.NoError(t, err)
	assert.Equal(t, toast.Policy{
		MinimumInterval:       500 * time.Millisecond,
		MaxQueueSize:          3,
		CoalescingWindow:      0,
		PersistCriticalToasts: false,
		RespectLowPowerMode:   true,
	}, p)

	st, err := cfg.StorageOptions()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", st.Driver)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr())

	rs, err := cfg.ReminderSet()
	require.NoError(t, err)
	require.Len(t, rs.Reminders, 1)
	r := rs.Reminders[0]
	assert.Equal(t, reminders.SpecCron, r.Spec.Kind)
	assert.Equal(t, toast.PriorityElevated, r.Options.Priority)
	assert.Equal(t, "reminder:standup", r.Options.DedupeKey)
	assert.False(t, r.Options.AllowsUserDismiss)
	assert.Equal(t, "UTC", rs.Location.String())
}

func TestDecode_JSONStrict(t *testing.T) {
	t.Parallel()
	_, err := Decode("c.json", []byte(`{"logging":{"level":"info"},"bogus":1}`))
	assert.Error(t, err)

	_, err = Decode("c.json", []byte(`{} {}`))
	assert.ErrorContains(t, err, "trailing data")

	_, err = Decode("c.yml", []byte("policy:\n  nope: 1\n"))
	assert.Error(t, err)

	cfg, err := Decode("empty.yaml", []byte(""))
	require.NoError(t, err)
	assert.NoError(t, Validate(cfg))
}

func TestEncode_RoundTrip(t *testing.T) {
	t.Parallel()
	cfg := Default()
	for _, name := range []string{"c.json", "c.yaml"} {
		b, err := Encode(name, cfg)
		require.NoError(t, err)
		back, err := Decode(name, b)
		require.NoError(t, err, name)
		assert.Equal(t, cfg, back, name)
	}
}

func TestToastPolicy_DefaultsWhenOmitted(t *testing.T) {
	t.Parallel()
	p, err := (&Config{}).ToastPolicy()
	require.NoError(t, err)
	assert.Equal(t, toast.DefaultPolicy(), p)
}

func TestValidate_Rejects(t *testing.T) {
	t.Parallel()
	zero := 0
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"bad level", Config{Logging: LoggingConfig{Level: "loud"}}, "logging.level"},
		{"file log without path", Config{Logging: LoggingConfig{File: LoggingFile{Enabled: true}}}, "logging.file.path"},
		{"file store without path", Config{Storage: &StorageConfig{Driver: "file"}}, "storage.path"},
		{"unknown driver", Config{Storage: &StorageConfig{Driver: "redis"}}, "storage.driver"},
		{"bad interval", Config{Policy: PolicyConfig{MinimumInterval: "fast"}}, "policy.minimum_interval"},
		{"negative window", Config{Policy: PolicyConfig{CoalescingWindow: "-1s"}}, "policy.coalescing_window"},
		{"zero queue", Config{Policy: PolicyConfig{MaxQueueSize: &zero}}, "policy.max_queue_size"},
		{"telegram without chat", Config{Telegram: &TelegramConfig{Token: "t"}}, "telegram.chat_id"},
		{"bad timezone", Config{Scheduler: SchedulerConfig{Timezone: "Mars/Olympus"}}, "scheduler.timezone"},
		{"bad schedule", Config{Reminders: []ReminderConfig{{Name: "a", Schedule: "whenever", Message: "m"}}}, "reminders[0].schedule"},
		{"duplicate reminder", Config{Reminders: []ReminderConfig{
			{Name: "a", Schedule: "1h", Message: "m"},
			{Name: "a", Schedule: "2h", Message: "m"},
		}}, "duplicate"},
		{"reminder missing message", Config{Reminders: []ReminderConfig{{Name: "a", Schedule: "1h"}}}, "reminders[0].message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.cfg)
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	oldCfg := Default()
	newCfg := Default()
	assert.True(t, SummarizeConfigChange(oldCfg, newCfg).Empty())

	newCfg.Policy.MinimumInterval = "1s"
	newCfg.Telegram = &TelegramConfig{Token: "secret", ChatID: 42}
	ch := SummarizeConfigChange(oldCfg, newCfg)
	assert.Equal(t, []string{"policy", "telegram"}, ch.Sections)
	assert.True(t, ch.Has("policy"))
	assert.False(t, ch.Has("http"))

	// Spelling a default explicitly is not a policy change.
	same := Default()
	same.Policy.MinimumInterval = "800ms"
	assert.False(t, SummarizeConfigChange(oldCfg, same).Has("policy"))
}

func TestWatch_PublishesValidChanges(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "toastd.json", `{"policy":{"max_queue_size":5}}`)
	m := NewManager(path)
	m.debounce = 20 * time.Millisecond
	_, err := m.Load()
	require.NoError(t, err)

	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()
	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(`{"policy":{"max_queue_size":0}}`), 0o600))
	time.Sleep(150 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`{"policy":{"max_queue_size":9}}`), 0o600))

	select {
	case cfg := <-sub:
		require.NotNil(t, cfg.Policy.MaxQueueSize)
		assert.Equal(t, 9, *cfg.Policy.MaxQueueSize)
	case <-time.After(3 * time.Second):
		t.Fatal("no config published")
	}
	assert.Equal(t, 9, *m.Get().Policy.MaxQueueSize)

	cancel()
	<-done
}
