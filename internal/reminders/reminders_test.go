package reminders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toastd/internal/toast"
	logx "toastd/pkg/logx"
)

func TestParseScheduleVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		raw    string
		kind   SpecKind
		source string
		every  time.Duration
	}{
		{name: "cron", raw: "*/5 * * * *", kind: SpecCron, source: "cron"},
		{name: "cron with seconds", raw: "0 */5 * * * *", kind: SpecCron, source: "cron"},
		{name: "descriptor", raw: "@hourly", kind: SpecCron, source: "cron"},
		{name: "prefixed cron", raw: "cron:0 0 * * *", kind: SpecCron, source: "cron"},
		{name: "duration", raw: "10m", kind: SpecInterval, source: "duration", every: 10 * time.Minute},
		{name: "prefixed interval", raw: "interval:45s", kind: SpecInterval, source: "duration", every: 45 * time.Second},
		{name: "every prefix", raw: "every:01:00", kind: SpecInterval, source: "hhmm", every: time.Hour},
		{name: "hhmm", raw: "01:30", kind: SpecInterval, source: "hhmm", every: 90 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSchedule(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.source, got.Source)
			if tt.kind == SpecInterval {
				assert.Equal(t, tt.every, got.Every)
				assert.Equal(t, "@every "+tt.every.String(), got.String())
			}
		})
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not-a-schedule", "0s", "00:00", "01:75", "cron:", "* * *", "interval:soon"} {
		_, err := ParseSchedule(raw)
		assert.Error(t, err, raw)
	}
}

type fakeShower struct {
	mu    sync.Mutex
	shown []string
	opts  []toast.Options
}

func (f *fakeShower) ShowMessage(message string, _ toast.Kind, opts toast.Options) toast.Admission {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shown = append(f.shown, message)
	f.opts = append(f.opts, opts)
	return toast.Admission{ID: toast.NewID(), Outcome: toast.OutcomeQueued}
}

func (f *fakeShower) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.shown)
}

func TestFire_UsesCurrentTarget(t *testing.T) {
	t.Parallel()
	var cur Shower
	s := New(logx.Nop(), func() Shower { return cur })

	opts := toast.DefaultOptions()
	opts.DedupeKey = DefaultDedupeKey("standup")
	r := Reminder{Name: "standup", Message: "standup in 5", Kind: toast.KindInfo, Options: opts}

	s.fire(r) // no manager yet
	assert.Equal(t, uint64(1), s.Fired("standup"))

	sh := &fakeShower{}
	cur = sh
	s.fire(r)
	require.Equal(t, 1, sh.count())
	assert.Equal(t, "standup in 5", sh.shown[0])
	assert.Equal(t, "reminder:standup", sh.opts[0].DedupeKey)
}

func TestService_FiresOnSchedule(t *testing.T) {
	t.Parallel()
	sh := &fakeShower{}
	s := New(logx.Nop(), func() Shower { return sh })
	s.Apply(Config{
		Enabled: true,
		Reminders: []Reminder{
			{Name: "tick", Spec: Spec{Kind: SpecInterval, Every: time.Second}, Message: "tick", Kind: toast.KindInfo},
			{Name: "never", Spec: Spec{Kind: SpecCron, Cron: "0 0 1 1 *"}, Message: "new year", Kind: toast.KindInfo},
		},
	})
	s.Start(context.Background())
	defer s.Stop(context.Background())

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "tick", entries[0].Name)

	require.Eventually(t, func() bool { return sh.count() >= 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestService_DisabledDoesNotStart(t *testing.T) {
	t.Parallel()
	s := New(logx.Nop(), nil)
	s.Apply(Config{Enabled: false, Reminders: []Reminder{{Name: "x", Spec: Spec{Kind: SpecCron, Cron: "@hourly"}}}})
	s.Start(context.Background())
	assert.Empty(t, s.Entries())

	s.Apply(Config{Enabled: true, Reminders: []Reminder{{Name: "x", Spec: Spec{Kind: SpecCron, Cron: "@hourly"}}}})
	assert.Empty(t, s.Entries(), "Apply alone does not start the service")
	s.Stop(context.Background())
}

func TestService_ApplyWhileRunningReplacesSet(t *testing.T) {
	t.Parallel()
	s := New(logx.Nop(), nil)
	s.Apply(Config{Enabled: true, Reminders: []Reminder{{Name: "a", Spec: Spec{Kind: SpecCron, Cron: "@hourly"}}}})
	s.Start(context.Background())
	defer s.Stop(context.Background())

	loc, err := time.LoadLocation("UTC")
	require.NoError(t, err)
	s.Apply(Config{Enabled: true, Location: loc, Reminders: []Reminder{
		{Name: "b", Spec: Spec{Kind: SpecCron, Cron: "@daily"}},
		{Name: "c", Spec: Spec{Kind: SpecCron, Cron: "@weekly"}},
	}})
	names := map[string]bool{}
	for _, e := range s.Entries() {
		names[e.Name] = true
	}
	assert.Equal(t, map[string]bool{"b": true, "c": true}, names)
}
