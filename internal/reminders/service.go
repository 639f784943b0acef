package reminders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"toastd/internal/toast"
	logx "toastd/pkg/logx"
)

// Shower is the part of toast.Manager reminders need.
type Shower interface {
	ShowMessage(message string, kind toast.Kind, opts toast.Options) toast.Admission
}

// Target returns the manager reminders should show on, or nil when none is
// running. It is consulted on every firing, so a rebuilt manager is picked
// up without re-registering.
type Target func() Shower

// Reminder is one recurring toast.
type Reminder struct {
	Name    string
	Spec    Spec
	Message string
	Kind    toast.Kind
	Options toast.Options
}

type Config struct {
	Enabled   bool
	Location  *time.Location
	Reminders []Reminder
}

// Entry describes a registered reminder.
type Entry struct {
	Name string    `json:"name"`
	Spec string    `json:"spec"`
	Next time.Time `json:"next"`
	Prev time.Time `json:"prev,omitempty"`
}

type Service struct {
	log    logx.Logger
	target Target

	mu      sync.Mutex
	cfg     Config
	c       *cron.Cron
	entries map[string]cron.EntryID
	fired   map[string]uint64
}

func New(log logx.Logger, target Target) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:     log,
		target:  target,
		cfg:     Config{Location: time.Local},
		entries: map[string]cron.EntryID{},
		fired:   map[string]uint64{},
	}
}

// Apply replaces the reminder set. A running service restarts its cron so a
// timezone change takes effect.
func (s *Service) Apply(cfg Config) {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	if s.c == nil {
		return
	}
	s.stopCronLocked()
	s.startCronLocked()
}

// Start begins firing. It is a no-op while disabled or already running.
func (s *Service) Start(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.startCronLocked()
}

func (s *Service) startCronLocked() {
	if !s.cfg.Enabled {
		s.log.Debug("reminders disabled")
		return
	}
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLocation(s.cfg.Location),
		cron.WithChain(cron.Recover(cronLogger{s.log})),
	)
	clear(s.entries)
	for _, r := range s.cfg.Reminders {
		id, err := s.register(c, r)
		if err != nil {
			s.log.Error("reminder register failed", logx.String("name", r.Name), logx.String("spec", r.Spec.String()), logx.Err(err))
			continue
		}
		s.entries[r.Name] = id
	}
	c.Start()
	s.c = c
	s.log.Info("reminders started", logx.String("tz", s.cfg.Location.String()), logx.Int("count", len(s.entries)))
}

func (s *Service) register(c *cron.Cron, r Reminder) (cron.EntryID, error) {
	job := cron.FuncJob(func() { s.fire(r) })
	if r.Spec.Kind == SpecInterval {
		if r.Spec.Every <= 0 {
			return 0, errors.New("interval must be > 0")
		}
		return c.Schedule(cron.Every(r.Spec.Every), job), nil
	}
	return c.AddJob(r.Spec.Cron, job)
}

func (s *Service) fire(r Reminder) {
	var sh Shower
	if s.target != nil {
		sh = s.target()
	}
	s.mu.Lock()
	s.fired[r.Name]++
	s.mu.Unlock()
	if sh == nil {
		s.log.Debug("reminder skipped; no manager", logx.String("name", r.Name))
		return
	}
	adm := sh.ShowMessage(r.Message, r.Kind, r.Options)
	s.log.Debug("reminder fired",
		logx.String("name", r.Name),
		logx.String("id", adm.ID.String()),
		logx.String("outcome", adm.Outcome.String()),
	)
}

func (s *Service) stopCronLocked() context.Context {
	if s.c == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	done := s.c.Stop()
	s.c = nil
	clear(s.entries)
	return done
}

// Stop halts firing and waits (bounded by ctx) for running jobs.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	done := s.stopCronLocked()
	s.mu.Unlock()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// Entries lists registered reminders ordered by next run.
func (s *Service) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return nil
	}
	byID := map[cron.EntryID]string{}
	for name, id := range s.entries {
		byID[id] = name
	}
	specs := map[string]string{}
	for _, r := range s.cfg.Reminders {
		specs[r.Name] = r.Spec.String()
	}
	var out []Entry
	for _, e := range s.c.Entries() {
		name, ok := byID[e.ID]
		if !ok {
			continue
		}
		out = append(out, Entry{Name: name, Spec: specs[name], Next: e.Next, Prev: e.Prev})
	}
	return out
}

// Fired reports how many times name has fired.
func (s *Service) Fired(name string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fired[name]
}

// DefaultDedupeKey keeps repeated firings of one reminder from stacking.
func DefaultDedupeKey(name string) string {
	return "reminder:" + strings.TrimSpace(name)
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.Debug("cron: "+msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.Error("cron: "+msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []interface{}) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
