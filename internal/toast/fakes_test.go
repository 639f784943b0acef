package toast

import (
	"context"
	"sort"
	"sync"
	"time"
)

type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	c       *manualClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{c: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	pending := !t.stopped && !t.fired
	t.stopped = true
	return pending
}

// Advance moves time forward by d, firing due timers in deadline order. Timers
// armed by a callback fire too when they fall inside the window.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		sort.SliceStable(c.timers, func(i, j int) bool { return c.timers[i].at.Before(c.timers[j].at) })
		var next *manualTimer
		for _, t := range c.timers {
			if !t.stopped && !t.fired && !t.at.After(target) {
				next = t
				break
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.fired = true
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()
		next.f()
	}
}

// pending counts armed, unfired timers.
func (c *manualClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type presentCall struct {
	item      Item
	at        time.Time
	onDismiss func(DismissalMethod)
}

type recordingPresenter struct {
	mu        sync.Mutex
	clock     Clock
	presented []presentCall
	removed   int
	updated   []Item
	released  int
	lowPower  []bool
}

func (p *recordingPresenter) Present(it Item, onDismiss func(DismissalMethod)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var at time.Time
	if p.clock != nil {
		at = p.clock.Now()
	}
	p.presented = append(p.presented, presentCall{item: it, at: at, onDismiss: onDismiss})
}

func (p *recordingPresenter) RemoveActive() {
	p.mu.Lock()
	p.removed++
	p.mu.Unlock()
}

func (p *recordingPresenter) Update(it Item) {
	p.mu.Lock()
	p.updated = append(p.updated, it)
	p.mu.Unlock()
}

func (p *recordingPresenter) ReleaseResources() {
	p.mu.Lock()
	p.released++
	p.mu.Unlock()
}

func (p *recordingPresenter) SetLowPowerMode(enabled bool) {
	p.mu.Lock()
	p.lowPower = append(p.lowPower, enabled)
	p.mu.Unlock()
}

func (p *recordingPresenter) messages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.presented))
	for _, c := range p.presented {
		out = append(out, c.item.Message)
	}
	return out
}

func (p *recordingPresenter) last() presentCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.presented[len(p.presented)-1]
}

type event struct {
	name     string
	id       ID
	other    ID
	kind     Kind
	duration time.Duration
	method   DismissalMethod
	reason   DropReason
	from, to StateKind
}

type recordingSink struct {
	mu     sync.Mutex
	events []event
}

func (s *recordingSink) add(e event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *recordingSink) ToastShown(id ID, kind Kind, d time.Duration) {
	s.add(event{name: "shown", id: id, kind: kind, duration: d})
}

func (s *recordingSink) ToastDismissed(id ID, method DismissalMethod) {
	s.add(event{name: "dismissed", id: id, method: method})
}

func (s *recordingSink) ToastCoalesced(orig, updated ID) {
	s.add(event{name: "coalesced", id: orig, other: updated})
}

func (s *recordingSink) ToastDropped(id ID, reason DropReason) {
	s.add(event{name: "dropped", id: id, reason: reason})
}

func (s *recordingSink) StateTransition(from, to PresentationState) {
	s.add(event{name: "transition", from: from.Kind(), to: to.Kind()})
}

func (s *recordingSink) all(name string) []event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event
	for _, e := range s.events {
		if e.name == name {
			out = append(out, e)
		}
	}
	return out
}

func (s *recordingSink) count(name string) int { return len(s.all(name)) }

func (s *recordingSink) transitionsTo(k StateKind) int {
	n := 0
	for _, e := range s.all("transition") {
		if e.to == k {
			n++
		}
	}
	return n
}

type memoryStore struct {
	mu       sync.Mutex
	snaps    []Snapshot
	saves    int
	err      error
	clearErr error
}

func (s *memoryStore) Save(_ context.Context, _ string, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saves++
	s.snaps = append(s.snaps, snap)
	return nil
}

func (s *memoryStore) LoadAll(context.Context) ([]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Snapshot(nil), s.snaps...), nil
}

func (s *memoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clearErr != nil {
		return s.clearErr
	}
	s.snaps = nil
	return nil
}
