package toast

import (
	"errors"
	"runtime/debug"
	"sync"
	"time"

	logx "toastd/pkg/logx"
)

var ErrNoPresenter = errors.New("toast: presenter is required")

// Outcome describes what Show did with an item.
type Outcome int

const (
	OutcomeQueued Outcome = iota
	OutcomePresented
	OutcomeInterrupted
	OutcomeCoalesced
	OutcomeDropped
	OutcomeClosed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeQueued:
		return "queued"
	case OutcomePresented:
		return "presented"
	case OutcomeInterrupted:
		return "interrupted"
	case OutcomeCoalesced:
		return "coalesced"
	case OutcomeDropped:
		return "dropped"
	case OutcomeClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Admission is the result of Show. ID names the item that carries the
// message afterwards: the incoming item, or the existing one it merged into.
type Admission struct {
	ID      ID
	Outcome Outcome
	// Reason is set when Outcome is OutcomeDropped.
	Reason DropReason
}

// Option configures a Manager.
type Option func(*Manager)

func WithClock(c Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

func WithLogger(log logx.Logger) Option {
	return func(m *Manager) { m.log = log }
}

func WithTelemetry(sink TelemetrySink) Option {
	return func(m *Manager) {
		if sink != nil {
			m.sink = sink
		}
	}
}

// WithSnapshotStore enables persistence of critical items across a
// background transition.
func WithSnapshotStore(store SnapshotStore) Option {
	return func(m *Manager) { m.store = store }
}

// stamp identifies one arming of a timer or one presentation. Callbacks
// carrying a stamp that no longer matches are ignored.
type stamp struct {
	seq uint64
	id  ID
}

// Manager is the toast scheduler. It is safe for concurrent use.
//
// State is mutated under mu. Presenter and telemetry calls are recorded in
// an outbox while mu is held and executed in order, outside mu, by whichever
// goroutine drains first. A presenter may therefore call back into the
// Manager (including from inside Present) without deadlocking.
type Manager struct {
	mu sync.Mutex

	log       logx.Logger
	policy    Policy
	clock     Clock
	presenter Presenter
	sink      TelemetrySink
	store     SnapshotStore

	state   PresentationState
	queue   admissionQueue
	index   *coalescingIndex
	limiter *rateLimiter

	seq          uint64
	presentation stamp

	dismissTimer Timer
	dismissStamp stamp
	waitTimer    Timer
	waitSeq      uint64

	backgrounded bool
	lowPower     bool
	closed       bool

	outbox   []func()
	draining bool

	// lifeMu serializes the lifecycle handlers, which perform store I/O
	// outside mu.
	lifeMu sync.Mutex
}

// New builds a Manager. The policy is fixed for the Manager's lifetime.
func New(policy Policy, presenter Presenter, opts ...Option) (*Manager, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if presenter == nil {
		return nil, ErrNoPresenter
	}
	m := &Manager{
		policy:    policy,
		clock:     SystemClock(),
		presenter: presenter,
		sink:      nopSink{},
		state:     Idle{},
		index:     newCoalescingIndex(),
		limiter:   newRateLimiter(policy.MinimumInterval),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log.IsZero() {
		m.log = logx.Nop()
	}
	return m, nil
}

func (m *Manager) Policy() Policy { return m.policy }

// NewItem creates an item stamped with the Manager's clock.
func (m *Manager) NewItem(message string, kind Kind, opts Options) Item {
	return newItemAt(m.clock.Now(), message, kind, opts)
}

// ShowMessage is Show(NewItem(message, kind, opts)).
func (m *Manager) ShowMessage(message string, kind Kind, opts Options) Admission {
	return m.Show(m.NewItem(message, kind, opts))
}

// Show admits an item. It never waits on the rate limiter: when the item
// can be presented right away it is handed to the presenter before Show
// returns, otherwise it is queued (or merged, or dropped).
func (m *Manager) Show(it Item) Admission {
	m.mu.Lock()
	adm := m.admitLocked(it)
	m.mu.Unlock()
	m.drain()
	return adm
}

func (m *Manager) admitLocked(it Item) Admission {
	if m.closed {
		return Admission{ID: it.ID, Outcome: OutcomeClosed}
	}
	now := m.clock.Now()
	if it.ID == "" {
		it.ID = NewID()
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = now
	}
	if it.Kind == "" {
		it.Kind = KindInfo
	}
	it.Options = it.Options.normalized()

	if m.ownsLocked(it.ID) {
		m.log.Debug("toast dropped", logx.String("id", it.ID.String()), logx.String("reason", "already admitted"))
		m.dropLocked(it.ID, DropDuplicateSuppressed)
		return Admission{ID: it.ID, Outcome: OutcomeDropped, Reason: DropDuplicateSuppressed}
	}

	if id, ok := m.index.lookup(it.Options.DedupeKey); ok {
		if adm, done := m.coalesceLocked(id, it, now); done {
			return adm
		}
	}

	if active, ok := m.state.Active(); ok && it.Options.Priority.CanInterrupt(active.Options.Priority) {
		m.interruptLocked(active, it, now)
		return Admission{ID: it.ID, Outcome: OutcomeInterrupted}
	}

	if m.queue.len() >= m.policy.MaxQueueSize {
		m.log.Debug("toast dropped", logx.String("id", it.ID.String()), logx.String("reason", DropQueueFull.String()))
		m.dropLocked(it.ID, DropQueueFull)
		return Admission{ID: it.ID, Outcome: OutcomeDropped, Reason: DropQueueFull}
	}

	m.queue.insert(it)
	m.index.add(it)
	m.pumpLocked()
	if active, ok := m.state.Active(); ok && active.ID == it.ID {
		return Admission{ID: it.ID, Outcome: OutcomePresented}
	}
	return Admission{ID: it.ID, Outcome: OutcomeQueued}
}

// ownsLocked reports whether id is already active or queued.
func (m *Manager) ownsLocked(id ID) bool {
	if active, ok := m.state.Active(); ok && active.ID == id {
		return true
	}
	return m.queue.indexOf(id) >= 0
}

// mergeInto merges it into existing. The merged item never ends up with a
// lower priority than existing had.
func mergeInto(existing, it Item) Item {
	merged := existing.MergeFrom(it)
	merged.Options.Priority = max(existing.Options.Priority, it.Options.Priority)
	return merged
}

// coalesceLocked merges it into the item registered under its dedupe key.
// done is false when the index entry turned out to be stale.
func (m *Manager) coalesceLocked(id ID, it Item, now time.Time) (Admission, bool) {
	if active, ok := m.state.Active(); ok && active.ID == id {
		if !m.policy.withinWindow(active.CreatedAt, now) {
			m.dropLocked(it.ID, DropDuplicateSuppressed)
			return Admission{ID: it.ID, Outcome: OutcomeDropped, Reason: DropDuplicateSuppressed}, true
		}
		merged := mergeInto(active, it)
		m.index.rekey(active, merged)
		m.state = withActive(m.state, merged)
		m.armDismissLocked(merged)
		if u, ok := m.presenter.(Updater); ok {
			m.effect(func() { u.Update(merged) })
		}
		m.emit(func(s TelemetrySink) { s.ToastCoalesced(merged.ID, it.ID) })
		return Admission{ID: merged.ID, Outcome: OutcomeCoalesced}, true
	}

	if queued, ok := m.queue.get(id); ok {
		if !m.policy.withinWindow(queued.CreatedAt, now) {
			m.dropLocked(it.ID, DropDuplicateSuppressed)
			return Admission{ID: it.ID, Outcome: OutcomeDropped, Reason: DropDuplicateSuppressed}, true
		}
		merged := mergeInto(queued, it)
		m.queue.replace(merged)
		m.index.rekey(queued, merged)
		if in, ok := m.state.(Interrupted); ok && in.Suspended.ID == merged.ID {
			in.Suspended = merged
			m.state = in
		}
		m.emit(func(s TelemetrySink) { s.ToastCoalesced(merged.ID, it.ID) })
		return Admission{ID: merged.ID, Outcome: OutcomeCoalesced}, true
	}

	m.log.Warn("stale coalescing entry", logx.String("key", it.Options.DedupeKey), logx.String("id", id.String()))
	m.index.remove(Item{ID: id, Options: Options{DedupeKey: it.Options.DedupeKey}})
	return Admission{}, false
}

// interruptLocked suspends active in favour of it. The suspended item goes
// back to the front of the queue; if that overflows the queue, the tail
// item is dropped.
func (m *Manager) interruptLocked(active, it Item, now time.Time) {
	m.cancelDismissLocked()
	if m.queue.len() >= m.policy.MaxQueueSize {
		if evicted, ok := m.queue.popBack(); ok {
			m.index.remove(evicted)
			m.dropLocked(evicted.ID, DropQueueFull)
		}
	}
	m.queue.pushFront(active)
	m.emit(func(s TelemetrySink) { s.ToastDismissed(active.ID, DismissInterrupted) })
	m.index.add(it)
	m.log.Debug("toast interrupted",
		logx.String("suspended", active.ID.String()),
		logx.String("by", it.ID.String()),
		logx.String("priority", it.Options.Priority.String()),
	)
	m.startPresentationLocked(it, Interrupted{Suspended: active, Current: it}, now)
}

func (m *Manager) dropLocked(id ID, reason DropReason) {
	m.emit(func(s TelemetrySink) { s.ToastDropped(id, reason) })
}

// Dismiss removes the item with the given ID from the screen or the queue.
// Unknown or already dismissed IDs are ignored. It reports whether an item
// was removed.
func (m *Manager) Dismiss(id ID) bool {
	m.mu.Lock()
	ok := m.dismissLocked(id, DismissProgrammatic)
	m.mu.Unlock()
	m.drain()
	return ok
}

func (m *Manager) dismissLocked(id ID, method DismissalMethod) bool {
	if m.closed || id == "" {
		return false
	}
	if active, ok := m.state.Active(); ok && active.ID == id {
		m.dismissActiveLocked(method)
		return true
	}
	it, ok := m.queue.remove(id)
	if !ok {
		return false
	}
	m.index.remove(it)
	if in, ok := m.state.(Interrupted); ok && in.Suspended.ID == id {
		m.transitionLocked(Presenting{Item: in.Current})
	}
	m.emit(func(s TelemetrySink) { s.ToastDismissed(id, method) })
	return true
}

// dismissActiveLocked takes the active item off screen and lets the
// scheduler move on.
func (m *Manager) dismissActiveLocked(method DismissalMethod) {
	active, ok := m.state.Active()
	if !ok {
		return
	}
	m.cancelDismissLocked()
	m.presentation = stamp{}
	m.index.remove(active)
	m.effect(m.presenter.RemoveActive)
	switch m.state.(type) {
	case Interrupted:
		m.transitionLocked(Idle{})
	default:
		m.transitionLocked(Dismissing{Item: active})
		m.transitionLocked(Idle{})
	}
	m.emit(func(s TelemetrySink) { s.ToastDismissed(active.ID, method) })
	m.pumpLocked()
}

// DismissAll clears the queue and the screen. It returns the number of
// items removed.
func (m *Manager) DismissAll() int {
	m.mu.Lock()
	n := m.clearLocked(DismissProgrammatic)
	m.mu.Unlock()
	m.drain()
	return n
}

// clearLocked cancels every timer, empties the queue and removes the active
// item, emitting one dismissal per item and a single transition to Idle.
func (m *Manager) clearLocked(method DismissalMethod) int {
	if m.closed {
		return 0
	}
	m.cancelWaitLocked()
	m.cancelDismissLocked()
	n := 0
	for _, it := range m.queue.drain() {
		id := it.ID
		m.emit(func(s TelemetrySink) { s.ToastDismissed(id, method) })
		n++
	}
	if active, ok := m.state.Active(); ok {
		m.presentation = stamp{}
		m.effect(m.presenter.RemoveActive)
		m.emit(func(s TelemetrySink) { s.ToastDismissed(active.ID, method) })
		n++
	}
	m.index.reset()
	if m.state.Kind() != StateIdle {
		m.transitionLocked(Idle{})
	}
	return n
}

// PerformMemoryCleanup asks the presenter to release cached resources. The
// schedule is unaffected.
func (m *Manager) PerformMemoryCleanup() {
	m.mu.Lock()
	if r, ok := m.presenter.(ResourceReleaser); ok && !m.closed {
		m.effect(r.ReleaseResources)
	}
	m.mu.Unlock()
	m.drain()
}

// SetLowPowerMode forwards the host's power state to the presenter when the
// policy respects low-power mode. It reports whether the signal was applied.
func (m *Manager) SetLowPowerMode(enabled bool) bool {
	m.mu.Lock()
	if m.closed || !m.policy.RespectLowPowerMode {
		m.mu.Unlock()
		return false
	}
	changed := m.lowPower != enabled
	m.lowPower = enabled
	if p, ok := m.presenter.(PowerModeAware); ok && changed {
		m.effect(func() { p.SetLowPowerMode(enabled) })
	}
	m.mu.Unlock()
	m.drain()
	return true
}

// State returns the current presentation state.
func (m *Manager) State() PresentationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Queue returns the waiting items in presentation order.
func (m *Manager) Queue() []Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.snapshot()
}

// Status is a point-in-time view of the Manager.
type Status struct {
	State          PresentationState
	Queue          []Item
	Backgrounded   bool
	LowPower       bool
	LastPresentAt  time.Time
	NextPresentIn  time.Duration
	TrackedDedupes int
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Status{
		State:          m.state,
		Queue:          m.queue.snapshot(),
		Backgrounded:   m.backgrounded,
		LowPower:       m.lowPower,
		LastPresentAt:  m.limiter.lastStart(),
		TrackedDedupes: m.index.len(),
	}
	if m.queue.len() > 0 && m.state.Kind() == StateIdle {
		st.NextPresentIn = m.limiter.delay(m.clock.Now())
	}
	return st
}

// Close stops all timers. Later calls are no-ops; whatever is on screen is
// left to the caller.
func (m *Manager) Close() {
	m.mu.Lock()
	m.cancelWaitLocked()
	m.cancelDismissLocked()
	m.presentation = stamp{}
	m.closed = true
	m.mu.Unlock()
	m.drain()
}

func (m *Manager) transitionLocked(to PresentationState) {
	from := m.state
	m.state = to
	m.emit(func(s TelemetrySink) { s.StateTransition(from, to) })
}

func (m *Manager) effect(fx func()) {
	m.outbox = append(m.outbox, fx)
}

func (m *Manager) emit(fn func(TelemetrySink)) {
	sink := m.sink
	m.outbox = append(m.outbox, func() { fn(sink) })
}

// drain runs queued effects until the outbox is empty. Only one goroutine
// drains at a time; others return immediately and their effects are picked
// up by the active drainer.
func (m *Manager) drain() {
	m.mu.Lock()
	if m.draining {
		m.mu.Unlock()
		return
	}
	m.draining = true
	for len(m.outbox) > 0 {
		batch := m.outbox
		m.outbox = nil
		m.mu.Unlock()
		for _, fx := range batch {
			m.runEffect(fx)
		}
		m.mu.Lock()
	}
	m.draining = false
	m.mu.Unlock()
}

func (m *Manager) runEffect(fx func()) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("toast collaborator panicked", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	fx()
}
