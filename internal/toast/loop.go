package toast

import (
	"time"

	logx "toastd/pkg/logx"
)

// pumpLocked presents the queue head when the slot is free and the rate
// limiter allows it. Otherwise it arms a single wait timer that calls back
// into pumpLocked.
func (m *Manager) pumpLocked() {
	if m.closed || m.backgrounded {
		return
	}
	if _, busy := m.state.Active(); busy {
		return
	}
	if m.queue.len() == 0 {
		m.cancelWaitLocked()
		return
	}
	now := m.clock.Now()
	if d := m.limiter.delay(now); d > 0 {
		m.armWaitLocked(d)
		return
	}
	m.cancelWaitLocked()
	it, _ := m.queue.popFront()
	m.startPresentationLocked(it, Presenting{Item: it}, now)
}

// startPresentationLocked hands it to the presenter, records the start for
// the rate limiter, moves to next and arms the auto-dismiss timer.
func (m *Manager) startPresentationLocked(it Item, next PresentationState, now time.Time) {
	m.seq++
	pres := stamp{seq: m.seq, id: it.ID}
	m.presentation = pres

	onDismiss := func(method DismissalMethod) { m.presenterDismissed(pres, method) }
	m.effect(func() { m.presenter.Present(it, onDismiss) })
	m.limiter.markStart(now)
	m.transitionLocked(next)
	m.emit(func(s TelemetrySink) { s.ToastShown(it.ID, it.Kind, it.Options.Duration) })
	m.armDismissLocked(it)

	m.log.Debug("toast presented",
		logx.String("id", it.ID.String()),
		logx.String("kind", string(it.Kind)),
		logx.String("priority", it.Options.Priority.String()),
		logx.Duration("duration", it.Options.Duration),
		logx.Int("queued", m.queue.len()),
	)
}

// presenterDismissed handles onDismiss from the presenter. Only the first
// call for the current presentation has an effect.
func (m *Manager) presenterDismissed(pres stamp, method DismissalMethod) {
	m.mu.Lock()
	if m.closed || m.presentation != pres {
		m.mu.Unlock()
		return
	}
	m.dismissActiveLocked(method)
	m.mu.Unlock()
	m.drain()
}

// armDismissLocked (re)starts the auto-dismiss timer for the active item.
// A zero duration leaves the item on screen until dismissed.
func (m *Manager) armDismissLocked(it Item) {
	m.cancelDismissLocked()
	if it.Options.Duration <= 0 {
		return
	}
	m.seq++
	st := stamp{seq: m.seq, id: it.ID}
	m.dismissStamp = st
	m.dismissTimer = m.clock.AfterFunc(it.Options.Duration, func() { m.dismissTimerFired(st) })
}

func (m *Manager) dismissTimerFired(st stamp) {
	m.mu.Lock()
	if m.closed || m.dismissStamp != st {
		m.mu.Unlock()
		return
	}
	m.dismissTimer = nil
	m.dismissStamp = stamp{}
	if active, ok := m.state.Active(); ok && active.ID == st.id {
		m.dismissActiveLocked(DismissAutomatic)
	}
	m.mu.Unlock()
	m.drain()
}

func (m *Manager) cancelDismissLocked() {
	if m.dismissTimer != nil {
		m.dismissTimer.Stop()
		m.dismissTimer = nil
	}
	m.dismissStamp = stamp{}
}

func (m *Manager) armWaitLocked(d time.Duration) {
	m.cancelWaitLocked()
	m.seq++
	seq := m.seq
	m.waitSeq = seq
	m.waitTimer = m.clock.AfterFunc(d, func() { m.waitTimerFired(seq) })
}

func (m *Manager) waitTimerFired(seq uint64) {
	m.mu.Lock()
	if m.closed || m.waitSeq != seq {
		m.mu.Unlock()
		return
	}
	m.waitTimer = nil
	m.waitSeq = 0
	m.pumpLocked()
	m.mu.Unlock()
	m.drain()
}

func (m *Manager) cancelWaitLocked() {
	if m.waitTimer != nil {
		m.waitTimer.Stop()
		m.waitTimer = nil
	}
	m.waitSeq = 0
}
