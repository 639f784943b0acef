package telemetry

import (
	"runtime/debug"
	"time"

	"toastd/internal/toast"
	logx "toastd/pkg/logx"
)

// Multi fans observations out to several sinks. A panicking sink is logged
// and skipped; the others still receive the event.
type Multi struct {
	sinks []toast.TelemetrySink
	log   logx.Logger
}

func NewMulti(log logx.Logger, sinks ...toast.TelemetrySink) *Multi {
	out := make([]toast.TelemetrySink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Multi{sinks: out, log: log}
}

func (m *Multi) each(fn func(toast.TelemetrySink)) {
	for _, s := range m.sinks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.log.Error("telemetry sink panicked", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
				}
			}()
			fn(s)
		}()
	}
}

func (m *Multi) ToastShown(id toast.ID, kind toast.Kind, d time.Duration) {
	m.each(func(s toast.TelemetrySink) { s.ToastShown(id, kind, d) })
}

func (m *Multi) ToastDismissed(id toast.ID, method toast.DismissalMethod) {
	m.each(func(s toast.TelemetrySink) { s.ToastDismissed(id, method) })
}

func (m *Multi) ToastCoalesced(orig, updated toast.ID) {
	m.each(func(s toast.TelemetrySink) { s.ToastCoalesced(orig, updated) })
}

func (m *Multi) ToastDropped(id toast.ID, reason toast.DropReason) {
	m.each(func(s toast.TelemetrySink) { s.ToastDropped(id, reason) })
}

func (m *Multi) StateTransition(from, to toast.PresentationState) {
	m.each(func(s toast.TelemetrySink) { s.StateTransition(from, to) })
}
