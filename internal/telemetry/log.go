package telemetry

import (
	"time"

	"toastd/internal/toast"
	logx "toastd/pkg/logx"
)

// Log writes every observation as a debug line, drops as warnings.
type Log struct {
	log logx.Logger
}

func NewLog(log logx.Logger) *Log {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Log{log: log}
}

func (l *Log) ToastShown(id toast.ID, kind toast.Kind, d time.Duration) {
	l.log.Debug("toast shown", logx.String("id", id.String()), logx.String("kind", string(kind)), logx.Duration("duration", d))
}

func (l *Log) ToastDismissed(id toast.ID, method toast.DismissalMethod) {
	l.log.Debug("toast dismissed", logx.String("id", id.String()), logx.String("method", method.String()))
}

func (l *Log) ToastCoalesced(orig, updated toast.ID) {
	l.log.Debug("toast coalesced", logx.String("id", orig.String()), logx.String("updated", updated.String()))
}

func (l *Log) ToastDropped(id toast.ID, reason toast.DropReason) {
	l.log.Warn("toast dropped", logx.String("id", id.String()), logx.String("reason", reason.String()))
}

func (l *Log) StateTransition(from, to toast.PresentationState) {
	l.log.Trace("toast state", logx.String("from", from.Kind().String()), logx.String("to", to.Kind().String()))
}
