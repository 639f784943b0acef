package presenter

import (
	"runtime/debug"
	"sync"

	"toastd/internal/toast"
	logx "toastd/pkg/logx"
)

// Multi fans a presentation out to several presenters. The first dismissal
// reported by any of them is forwarded; the rest are ignored. A panicking
// presenter is logged and skipped.
type Multi struct {
	log        logx.Logger
	presenters []toast.Presenter
}

func NewMulti(log logx.Logger, presenters ...toast.Presenter) *Multi {
	out := make([]toast.Presenter, 0, len(presenters))
	for _, p := range presenters {
		if p != nil {
			out = append(out, p)
		}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Multi{log: log, presenters: out}
}

func (m *Multi) each(op string, fn func(toast.Presenter)) {
	for _, p := range m.presenters {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.log.Error("presenter panicked", logx.String("op", op), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
				}
			}()
			fn(p)
		}()
	}
}

func (m *Multi) Present(it toast.Item, onDismiss func(toast.DismissalMethod)) {
	var once sync.Once
	first := func(method toast.DismissalMethod) {
		once.Do(func() { onDismiss(method) })
	}
	m.each("present", func(p toast.Presenter) { p.Present(it, first) })
}

func (m *Multi) RemoveActive() {
	m.each("remove", func(p toast.Presenter) { p.RemoveActive() })
}

func (m *Multi) Update(it toast.Item) {
	m.each("update", func(p toast.Presenter) {
		if u, ok := p.(toast.Updater); ok {
			u.Update(it)
		}
	})
}

func (m *Multi) SetLowPowerMode(enabled bool) {
	m.each("power", func(p toast.Presenter) {
		if pm, ok := p.(toast.PowerModeAware); ok {
			pm.SetLowPowerMode(enabled)
		}
	})
}

func (m *Multi) ReleaseResources() {
	m.each("release", func(p toast.Presenter) {
		if r, ok := p.(toast.ResourceReleaser); ok {
			r.ReleaseResources()
		}
	})
}
