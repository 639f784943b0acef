package app

import (
	"context"
	"errors"
	"sync"

	"toastd/internal/toast"
	logx "toastd/pkg/logx"
)

// Toasts forwards calls to the live toast.Manager. The manager is replaced
// when the policy or the presenter set changes; callers keep this handle.
type Toasts struct {
	log logx.Logger

	mu       sync.RWMutex
	m        *toast.Manager
	lowPower bool
}

func newToasts(log logx.Logger, m *toast.Manager) *Toasts {
	return &Toasts{log: log, m: m}
}

// Manager returns the live manager.
func (t *Toasts) Manager() *toast.Manager {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.m
}

// swap hands the schedule over to next the way a host app would across a
// background/foreground cycle: critical items are persisted by the old
// manager and restored by the new one. Low power and background state carry
// over.
func (t *Toasts) swap(ctx context.Context, next *toast.Manager) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.m
	backgrounded := false
	var errs []error
	if prev != nil {
		backgrounded = prev.Status().Backgrounded
		if err := prev.HandleAppDidEnterBackground(ctx); err != nil {
			errs = append(errs, err)
		}
		prev.Close()
	}
	t.m = next
	if t.lowPower {
		next.SetLowPowerMode(true)
	}
	if backgrounded {
		errs = append(errs, next.HandleAppDidEnterBackground(ctx))
	} else {
		errs = append(errs, next.HandleAppWillEnterForeground(ctx))
	}
	t.log.Info("toast manager replaced", logx.Bool("backgrounded", backgrounded), logx.Bool("low_power", t.lowPower))
	return errors.Join(errs...)
}

func (t *Toasts) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.m != nil {
		t.m.Close()
	}
}

func (t *Toasts) NewItem(message string, kind toast.Kind, opts toast.Options) toast.Item {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.m.NewItem(message, kind, opts)
}

func (t *Toasts) Show(it toast.Item) toast.Admission {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.m.Show(it)
}

func (t *Toasts) ShowMessage(message string, kind toast.Kind, opts toast.Options) toast.Admission {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.m.ShowMessage(message, kind, opts)
}

func (t *Toasts) Dismiss(id toast.ID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.m.Dismiss(id)
}

func (t *Toasts) DismissAll() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.m.DismissAll()
}

func (t *Toasts) HandleAppDidEnterBackground(ctx context.Context) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.m.HandleAppDidEnterBackground(ctx)
}

func (t *Toasts) HandleAppWillEnterForeground(ctx context.Context) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.m.HandleAppWillEnterForeground(ctx)
}

// SetLowPowerMode records the host's power state so a replacement manager
// starts in it.
func (t *Toasts) SetLowPowerMode(enabled bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lowPower = enabled
	return t.m.SetLowPowerMode(enabled)
}

func (t *Toasts) PerformMemoryCleanup() {
	t.mu.RLock()
	defer t.mu.RUnlock()
	t.m.PerformMemoryCleanup()
}

func (t *Toasts) Status() toast.Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.m.Status()
}
