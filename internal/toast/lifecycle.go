package toast

import (
	"context"
	"errors"
	"fmt"

	logx "toastd/pkg/logx"
)

// HandleAppDidEnterBackground tears the schedule down for an inactive host.
// When the policy persists critical toasts, every critical item (on screen or
// queued) is saved to the snapshot store first. All timers are cancelled, the
// active item is removed with DismissSceneInactive and the queue is cleared.
// Repeated calls before the next foreground are no-ops. Items shown while in
// the background are queued and presented after the foreground transition.
func (m *Manager) HandleAppDidEnterBackground(ctx context.Context) error {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()

	m.mu.Lock()
	if m.closed || m.backgrounded {
		m.mu.Unlock()
		return nil
	}
	m.backgrounded = true
	store := m.store
	var snaps []Snapshot
	if m.policy.PersistCriticalToasts && store != nil {
		now := m.clock.Now()
		if active, ok := m.state.Active(); ok && active.Options.Priority == PriorityCritical {
			snaps = append(snaps, snapshotOf(active, NewID().String(), now))
		}
		for _, it := range m.queue.items {
			if it.Options.Priority == PriorityCritical {
				snaps = append(snaps, snapshotOf(it, NewID().String(), now))
			}
		}
	}
	n := m.clearLocked(DismissSceneInactive)
	m.mu.Unlock()
	m.drain()

	var errs []error
	for _, s := range snaps {
		if err := store.Save(ctx, s.Key, s); err != nil {
			errs = append(errs, fmt.Errorf("save snapshot %s: %w", s.Key, err))
		}
	}
	m.log.Info("toasts backgrounded", logx.Int("cleared", n), logx.Int("persisted", len(snaps)-len(errs)))
	if err := errors.Join(errs...); err != nil {
		m.log.Warn("snapshot persistence failed", logx.Err(err))
		return err
	}
	return nil
}

// HandleAppWillEnterForeground resumes presenting and restores persisted
// critical items as fresh toasts (new IDs and timestamps), admitted through
// Show in the order they were saved. The store is cleared before anything is
// re-admitted; if clearing fails the snapshots stay put and nothing is
// restored, so a later foreground can retry without duplicates.
func (m *Manager) HandleAppWillEnterForeground(ctx context.Context) error {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.backgrounded = false
	store := m.store
	m.mu.Unlock()

	var err error
	restored := 0
	if store != nil {
		var snaps []Snapshot
		snaps, err = store.LoadAll(ctx)
		if err != nil {
			err = fmt.Errorf("load snapshots: %w", err)
		} else if cerr := store.Clear(ctx); cerr != nil {
			err = fmt.Errorf("clear snapshots: %w", cerr)
		} else {
			for _, s := range snaps {
				m.Show(m.NewItem(s.Message, s.Kind, s.Options()))
				restored++
			}
		}
	}

	m.mu.Lock()
	m.pumpLocked()
	m.mu.Unlock()
	m.drain()

	if restored > 0 {
		m.log.Info("toasts restored", logx.Int("count", restored))
	}
	if err != nil {
		m.log.Warn("snapshot restore failed", logx.Err(err))
	}
	return err
}
