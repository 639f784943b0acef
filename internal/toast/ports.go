package toast

import (
	"context"
	"time"
)

// Presenter renders the active item. Present replaces whatever is currently
// shown. onDismiss reports a dismissal originating at the presentation
// surface (typically DismissUserInteraction); only the first call for a given
// presentation is honoured.
type Presenter interface {
	Present(item Item, onDismiss func(DismissalMethod))
	RemoveActive()
}

// Updater is implemented by presenters that can refresh the active item in
// place after a coalesce.
type Updater interface {
	Update(item Item)
}

// PowerModeAware is implemented by presenters that can reduce their work in
// low-power mode.
type PowerModeAware interface {
	SetLowPowerMode(enabled bool)
}

// ResourceReleaser is implemented by presenters holding caches that can be
// dropped under memory pressure.
type ResourceReleaser interface {
	ReleaseResources()
}

// TelemetrySink observes scheduler activity. Calls are made outside the
// Manager's lock, in the order the events happened.
type TelemetrySink interface {
	ToastShown(id ID, kind Kind, duration time.Duration)
	ToastDismissed(id ID, method DismissalMethod)
	ToastCoalesced(originalID, updatedID ID)
	ToastDropped(id ID, reason DropReason)
	StateTransition(from, to PresentationState)
}

// Snapshot is the persisted form of a critical item. The action handler is
// not persisted; only its title survives.
type Snapshot struct {
	Key               string        `json:"key"`
	Message           string        `json:"message"`
	Kind              Kind          `json:"kind"`
	Priority          Priority      `json:"priority"`
	Duration          time.Duration `json:"duration"`
	DedupeKey         string        `json:"dedupe_key,omitempty"`
	AllowsUserDismiss bool          `json:"allows_user_dismiss"`
	ActionTitle       string        `json:"action_title,omitempty"`
	SavedAt           time.Time     `json:"saved_at"`
}

// SnapshotStore persists snapshots across a background transition.
// LoadAll returns snapshots in the order they were saved.
type SnapshotStore interface {
	Save(ctx context.Context, key string, snap Snapshot) error
	LoadAll(ctx context.Context) ([]Snapshot, error)
	Clear(ctx context.Context) error
}

func snapshotOf(it Item, key string, now time.Time) Snapshot {
	s := Snapshot{
		Key:               key,
		Message:           it.Message,
		Kind:              it.Kind,
		Priority:          it.Options.Priority,
		Duration:          it.Options.Duration,
		DedupeKey:         it.Options.DedupeKey,
		AllowsUserDismiss: it.Options.AllowsUserDismiss,
		SavedAt:           now,
	}
	if it.Options.Action != nil {
		s.ActionTitle = it.Options.Action.Title
	}
	return s
}

// Options rebuilds the scheduling options of a snapshot.
func (s Snapshot) Options() Options {
	o := Options{
		Priority:          s.Priority,
		Duration:          s.Duration,
		DedupeKey:         s.DedupeKey,
		AllowsUserDismiss: s.AllowsUserDismiss,
	}
	if s.ActionTitle != "" {
		o.Action = &Action{Title: s.ActionTitle}
	}
	return o
}

type nopSink struct{}

func (nopSink) ToastShown(ID, Kind, time.Duration)                   {}
func (nopSink) ToastDismissed(ID, DismissalMethod)                   {}
func (nopSink) ToastCoalesced(ID, ID)                                {}
func (nopSink) ToastDropped(ID, DropReason)                          {}
func (nopSink) StateTransition(PresentationState, PresentationState) {}
