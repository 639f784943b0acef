package toast

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultDuration is the display time used by DefaultOptions.
const DefaultDuration = 3 * time.Second

// ID identifies a toast item. IDs are compared by identity only.
type ID string

// NewID returns a fresh random identifier.
func NewID() ID { return ID(uuid.NewString()) }

func (id ID) String() string { return string(id) }

// Priority orders items in the queue and decides interruption.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityElevated
	PriorityCritical
)

// CanInterrupt reports whether an item of priority p may displace an active
// item of priority other.
func (p Priority) CanInterrupt(other Priority) bool {
	switch p {
	case PriorityCritical:
		return other == PriorityElevated || other == PriorityNormal
	case PriorityElevated:
		return other == PriorityNormal
	default:
		return false
	}
}

func (p Priority) String() string {
	switch p {
	case PriorityNormal:
		return "normal"
	case PriorityElevated:
		return "elevated"
	case PriorityCritical:
		return "critical"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority accepts the names produced by String (case-insensitive).
// An empty string yields PriorityNormal.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return PriorityNormal, nil
	case "elevated", "high":
		return PriorityElevated, nil
	case "critical":
		return PriorityCritical, nil
	default:
		return PriorityNormal, fmt.Errorf("unknown priority %q", s)
	}
}

func (p Priority) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Priority) UnmarshalText(b []byte) error {
	v, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Kind is the visual category of a toast.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindWarning Kind = "warning"
	KindInfo    Kind = "info"
	KindCustom  Kind = "custom"
)

// ParseKind accepts one of the Kind constants. An empty string yields KindInfo.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return KindInfo, nil
	case KindSuccess, KindError, KindWarning, KindInfo, KindCustom:
		return k, nil
	default:
		return KindInfo, fmt.Errorf("unknown kind %q", s)
	}
}

// Action is an optional button rendered with a toast.
type Action struct {
	Title   string
	Handler func()
}

// Options controls how an item is scheduled and rendered.
type Options struct {
	Priority Priority
	// Duration is the auto-dismiss delay. Zero means the item stays until it
	// is dismissed explicitly.
	Duration time.Duration
	// DedupeKey groups items that should coalesce. Empty means none.
	DedupeKey         string
	AllowsUserDismiss bool
	Action            *Action
}

// DefaultOptions returns normal priority, DefaultDuration, user dismissable.
func DefaultOptions() Options {
	return Options{
		Priority:          PriorityNormal,
		Duration:          DefaultDuration,
		AllowsUserDismiss: true,
	}
}

func (o Options) normalized() Options {
	if o.Duration < 0 {
		o.Duration = 0
	}
	o.DedupeKey = strings.TrimSpace(o.DedupeKey)
	return o
}

// Item is a single notification.
type Item struct {
	ID        ID
	Message   string
	Kind      Kind
	Options   Options
	CreatedAt time.Time
}

// NewItem creates an item with a fresh ID stamped with the wall clock.
// Use Manager.NewItem to stamp with the manager's clock instead.
func NewItem(message string, kind Kind, opts Options) Item {
	return newItemAt(time.Now(), message, kind, opts)
}

func newItemAt(now time.Time, message string, kind Kind, opts Options) Item {
	if kind == "" {
		kind = KindInfo
	}
	return Item{
		ID:        NewID(),
		Message:   message,
		Kind:      kind,
		Options:   opts.normalized(),
		CreatedAt: now,
	}
}

// CanCoalesce reports whether both items carry the same non-empty dedupe key.
func (it Item) CanCoalesce(other Item) bool {
	return it.Options.DedupeKey != "" && it.Options.DedupeKey == other.Options.DedupeKey
}

// MergeFrom returns it with message, kind and options taken from other.
// ID and CreatedAt are preserved.
func (it Item) MergeFrom(other Item) Item {
	it.Message = other.Message
	it.Kind = other.Kind
	it.Options = other.Options
	return it
}

// DismissalMethod records why an item left the screen or the queue.
type DismissalMethod int

const (
	DismissProgrammatic DismissalMethod = iota
	DismissAutomatic
	DismissUserInteraction
	DismissSceneInactive
	DismissInterrupted
)

func (m DismissalMethod) String() string {
	switch m {
	case DismissProgrammatic:
		return "programmatic"
	case DismissAutomatic:
		return "automatic"
	case DismissUserInteraction:
		return "user_interaction"
	case DismissSceneInactive:
		return "scene_inactive"
	case DismissInterrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("dismissal(%d)", int(m))
	}
}

// DropReason records why an incoming item was rejected.
type DropReason int

const (
	DropQueueFull DropReason = iota
	DropDuplicateSuppressed
)

func (r DropReason) String() string {
	switch r {
	case DropQueueFull:
		return "queue_full"
	case DropDuplicateSuppressed:
		return "duplicate_suppressed"
	default:
		return fmt.Sprintf("drop(%d)", int(r))
	}
}
