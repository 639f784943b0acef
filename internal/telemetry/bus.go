package telemetry

import (
	"time"

	"toastd/internal/eventbus"
	"toastd/internal/toast"
)

const (
	EventShown      = "toast.shown"
	EventDismissed  = "toast.dismissed"
	EventCoalesced  = "toast.coalesced"
	EventDropped    = "toast.dropped"
	EventTransition = "toast.state"
)

type ShownData struct {
	ID       string  `json:"id"`
	Kind     string  `json:"kind"`
	Duration float64 `json:"duration_seconds"`
}

type DismissedData struct {
	ID     string `json:"id"`
	Method string `json:"method"`
}

type CoalescedData struct {
	ID      string `json:"id"`
	Updated string `json:"updated"`
}

type DroppedData struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

type TransitionData struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Bus publishes observations on an eventbus. Publishing never blocks.
type Bus struct {
	bus eventbus.Bus
	now func() time.Time
}

func NewBus(bus eventbus.Bus) *Bus {
	return &Bus{bus: bus, now: time.Now}
}

func (b *Bus) publish(typ string, data any) {
	if b == nil || b.bus == nil {
		return
	}
	b.bus.Publish(eventbus.Event{Type: typ, Time: b.now(), Data: data})
}

func (b *Bus) ToastShown(id toast.ID, kind toast.Kind, d time.Duration) {
	b.publish(EventShown, ShownData{ID: id.String(), Kind: string(kind), Duration: d.Seconds()})
}

func (b *Bus) ToastDismissed(id toast.ID, method toast.DismissalMethod) {
	b.publish(EventDismissed, DismissedData{ID: id.String(), Method: method.String()})
}

func (b *Bus) ToastCoalesced(orig, updated toast.ID) {
	b.publish(EventCoalesced, CoalescedData{ID: orig.String(), Updated: updated.String()})
}

func (b *Bus) ToastDropped(id toast.ID, reason toast.DropReason) {
	b.publish(EventDropped, DroppedData{ID: id.String(), Reason: reason.String()})
}

func (b *Bus) StateTransition(from, to toast.PresentationState) {
	b.publish(EventTransition, TransitionData{From: from.Kind().String(), To: to.Kind().String()})
}
