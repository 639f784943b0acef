package toast

// StateKind names a PresentationState variant.
type StateKind int

const (
	StateIdle StateKind = iota
	StatePresenting
	StateInterrupted
	StateDismissing
)

func (k StateKind) String() string {
	switch k {
	case StateIdle:
		return "idle"
	case StatePresenting:
		return "presenting"
	case StateInterrupted:
		return "interrupted"
	case StateDismissing:
		return "dismissing"
	default:
		return "unknown"
	}
}

// PresentationState is the state of the single presentation slot. It is one
// of Idle, Presenting, Interrupted or Dismissing.
type PresentationState interface {
	Kind() StateKind
	// Active returns the item currently on screen, if any.
	Active() (Item, bool)
	isPresentationState()
}

type Idle struct{}

// Presenting holds the item on screen.
type Presenting struct{ Item Item }

// Interrupted holds the item on screen (Current) and the lower-priority item
// it displaced (Suspended), which waits at the front of the queue.
type Interrupted struct {
	Suspended Item
	Current   Item
}

// Dismissing is transient: it collapses to Idle within the same step.
type Dismissing struct{ Item Item }

func (Idle) Kind() StateKind        { return StateIdle }
func (Presenting) Kind() StateKind  { return StatePresenting }
func (Interrupted) Kind() StateKind { return StateInterrupted }
func (Dismissing) Kind() StateKind  { return StateDismissing }

func (Idle) Active() (Item, bool)          { return Item{}, false }
func (s Presenting) Active() (Item, bool)  { return s.Item, true }
func (s Interrupted) Active() (Item, bool) { return s.Current, true }
func (s Dismissing) Active() (Item, bool)  { return s.Item, true }

func (Idle) isPresentationState()        {}
func (Presenting) isPresentationState()  {}
func (Interrupted) isPresentationState() {}
func (Dismissing) isPresentationState()  {}

// withActive replaces the on-screen item, keeping the variant.
func withActive(s PresentationState, it Item) PresentationState {
	switch v := s.(type) {
	case Presenting:
		v.Item = it
		return v
	case Interrupted:
		v.Current = it
		return v
	case Dismissing:
		v.Item = it
		return v
	default:
		return s
	}
}
