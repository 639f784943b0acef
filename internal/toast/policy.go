package toast

import (
	"errors"
	"fmt"
	"time"
)

// Policy is the immutable scheduling configuration of a Manager.
// Changing it requires constructing a new Manager.
type Policy struct {
	// MinimumInterval spaces consecutive presentation starts. Interruptions
	// ignore it.
	MinimumInterval time.Duration
	// MaxQueueSize bounds the number of waiting items (the active item is
	// not counted).
	MaxQueueSize int
	// CoalescingWindow bounds how old an item may be and still absorb a
	// same-key arrival. Zero removes the bound.
	CoalescingWindow      time.Duration
	PersistCriticalToasts bool
	RespectLowPowerMode   bool
}

// DefaultPolicy mirrors the daemon's built-in configuration.
func DefaultPolicy() Policy {
	return Policy{
		MinimumInterval:       800 * time.Millisecond,
		MaxQueueSize:          5,
		CoalescingWindow:      3 * time.Second,
		PersistCriticalToasts: true,
		RespectLowPowerMode:   true,
	}
}

var ErrInvalidPolicy = errors.New("invalid toast policy")

// Validate rejects values the Manager cannot honour.
func (p Policy) Validate() error {
	if p.MinimumInterval < 0 {
		return fmt.Errorf("%w: minimum interval %s is negative", ErrInvalidPolicy, p.MinimumInterval)
	}
	if p.MaxQueueSize < 1 {
		return fmt.Errorf("%w: max queue size must be at least 1 (got %d)", ErrInvalidPolicy, p.MaxQueueSize)
	}
	if p.CoalescingWindow < 0 {
		return fmt.Errorf("%w: coalescing window %s is negative", ErrInvalidPolicy, p.CoalescingWindow)
	}
	return nil
}

// withinWindow reports whether an arrival at now may still coalesce into an
// item created at createdAt.
func (p Policy) withinWindow(createdAt, now time.Time) bool {
	if p.CoalescingWindow == 0 {
		return true
	}
	return now.Sub(createdAt) <= p.CoalescingWindow
}
