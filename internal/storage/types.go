package storage

import (
	"context"
	"errors"
	"time"

	"toastd/internal/toast"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrClosed   = errors.New("storage closed")
)

// Config configures storage.
//
// Driver values:
//   - "memory": in-process only, lost on restart
//   - "file": dependency-free file backend (jsonl journal)
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// AuditEntry records an operator action taken through the control API.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At     time.Time `json:"at"`
	Actor  string    `json:"actor,omitempty"`
	Action string    `json:"action"`
	Target string    `json:"target,omitempty"`
	OK     bool      `json:"ok"`
	Error  string    `json:"error,omitempty"`
}

// Store is the persistence API used by the daemon. Saving a snapshot under
// an existing key replaces it without changing its position.
type Store interface {
	toast.SnapshotStore
	AppendAudit(ctx context.Context, e AuditEntry) error
	Close() error
}
