// Package storage persists toast snapshots across background transitions
// and keeps an append-only audit trail of operator actions.
//
// Backends: "memory" (process lifetime), "file" (JSON Lines journal) and
// "sqlite" (modernc.org/sqlite, pure Go).
package storage
