// Package toast schedules transient, non-blocking notifications ("toasts").
//
// A Manager owns a single presentation slot and a bounded admission queue.
// It coalesces items that share a dedupe key, lets higher-priority items
// interrupt lower-priority ones, spaces presentations by a minimum interval
// and dismisses items on expiry, on request, or when the host goes to the
// background. Rendering is delegated to a Presenter; observations are
// reported to a TelemetrySink; critical items can survive a background
// transition through a SnapshotStore.
package toast
