// Package reminders shows toasts on recurring schedules.
//
// Schedules are cron expressions (robfig/cron, optional seconds field and
// descriptors such as "@hourly"), Go durations ("55m") or HH:MM intervals
// ("02:30"). Each firing goes through the toast manager like any other
// caller, so reminders are rate limited, coalesced by their dedupe key and
// dropped when the queue is full.
package reminders
