// Package schedule implements a recurring tick scheduler.
//
// # Overview
//
// A Scheduler is built from an immutable recurrence Spec (a daily
// calendar pattern or a fixed-period interval), pre-computes a bounded,
// ascending queue of future fire times, and runs a single monitor
// goroutine that polls the wall clock against the head of that queue.
// When an entry becomes due the monitor emits a Notification carrying
// the scheduled instant, the instant the monitor observed it, and the
// deviation between the two, then tops the queue back up.
//
// # Firing precision
//
// This is a polling design, not an exact-alarm design: firing precision
// is bounded by the poll interval and Notification.Deviation captures
// exactly that slack. Deviation is never negative; an entry is only
// fired after its scheduled instant has passed.
//
// # Subscribers
//
// Notifications fan out through a Dispatcher. Handlers run on their own
// goroutines; a panicking or failing handler is logged and isolated and
// never affects other handlers or the monitor loop. Dispatch returns a
// channel that closes once every handler for that notification has
// returned, for callers that need completion; the monitor does not wait
// on it.
package schedule
