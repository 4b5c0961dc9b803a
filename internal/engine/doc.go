// Package engine runs the economy: session join and leave, the action
// handlers, the quest evaluator, offline catch-up and the tick loops.
//
// ARCHITECTURAL RULE: only the engine mutates player state, and only inside
// the owning session's lock. Notifications are delivered after the lock is
// released; saves are queued to the session's writer and never awaited,
// except the final save on Leave.
package engine
