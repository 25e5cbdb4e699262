// Package history persists fired tick notifications.
//
// This is an audit trail of what fired and how late, not schedule
// persistence: schedules are rebuilt from configuration on every start.
package history
