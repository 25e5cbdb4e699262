package schedule

import "time"

// Snapshot is a consistent, read-only view of one scheduler for
// diagnostics.
type Snapshot struct {
	Name            string
	Kind            Kind
	Running         bool
	Pending         []time.Time
	Fired           uint64
	HandlerFailures uint64
	Err             string
}

func (s *Scheduler) Snapshot() Snapshot {
	snap := Snapshot{
		Name:            s.name,
		Kind:            s.spec.kind,
		Running:         s.Running(),
		Pending:         s.q.snapshot(),
		Fired:           s.fired.Load(),
		HandlerFailures: s.disp.Failures(),
	}
	if err := s.Err(); err != nil {
		snap.Err = err.Error()
	}
	return snap
}
