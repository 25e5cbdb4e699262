package schedule

import "time"

// next computes up to "want" future fire times for sp, extending the
// queue tail when one exists. It is pure with respect to its inputs.
//
// Daily: step everyDays days at the configured time of day, clamped
// forward to the start date and bounded by the end date.
//
// Interval: when a tail exists, entries only extend the known cadence
// (tail + k*period); phase is not re-derived. When the queue is empty,
// the anchor is the smallest t >= now on the epoch-aligned grid
// (t - syncOffset) mod period == 0. Because the grid is absolute, a
// schedule that drains and re-anchors after a long stall skips the
// missed intervals but never shifts the cadence.
func next(sp Spec, tail time.Time, hasTail bool, now time.Time, want int) []time.Time {
	if want <= 0 {
		return nil
	}
	switch sp.kind {
	case KindDaily:
		return nextDaily(sp, tail, hasTail, want)
	case KindInterval:
		return nextInterval(sp, tail, hasTail, now, want)
	default:
		return nil
	}
}

func nextDaily(sp Spec, tail time.Time, hasTail bool, want int) []time.Time {
	first := sp.at.On(sp.start)

	t := first
	if hasTail {
		t = tail.AddDate(0, 0, sp.everyDays)
	}
	if t.Before(first) {
		t = first
	}

	out := make([]time.Time, 0, want)
	for len(out) < want {
		if !sp.end.IsZero() && t.After(sp.end) {
			break
		}
		out = append(out, t)
		t = t.AddDate(0, 0, sp.everyDays)
	}
	return out
}

func nextInterval(sp Spec, tail time.Time, hasTail bool, now time.Time, want int) []time.Time {
	var t time.Time
	if hasTail {
		t = tail.Add(sp.period)
	} else {
		ref := now
		if !sp.start.IsZero() && ref.Before(sp.start) {
			ref = sp.start
		}
		t = alignForward(ref, sp.period, sp.syncOffset)
	}

	out := make([]time.Time, 0, want)
	for len(out) < want {
		if !sp.end.IsZero() && t.After(sp.end) {
			break
		}
		out = append(out, t)
		t = t.Add(sp.period)
	}
	return out
}

// alignForward returns the smallest t >= ref with
// (t - offset) mod period == 0, relative to the Unix epoch. The
// remainder is computed on Unix nanoseconds directly; time.Truncate
// would round against Go's year-1 zero time, which only matches the
// Unix grid for periods that divide the gap between the two epochs.
func alignForward(ref time.Time, period, offset time.Duration) time.Time {
	rem := (ref.UnixNano() - int64(offset)) % int64(period)
	if rem < 0 {
		rem += int64(period)
	}
	if rem == 0 {
		return ref
	}
	return ref.Add(time.Duration(int64(period) - rem))
}
