package scheduler

import "time"

// Next returns the next trigger time, zero when nothing is scheduled.
func (s *Service) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextLocked()
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Enabled:  s.cfg.Enabled,
		Timezone: s.locNameLocked(),
	}
	if s.def != nil {
		snap.At = s.def.at
		snap.Spec = s.def.spec
		snap.Active = s.def.entryID != 0
		snap.Next = s.nextLocked()
		if s.c != nil && s.def.entryID != 0 {
			snap.Prev = s.c.Entry(s.def.entryID).Prev
		}
	}
	s.mu.Unlock()

	s.rmu.Lock()
	snap.LastRun = s.last.at
	if s.last.took > 0 {
		snap.LastTook = s.last.took.Round(time.Millisecond).String()
	}
	snap.LastErr = s.last.err
	snap.Runs = s.runs
	snap.Skipped = s.skipped
	s.rmu.Unlock()
	return snap
}
