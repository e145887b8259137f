// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dispatch

import "sync"

// State holds the progress counters of one dispatcher. It is safe for
// concurrent use.
type State struct {
	mu   sync.Mutex
	snap Snapshot
}

// Snapshot is a point-in-time copy of the dispatcher's counters.
type Snapshot struct {
	Total        int
	Completed    int
	Failed       int
	Attempts     int
	Retries      int
	Timeouts     int
	Checkpointed int
}

// Remaining returns the number of records without an outcome yet.
func (s Snapshot) Remaining() int {
	return s.Total - s.Completed - s.Failed
}

// Snapshot returns the current counters.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *State) update(fn func(*Snapshot)) {
	s.mu.Lock()
	fn(&s.snap)
	s.mu.Unlock()
}

func (s *State) start(total int) { s.update(func(c *Snapshot) { *c = Snapshot{Total: total} }) }
func (s *State) attempted() { s.update(func(c *Snapshot) { c.Attempts++ }) }
func (s *State) retried() { s.update(func(c *Snapshot) { c.Retries++ }) }
func (s *State) timedOut() { s.update(func(c *Snapshot) { c.Timeouts++ }) }
func (s *State) completed() { s.update(func(c *Snapshot) { c.Completed++ }) }
func (s *State) failed() { s.update(func(c *Snapshot) { c.Failed++ }) }
func (s *State) checkpointed(n int) { s.update(func(c *Snapshot) { c.Checkpointed += n }) }
