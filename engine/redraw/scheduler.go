// Package redraw implements the process-wide queue of areas waiting to be
// repainted. Triggers enqueue; the renderer drains once per frame.
package redraw

import (
	"context"
	"sync"
	"time"
)

// Target is something that can be queued for repaint. The scheduler flips
// its dirty bit while holding its own lock so the bit always agrees with
// queue membership.
type Target interface {
	Path() string
	MarkDirty()
	MarkClean()
}

// Scheduler is a de-duplicating FIFO of pending redraws. Its lock is
// independent of any Area lock.
type Scheduler struct {
	mu      sync.Mutex
	pending map[string]Target
	order   []string
	drains  uint64
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{pending: map[string]Target{}}
}

// Enqueue marks t dirty and queues it unless it is already pending.
// Returns true if t was newly queued.
func (s *Scheduler) Enqueue(t Target) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t.MarkDirty()
	path := t.Path()
	if _, ok := s.pending[path]; ok {
		return false
	}
	s.pending[path] = t
	s.order = append(s.order, path)
	return true
}

// Drain removes and returns every pending target in enqueue order, marking
// each clean. An enqueue that races with Drain lands in the next cycle.
func (s *Scheduler) Drain() []Target {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.drains++
	if len(s.order) == 0 {
		return nil
	}
	out := make([]Target, 0, len(s.order))
	for _, path := range s.order {
		t := s.pending[path]
		t.MarkClean()
		out = append(out, t)
	}
	s.pending = map[string]Target{}
	s.order = s.order[:0]
	return out
}

// Pending reports whether the target with this path is queued.
func (s *Scheduler) Pending(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[path]
	return ok
}

// Len returns the number of queued targets.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Drains returns how many drain cycles have run.
func (s *Scheduler) Drains() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drains
}

// Run drains once per interval and hands non-empty batches to paint until
// ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration, paint func([]Target)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if batch := s.Drain(); len(batch) > 0 {
				paint(batch)
			}
		}
	}
}
