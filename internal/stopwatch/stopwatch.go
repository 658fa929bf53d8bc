// Package stopwatch measures wall-clock durations for named phases of a run.
package stopwatch

import (
	"sync"
	"time"
)

// Phase is one named timing in a Report.
type Phase struct {
	Name string
	D    time.Duration
}

// Stopwatch records durations for named phases. Phases appear in reports in
// the order they were first started. Safe for concurrent use.
type Stopwatch struct {
	mu      sync.Mutex
	order   []string
	running map[string]time.Time
	done    map[string]time.Duration
}

// New returns an empty Stopwatch.
func New() *Stopwatch {
	return &Stopwatch{
		running: make(map[string]time.Time),
		done:    make(map[string]time.Duration),
	}
}

// Start begins timing the named phase. Starting an already running phase
// resets its start time; restarting a finished phase times it again without
// changing its report position.
func (s *Stopwatch) Start(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, run := s.running[name]; !run {
		if _, fin := s.done[name]; !fin {
			s.order = append(s.order, name)
		}
	}
	s.running[name] = time.Now()
}

// Stop finishes the named phase and returns its duration. Stopping a phase
// that was never started returns zero.
func (s *Stopwatch) Stop(name string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	t0, ok := s.running[name]
	if !ok {
		return 0
	}
	delete(s.running, name)
	d := time.Since(t0)
	s.done[name] = d
	return d
}

// Elapsed returns the recorded duration of a finished phase, the running
// time of an unfinished one, and zero for an unknown name.
func (s *Stopwatch) Elapsed(name string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t0, ok := s.running[name]; ok {
		return time.Since(t0)
	}
	return s.done[name]
}

// Report returns every phase in first-start order. Phases still running are
// reported with the time elapsed so far.
func (s *Stopwatch) Report() []Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Phase, 0, len(s.order))
	for _, name := range s.order {
		if t0, ok := s.running[name]; ok {
			out = append(out, Phase{Name: name, D: time.Since(t0)})
			continue
		}
		out = append(out, Phase{Name: name, D: s.done[name]})
	}
	return out
}
