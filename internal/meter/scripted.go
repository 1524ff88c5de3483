package meter

import (
	"context"
	"sync"
	"time"
)

// Step is one scripted ReadSample outcome.
type Step struct {
	Sample int
	Err    error
}

// Scripted is a deterministic Meter for tests and simulation.
//
// ReadSample pops queued steps in order; once the queue is empty it
// returns Fallback.
type Scripted struct {
	mu sync.Mutex

	steps    []Step
	Fallback Step
	StartErr error
	StopErr  error

	starts int
	stops  int
	reads  int
}

// NewScripted returns a meter that yields samples in order.
func NewScripted(samples ...int) *Scripted {
	s := &Scripted{}
	for _, v := range samples {
		s.steps = append(s.steps, Step{Sample: v})
	}
	return s
}

// Push queues another outcome.
func (s *Scripted) Push(step Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, step)
}

func (s *Scripted) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	return s.StartErr
}

func (s *Scripted) ReadSample(ctx context.Context, timeout time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if len(s.steps) == 0 {
		return s.Fallback.Sample, s.Fallback.Err
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	return step.Sample, step.Err
}

func (s *Scripted) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return s.StopErr
}

// Counts returns how many times Start, ReadSample and Stop ran.
func (s *Scripted) Counts() (starts, reads, stops int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts, s.reads, s.stops
}

var _ Meter = (*Scripted)(nil)
