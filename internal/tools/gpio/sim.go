package gpio

import (
	"context"
	"sync"
)

// SimulatedController is a host-side PinController for tests and for
// compiling without hardware attached.
type SimulatedController struct {
	mu     sync.Mutex
	levels map[int]int
}

func NewSimulatedController() *SimulatedController {
	return &SimulatedController{levels: make(map[int]int)}
}

func (s *SimulatedController) SetPin(_ context.Context, pin int, level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels[pin] = level
	return nil
}

// Level returns the last level set for pin, for test assertions.
func (s *SimulatedController) Level(pin int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.levels[pin]
	return v, ok
}
