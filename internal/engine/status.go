package engine

import "sync"

// Status is a single-slot, last-write-wins message surface. Every write
// replaces the previous message; readers always see the most recent one.
type Status struct {
	mu      sync.Mutex
	message string
	isError bool
}

// Set replaces the current message with an informational one.
func (s *Status) Set(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
	s.isError = false
}

// SetError replaces the current message with an error one.
func (s *Status) SetError(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
	s.isError = true
}

// Get returns the current message and whether it reports an error.
func (s *Status) Get() (message string, isError bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message, s.isError
}
