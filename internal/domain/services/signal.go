package services

import "sync"

// Signal is a re-armable broadcast wait point. Every caller that obtained a
// channel from Wait is released by the next Notify; the Signal then re-arms
// so later Wait calls block until the following Notify.
//
// Signal carries no payload. Waiters read shared state after waking.
type Signal struct {
	mu sync.Mutex
	ch chan struct{}
}

// NewSignal creates an armed signal
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Wait returns a channel that is closed by the next Notify
func (s *Signal) Wait() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

// Notify releases all current waiters and re-arms the signal
func (s *Signal) Notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.ch)
	s.ch = make(chan struct{})
}
