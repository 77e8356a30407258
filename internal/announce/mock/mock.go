// Package mock provides a recording announcement service for tests.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/segue/internal/announce"
)

// Service records announce and prewarm requests and lets tests drive the
// completion signal by hand.
type Service struct {
	AnnounceErr error
	PrewarmErr  error

	mu        sync.Mutex
	announces []announce.Request
	prewarms  []announce.Request
	finished  chan struct{}
}

var _ announce.Service = (*Service)(nil)

// New creates a recording [Service].
func New() *Service {
	return &Service{finished: make(chan struct{}, 4)}
}

// Announce implements announce.Service.
func (s *Service) Announce(_ context.Context, req announce.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.announces = append(s.announces, req)
	return s.AnnounceErr
}

// Prewarm implements announce.Service.
func (s *Service) Prewarm(_ context.Context, req announce.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prewarms = append(s.prewarms, req)
	return s.PrewarmErr
}

// Finished implements announce.Service.
func (s *Service) Finished() <-chan struct{} { return s.finished }

// SignalFinished emits one completion signal, as the real service does when
// an announcement stops playing.
func (s *Service) SignalFinished() {
	s.finished <- struct{}{}
}

// Announces returns a copy of the recorded announce requests.
func (s *Service) Announces() []announce.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]announce.Request(nil), s.announces...)
}

// Prewarms returns a copy of the recorded prewarm requests.
func (s *Service) Prewarms() []announce.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]announce.Request(nil), s.prewarms...)
}
