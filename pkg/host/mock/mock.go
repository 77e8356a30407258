// Package mock provides in-memory host test doubles that record the calls
// made against them.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/segue/pkg/host"
)

// Source is a host.Source backed by a settable tree.
type Source struct {
	mu   sync.Mutex
	tree host.Tree
	ok   bool
}

// SetTree installs the tree returned by subsequent Snapshot calls.
func (s *Source) SetTree(t host.Tree) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree = t
	s.ok = t != nil
}

// Snapshot implements host.Source.
func (s *Source) Snapshot() (host.Tree, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree, s.ok
}

// Controller records Play and Pause calls and returns the configured errors.
type Controller struct {
	mu         sync.Mutex
	PlayErr    error
	PauseErr   error
	playCalls  int
	pauseCalls int
}

// Play implements host.Controller.
func (c *Controller) Play(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playCalls++
	return c.PlayErr
}

// Pause implements host.Controller.
func (c *Controller) Pause(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pauseCalls++
	return c.PauseErr
}

// PlayCalls returns the number of Play invocations so far.
func (c *Controller) PlayCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playCalls
}

// PauseCalls returns the number of Pause invocations so far.
func (c *Controller) PauseCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pauseCalls
}
