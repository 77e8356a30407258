package config

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/segue/pkg/host"
	"github.com/MrWong99/segue/pkg/host/bridge"
	"github.com/MrWong99/segue/pkg/host/mpd"
)

// ErrSourceNotRegistered is returned by [Registry.CreateSource] when no
// factory has been registered for the requested source kind.
var ErrSourceNotRegistered = errors.New("config: host source not registered")

// HostConn bundles what a host source factory produces: snapshot access,
// playback control, and the connection loop that keeps both alive.
type HostConn interface {
	host.Source
	host.Controller

	// Run maintains the host connection until ctx is cancelled.
	Run(ctx context.Context) error
}

// SourceFactory builds a host connection from the host configuration block.
type SourceFactory func(HostConfig) (HostConn, error)

// Registry maps source kinds to their constructor functions. It is safe for
// concurrent use.
type Registry struct {
	mu      sync.RWMutex
	sources map[SourceKind]SourceFactory
}

// NewRegistry returns an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{sources: make(map[SourceKind]SourceFactory)}
}

// DefaultRegistry returns a [Registry] with the built-in source
// implementations registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterSource(SourceBridge, func(cfg HostConfig) (HostConn, error) {
		return bridge.New(bridge.Config{URL: cfg.Addr, Token: cfg.Token}), nil
	})
	r.RegisterSource(SourceMPD, func(cfg HostConfig) (HostConn, error) {
		return mpd.New(mpd.Config{Addr: cfg.Addr}), nil
	})
	return r
}

// RegisterSource registers a source factory under kind. Subsequent calls with
// the same kind overwrite the previous registration.
func (r *Registry) RegisterSource(kind SourceKind, factory SourceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[kind] = factory
}

// CreateSource instantiates the host connection selected by cfg.Source.
// Returns [ErrSourceNotRegistered] if no factory is registered for that kind.
func (r *Registry) CreateSource(cfg HostConfig) (HostConn, error) {
	r.mu.RLock()
	factory, ok := r.sources[cfg.Source]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSourceNotRegistered, cfg.Source)
	}
	return factory(cfg)
}
