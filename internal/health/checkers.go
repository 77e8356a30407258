package health

import (
	"context"
	"errors"

	"github.com/MrWong99/segue/pkg/host"
)

// HostSource returns a [Checker] that passes once the host source has
// produced at least one state snapshot. Until then the observer has nothing
// to read and transitions cannot be detected.
func HostSource(src host.Source) Checker {
	return Checker{
		Name: "host",
		Check: func(context.Context) error {
			if _, ok := src.Snapshot(); !ok {
				return errors.New("no host state snapshot received yet")
			}
			return nil
		},
	}
}

// Announcer returns a [Checker] that passes while the announcement service
// connection is up. connected is typically the client's Connected method.
//
// A down announcer does not stop segue (the silent fallback keeps playback
// moving) but it is worth surfacing on the readiness probe.
func Announcer(connected func() bool) Checker {
	return Checker{
		Name: "announcer",
		Check: func(context.Context) error {
			if !connected() {
				return errors.New("announcement service not connected")
			}
			return nil
		},
	}
}
