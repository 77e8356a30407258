// Package bus provides the typed transition event channel connecting the
// host-facing components (observer, trap) to the transition coordinator.
//
// The bus is the single documented crossing point between the privileged
// host-facing side and the coordination side. Publishing broadcasts
// synchronously to all listeners registered at that moment, in registration
// order; there is no queue, so a listener registered after a publish never
// sees that event.
package bus

import (
	"sync"
	"time"

	"github.com/MrWong99/segue/pkg/track"
)

// Kind enumerates the transition event kinds. The set is closed: adding a
// kind means extending the coordinator's state machine.
type Kind int

const (
	// KindTrigger signals a detected track change. Published by the trap.
	KindTrigger Kind = iota

	// KindUpdate signals refreshed track info without a confirmed change,
	// e.g. queue data arriving late. Published by the observer poll loop.
	KindUpdate

	// KindResume tells the trap to clear the playback lock and resume audio.
	// Published by the coordinator.
	KindResume

	// KindDataRequest asks the host-facing side for an initial snapshot.
	// Published by the coordinator on startup.
	KindDataRequest

	// KindDataReturn answers a data request with the current snapshot.
	KindDataReturn
)

// String returns the human-readable name of the event kind.
func (k Kind) String() string {
	switch k {
	case KindTrigger:
		return "trigger"
	case KindUpdate:
		return "update"
	case KindResume:
		return "resume"
	case KindDataRequest:
		return "data-request"
	case KindDataReturn:
		return "data-return"
	default:
		return "unknown"
	}
}

// Event is an immutable transition message. Current and Upcoming are nil when
// the publisher had no snapshot for them.
type Event struct {
	Kind     Kind
	Current  *track.Current
	Upcoming *track.Upcoming
	Reason   string
	Time     time.Time
}

// Listener handles one published event. Listeners run synchronously on the
// publisher's goroutine and must not block.
type Listener func(Event)

// Bus is a session-scoped synchronous broadcast channel.
// It is safe for concurrent use.
type Bus struct {
	mu        sync.Mutex
	listeners map[Kind][]Listener
}

// New creates an empty [Bus].
func New() *Bus {
	return &Bus{listeners: make(map[Kind][]Listener)}
}

// Subscribe registers fn for events of the given kind. Listeners are invoked
// in registration order.
func (b *Bus) Subscribe(kind Kind, fn Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[kind] = append(b.listeners[kind], fn)
}

// Publish delivers ev to every listener currently subscribed to ev.Kind,
// synchronously and in registration order. A zero Time is stamped with now.
func (b *Bus) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	b.mu.Lock()
	listeners := make([]Listener, len(b.listeners[ev.Kind]))
	copy(listeners, b.listeners[ev.Kind])
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}
