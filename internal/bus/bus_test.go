package bus

import (
	"testing"
	"time"

	"github.com/MrWong99/segue/pkg/track"
)

func TestBus_RegistrationOrder(t *testing.T) {
	b := New()
	var order []string
	b.Subscribe(KindTrigger, func(Event) { order = append(order, "first") })
	b.Subscribe(KindTrigger, func(Event) { order = append(order, "second") })
	b.Subscribe(KindTrigger, func(Event) { order = append(order, "third") })

	b.Publish(Event{Kind: KindTrigger})

	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("expected %d invocations, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("listener %d ran as %q, want %q", i, order[i], want[i])
		}
	}
}

func TestBus_KindIsolation(t *testing.T) {
	b := New()
	var triggers, resumes int
	b.Subscribe(KindTrigger, func(Event) { triggers++ })
	b.Subscribe(KindResume, func(Event) { resumes++ })

	b.Publish(Event{Kind: KindTrigger})
	b.Publish(Event{Kind: KindTrigger})
	b.Publish(Event{Kind: KindResume})

	if triggers != 2 {
		t.Errorf("expected 2 trigger deliveries, got %d", triggers)
	}
	if resumes != 1 {
		t.Errorf("expected 1 resume delivery, got %d", resumes)
	}
}

func TestBus_NoRetroactiveDelivery(t *testing.T) {
	b := New()
	b.Publish(Event{Kind: KindUpdate})

	var called bool
	b.Subscribe(KindUpdate, func(Event) { called = true })
	if called {
		t.Error("listener must not receive events published before registration")
	}

	b.Publish(Event{Kind: KindUpdate})
	if !called {
		t.Error("listener should receive events published after registration")
	}
}

func TestBus_PublishStampsTime(t *testing.T) {
	b := New()
	var got Event
	b.Subscribe(KindTrigger, func(ev Event) { got = ev })

	before := time.Now()
	b.Publish(Event{
		Kind:    KindTrigger,
		Current: &track.Current{Title: "A"},
	})

	if got.Time.Before(before) {
		t.Errorf("expected publish to stamp a current time, got %v", got.Time)
	}
	if got.Current == nil || got.Current.Title != "A" {
		t.Errorf("payload not delivered intact: %+v", got)
	}

	// An explicit timestamp is preserved.
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.Publish(Event{Kind: KindTrigger, Time: fixed})
	if !got.Time.Equal(fixed) {
		t.Errorf("explicit timestamp overwritten: %v", got.Time)
	}
}

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindTrigger, "trigger"},
		{KindUpdate, "update"},
		{KindResume, "resume"},
		{KindDataRequest, "data-request"},
		{KindDataReturn, "data-return"},
		{Kind(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
