package bus

import (
	"encoding/json"
	"testing"
)

func TestPublishInRegistrationOrder(t *testing.T) {
	b := New()

	var order []string
	b.Subscribe("evt", func(json.RawMessage) { order = append(order, "first") })
	b.Subscribe("evt", func(json.RawMessage) { order = append(order, "second") })
	b.Subscribe("evt", func(json.RawMessage) { order = append(order, "third") })

	b.Publish("evt", nil)

	if len(order) != 3 {
		t.Fatalf("expected 3 invocations, got %d", len(order))
	}
	for i, want := range []string{"first", "second", "third"} {
		if order[i] != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, order[i])
		}
	}
}

func TestUnsubscribeHandleRemovesOnlyItself(t *testing.T) {
	b := New()

	var got []string
	b.Subscribe("evt", func(json.RawMessage) { got = append(got, "a") })
	unsub := b.Subscribe("evt", func(json.RawMessage) { got = append(got, "b") })
	b.Subscribe("evt", func(json.RawMessage) { got = append(got, "c") })

	unsub()
	unsub() // Calling twice must not remove another registration

	b.Publish("evt", nil)

	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("expected [a c], got %v", got)
	}
	if b.HandlerCount("evt") != 2 {
		t.Fatalf("expected 2 handlers, got %d", b.HandlerCount("evt"))
	}
}

func TestUnsubscribeAllForType(t *testing.T) {
	b := New()
	b.Subscribe("evt", func(json.RawMessage) { t.Fatal("should not fire") })
	b.Subscribe("evt", func(json.RawMessage) { t.Fatal("should not fire") })

	b.Unsubscribe("evt")
	b.Publish("evt", nil)

	if b.HandlerCount("evt") != 0 {
		t.Fatalf("expected 0 handlers, got %d", b.HandlerCount("evt"))
	}
}

func TestPanickingHandlerIsIsolated(t *testing.T) {
	b := New()

	var survived bool
	b.Subscribe("evt", func(json.RawMessage) { panic("handler blew up") })
	b.Subscribe("evt", func(json.RawMessage) { survived = true })

	b.Publish("evt", nil) // Must not panic out to the publisher

	if !survived {
		t.Fatal("expected handler after the panicking one to run")
	}
	if b.Stats().Recovered != 1 {
		t.Fatalf("expected 1 recovered panic, got %d", b.Stats().Recovered)
	}
}

func TestNestedPublish(t *testing.T) {
	b := New()

	var inner bool
	b.Subscribe("inner", func(json.RawMessage) { inner = true })
	b.Subscribe("outer", func(json.RawMessage) {
		// Handlers may publish further events synchronously.
		b.Publish("inner", nil)
	})

	b.Publish("outer", nil)

	if !inner {
		t.Fatal("expected nested publish to be dispatched")
	}
}

func TestPublishWithoutHandlersCountsDrop(t *testing.T) {
	b := New()
	b.Publish("nobody-home", json.RawMessage(`{}`))

	stats := b.Stats()
	if stats.Dropped != 1 {
		t.Fatalf("expected 1 dropped event, got %d", stats.Dropped)
	}
	if stats.Published != 0 {
		t.Fatalf("expected 0 published, got %d", stats.Published)
	}
}

func TestClear(t *testing.T) {
	b := New()
	b.Subscribe("a", func(json.RawMessage) {})
	b.Subscribe("b", func(json.RawMessage) {})

	b.Clear()

	if stats := b.Stats(); stats.Handlers != 0 || stats.EventTypes != 0 {
		t.Fatalf("expected empty bus after Clear, got %+v", stats)
	}
}

func TestHandlerReceivesData(t *testing.T) {
	b := New()

	var got string
	b.Subscribe("evt", func(data json.RawMessage) { got = string(data) })
	b.Publish("evt", json.RawMessage(`{"k":"v"}`))

	if got != `{"k":"v"}` {
		t.Fatalf("unexpected payload: %s", got)
	}
}
