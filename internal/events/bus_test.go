package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesPublished(t *testing.T) {
	bus := NewBus()

	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	bus.Publish(Event{Type: TypeBookImported, Payload: "book-1"})

	select {
	case evt := <-ch:
		require.Equal(t, TypeBookImported, evt.Type)
		require.Equal(t, "book-1", evt.Payload)
	case <-time.After(time.Second):
		t.Fatal("expected an event")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()

	ch, unsubscribe := bus.Subscribe()
	unsubscribe()

	bus.Publish(Event{Type: TypeBookDeleted})

	select {
	case _, ok := <-ch:
		require.False(t, ok, "channel should be closed after unsubscribe")
	case <-time.After(time.Second):
		t.Fatal("channel should be closed after unsubscribe")
	}
}

func TestEmitWrapsArbitraryPayloads(t *testing.T) {
	bus := NewBus()

	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	type imported struct{ BookID string }
	bus.Emit(imported{BookID: "book-2"})

	select {
	case evt := <-ch:
		require.Equal(t, imported{BookID: "book-2"}, evt.Payload)
	case <-time.After(time.Second):
		t.Fatal("expected an event")
	}
}

func TestSlowSubscriberDoesNotBlockPublisher(t *testing.T) {
	bus := NewBus()

	_, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			bus.Publish(Event{Type: TypeSyncStatus, Payload: i})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}
}
