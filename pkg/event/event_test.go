package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamPublishSubscribe(t *testing.T) {
	t.Run("DeliversToAllSubscribers", func(t *testing.T) {
		s := NewStream()
		var gotA, gotB Event
		s.Subscribe(func(e Event) { gotA = e })
		s.Subscribe(func(e Event) { gotB = e })

		s.Publish(Event{Type: "x", Data: 1})
		assert.Equal(t, Type("x"), gotA.Type)
		assert.Equal(t, Type("x"), gotB.Type)
	})

	t.Run("UnsubscribeStopsDelivery", func(t *testing.T) {
		s := NewStream()
		calls := 0
		token := s.Subscribe(func(e Event) { calls++ })
		s.Publish(Event{Type: "a"})
		s.Unsubscribe(token)
		s.Publish(Event{Type: "a"})
		assert.Equal(t, 1, calls)
	})

	t.Run("SubscribeDuringPublishDoesNotReceiveThatPublish", func(t *testing.T) {
		s := NewStream()
		var lateCalls int
		s.Subscribe(func(e Event) {
			s.Subscribe(func(e Event) { lateCalls++ })
		})
		s.Publish(Event{Type: "a"})
		assert.Equal(t, 0, lateCalls)

		s.Publish(Event{Type: "a"})
		assert.Equal(t, 1, lateCalls)
	})

	t.Run("UnsubscribeDuringPublishDoesNotCancelThatDelivery", func(t *testing.T) {
		s := NewStream()
		var victimCalls int
		var victimToken Token
		victimToken = s.Subscribe(func(e Event) { victimCalls++ })

		s.Subscribe(func(e Event) { s.Unsubscribe(victimToken) })

		// Subscriber order in the map isn't guaranteed, but regardless of
		// order the snapshot is taken before any callback runs, so the
		// victim must be invoked exactly once on this publish either way.
		s.Publish(Event{Type: "a"})
		assert.Equal(t, 1, victimCalls)

		s.Publish(Event{Type: "a"})
		assert.Equal(t, 1, victimCalls, "victim should be gone by the second publish")
	})

	t.Run("SubscriberCount", func(t *testing.T) {
		s := NewStream()
		require.Equal(t, 0, s.SubscriberCount())
		tok := s.Subscribe(func(Event) {})
		assert.Equal(t, 1, s.SubscriberCount())
		s.Unsubscribe(tok)
		assert.Equal(t, 0, s.SubscriberCount())
	})
}
