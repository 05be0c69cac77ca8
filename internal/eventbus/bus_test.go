package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_FanOutAndFilter(t *testing.T) {
	b := New()
	all, unsubAll := b.Subscribe(4)
	defer unsubAll()
	orders, unsubOrders := b.Subscribe(4, TopicOrderStarted, TopicOrderExpired)
	defer unsubOrders()

	b.Publish(Event{Type: TopicOrderStarted, Data: "o-1"})
	b.Publish(Event{Type: TopicTaskFinished})

	require.Len(t, all, 2)
	require.Len(t, orders, 1)
	e := <-orders
	assert.Equal(t, TopicOrderStarted, e.Type)
	assert.False(t, e.Time.IsZero())
	assert.Equal(t, "o-1", e.Data)
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()

	for i := 0; i < 5; i++ {
		b.Publish(Event{Type: TopicLifecycleRun})
	}
	assert.Equal(t, uint64(4), b.Dropped())
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()

	_, ok := <-ch
	assert.False(t, ok)
	b.Publish(Event{Type: TopicTaskStarted})
}
