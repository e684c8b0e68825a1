package broadcast

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive[T any](t *testing.T, s *Subscription[T]) T {
	t.Helper()
	select {
	case v, ok := <-s.C():
		require.True(t, ok, "subscription closed")
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func assertEmpty[T any](t *testing.T, s *Subscription[T]) {
	t.Helper()
	select {
	case v := <-s.C():
		t.Fatalf("unexpected value %v", v)
	default:
	}
}

func TestSubscribeReplaysLatestOnly(t *testing.T) {
	h := NewHub[int](4)
	h.Publish(1)
	h.Publish(2)

	s := h.Subscribe()
	defer s.Close()

	assert.Equal(t, 2, receive(t, s))
	assertEmpty(t, s)
}

func TestSubscribeBeforePublishGetsEveryValue(t *testing.T) {
	h := NewHub[string](4)
	s := h.Subscribe()
	defer s.Close()

	assertEmpty(t, s)
	h.Publish("a")
	h.Publish("b")

	assert.Equal(t, "a", receive(t, s))
	assert.Equal(t, "b", receive(t, s))
}

func TestSlowSubscriberDropsOldest(t *testing.T) {
	h := NewHub[int](2)
	s := h.Subscribe()
	defer s.Close()

	for i := 1; i <= 5; i++ {
		h.Publish(i)
	}

	assert.Equal(t, 4, receive(t, s))
	assert.Equal(t, 5, receive(t, s))
	assertEmpty(t, s)
}

func TestCloseRemovesOnlyThatSubscriber(t *testing.T) {
	h := NewHub[int](4)
	a := h.Subscribe()
	b := h.Subscribe()
	require.Equal(t, 2, h.Len())

	a.Close()
	a.Close()
	assert.Equal(t, 1, h.Len())

	_, ok := <-a.C()
	assert.False(t, ok)

	h.Publish(9)
	assert.Equal(t, 9, receive(t, b))
	b.Close()
	assert.Equal(t, 0, h.Len())
}

func TestHubCloseEndsSubscriptions(t *testing.T) {
	h := NewHub[int](1)
	s := h.Subscribe()
	h.Close()

	_, ok := <-s.C()
	assert.False(t, ok)
	assert.NotPanics(t, s.Close)

	late := h.Subscribe()
	_, ok = <-late.C()
	assert.False(t, ok)

	h.Publish(1)
	_, has := h.Latest()
	assert.False(t, has)
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	h := NewHub[int](8)
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := h.Subscribe()
			defer s.Close()
			for j := 0; j < 20; j++ {
				select {
				case <-s.C():
				default:
				}
			}
		}()
	}
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			h.Publish(v)
		}(i)
	}
	wg.Wait()

	_, ok := h.Latest()
	assert.True(t, ok)
	assert.Equal(t, 0, h.Len())
}
