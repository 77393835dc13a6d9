package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := New()
	id1, ch1 := bus.Subscribe(4)
	id2, ch2 := bus.Subscribe(4)
	defer bus.Unsubscribe(id1)
	defer bus.Unsubscribe(id2)

	bus.PublishNew(EventProjectCompleted, "proj-1", map[string]string{"name": "Website relaunch"})

	for _, ch := range []<-chan *Event{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, EventProjectCompleted, ev.Type)
			assert.Equal(t, "proj-1", ev.ResourceID)
			assert.Equal(t, "Website relaunch", ev.Payload["name"])
			assert.NotEmpty(t, ev.ID)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	bus := New()
	id, ch := bus.Subscribe(1)
	defer bus.Unsubscribe(id)

	bus.PublishNew(EventTaskCompleted, "t1", nil)
	bus.PublishNew(EventTaskCompleted, "t2", nil)

	ev := <-ch
	assert.Equal(t, "t1", ev.ResourceID)
	select {
	case ev := <-ch:
		t.Fatalf("expected second event to be dropped, got %v", ev.ResourceID)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New()
	id, ch := bus.Subscribe(1)
	bus.Unsubscribe(id)

	_, open := <-ch
	require.False(t, open)

	// Publishing after unsubscribe is a no-op.
	bus.PublishNew(EventSystemError, "", nil)
}
