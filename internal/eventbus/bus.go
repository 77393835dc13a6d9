package eventbus

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type EventType string

const (
	EventProjectCreated      EventType = "project.created"
	EventProjectCompleted    EventType = "project.completed"
	EventProjectDeleted      EventType = "project.deleted"
	EventTaskCompleted       EventType = "task.completed"
	EventStageAdvanced       EventType = "stage.advanced"
	EventStageReverted       EventType = "stage.reverted"
	EventDeadlineApproaching EventType = "deadline.approaching"
	EventSystemError         EventType = "system.error"
)

// Event is a domain notification carried between the registry and
// interested collaborators. Payload keys are event-type specific.
type Event struct {
	ID         string
	Type       EventType
	ResourceID string
	Payload    map[string]string
	CreatedAt  time.Time
}

type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan *Event
}

func New() *Bus {
	return &Bus{
		subscribers: make(map[string]chan *Event),
	}
}

func (b *Bus) Subscribe(bufSize int) (string, <-chan *Event) {
	id := ulid.Make().String()
	ch := make(chan *Event, bufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// buffer full, drop event for this subscriber
		}
	}
}

func (b *Bus) PublishNew(eventType EventType, resourceID string, payload map[string]string) {
	b.Publish(&Event{
		ID:         ulid.Make().String(),
		Type:       eventType,
		ResourceID: resourceID,
		Payload:    payload,
		CreatedAt:  time.Now(),
	})
}
