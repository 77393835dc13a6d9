package notification

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/stagetrack/stagetrack/internal/eventbus"
	"github.com/stagetrack/stagetrack/pkg/panicerr"
)

// Dispatcher bridges the event bus to the notification channels.
type Dispatcher struct {
	bus      *eventbus.Bus
	notifier *Notifier
}

func NewDispatcher(bus *eventbus.Bus, notifier *Notifier) *Dispatcher {
	return &Dispatcher{
		bus:      bus,
		notifier: notifier,
	}
}

// Start consumes bus events until the context is cancelled. Run it in its
// own goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	subID, ch := d.bus.Subscribe(256)
	defer d.bus.Unsubscribe(subID)

	slog.Info("notification dispatcher started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("notification dispatcher stopped")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			// A panicking sender must not take the dispatcher loop down.
			if err := panicerr.SafeContext(func(ctx context.Context) error {
				d.handle(ctx, event)
				return nil
			})(ctx); err != nil {
				slog.Error("dispatcher: handler panicked", "event", event.Type, "error", err)
			}
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, event *eventbus.Event) {
	switch event.Type {
	case eventbus.EventProjectCompleted:
		d.notifier.NotifyProjectCompleted(ctx, event.Payload["name"], event.Payload["completed_at"])
	case eventbus.EventDeadlineApproaching:
		daysLeft, err := strconv.Atoi(event.Payload["days_left"])
		if err != nil {
			slog.Warn("dispatcher: bad days_left payload", "value", event.Payload["days_left"])
			return
		}
		d.notifier.NotifyDeadlineApproaching(ctx, event.Payload["name"], event.Payload["deadline"], daysLeft)
	case eventbus.EventSystemError:
		d.notifier.NotifySystemError(ctx, event.Payload["error_type"], event.Payload["message"], event.Payload["timestamp"])
	}
}
