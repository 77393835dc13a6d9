package notification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagetrack/stagetrack/internal/eventbus"
)

func TestDispatcherRoutesEvents(t *testing.T) {
	n, settings, bot := newTelegramFixture(t)
	ctx := context.Background()
	_, err := settings.Update(ctx, func(st *Settings) error {
		st.Telegram.Enabled = true
		st.Telegram.ChatID = 7
		return nil
	})
	require.NoError(t, err)

	d := NewDispatcher(eventbus.New(), n)

	d.handle(ctx, &eventbus.Event{
		Type:    eventbus.EventProjectCompleted,
		Payload: map[string]string{"name": "Release", "completed_at": "2026-08-28"},
	})
	d.handle(ctx, &eventbus.Event{
		Type:    eventbus.EventDeadlineApproaching,
		Payload: map[string]string{"name": "Release", "deadline": "2026-09-01", "days_left": "2"},
	})
	d.handle(ctx, &eventbus.Event{
		Type:    eventbus.EventSystemError,
		Payload: map[string]string{"error_type": "persistence", "message": "disk full", "timestamp": "2026-08-28"},
	})
	// Unknown day count is dropped, not sent.
	d.handle(ctx, &eventbus.Event{
		Type:    eventbus.EventDeadlineApproaching,
		Payload: map[string]string{"name": "Release", "days_left": "soon"},
	})

	require.Len(t, bot.sent, 3)
	assert.Contains(t, bot.sent[0].Text, "Project Completed")
	assert.Contains(t, bot.sent[1].Text, "Deadline Approaching")
	assert.Contains(t, bot.sent[2].Text, "System Error")
}
