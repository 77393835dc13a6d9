package notification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagetrack/stagetrack/internal/eventbus"
	"github.com/stagetrack/stagetrack/internal/tracker"
	"github.com/stagetrack/stagetrack/pkg/storage"
)

type staticProjects []*tracker.Project

func (s staticProjects) ListProjects() []*tracker.Project { return s }

func openProject(name, deadline string) *tracker.Project {
	p := tracker.NewProject(name, "", deadline, "")
	p.AddStage(tracker.NewStage("Work", "", nil))
	return p
}

func drainEvents(ch <-chan *eventbus.Event) []*eventbus.Event {
	var events []*eventbus.Event
	for {
		select {
		case ev := <-ch:
			events = append(events, ev)
		default:
			return events
		}
	}
}

func newDeadlineFixture(t *testing.T, projects staticProjects) (*DeadlineChecker, <-chan *eventbus.Event) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	settings := NewSettingsStore(store, "notification_config.yaml")
	require.NoError(t, settings.Load(context.Background()))
	bus := eventbus.New()
	_, ch := bus.Subscribe(64)
	return NewDeadlineChecker(projects, bus, settings), ch
}

func TestDeadlineCheckFiresInsideWindow(t *testing.T) {
	soon := time.Now().Add(49 * time.Hour).Format("2006-01-02T15:04:05")
	far := time.Now().Add(30 * 24 * time.Hour).Format("2006-01-02T15:04:05")
	past := time.Now().Add(-26 * time.Hour).Format("2006-01-02T15:04:05")

	checker, ch := newDeadlineFixture(t, staticProjects{
		openProject("due soon", soon),
		openProject("due later", far),
		openProject("overdue", past),
		openProject("no deadline", ""),
	})

	checker.Check(context.Background())

	events := drainEvents(ch)
	require.Len(t, events, 1)
	assert.Equal(t, eventbus.EventDeadlineApproaching, events[0].Type)
	assert.Equal(t, "due soon", events[0].Payload["name"])
	assert.Equal(t, "2", events[0].Payload["days_left"])
}

func TestDeadlineCheckSkipsCompletedProjects(t *testing.T) {
	soon := time.Now().Add(49 * time.Hour).Format("2006-01-02T15:04:05")
	done := tracker.NewProject("done", "", soon, "")
	stage := tracker.NewStage("Only", "", nil)
	done.AddStage(stage)
	stage.Start()
	_, err := stage.Complete()
	require.NoError(t, err)
	done.RecomputeCompletion()

	checker, ch := newDeadlineFixture(t, staticProjects{done})
	checker.Check(context.Background())
	assert.Empty(t, drainEvents(ch))
}

func TestDeadlineCheckNotifiesOncePerDay(t *testing.T) {
	soon := time.Now().Add(49 * time.Hour).Format("2006-01-02T15:04:05")
	checker, ch := newDeadlineFixture(t, staticProjects{openProject("due soon", soon)})

	checker.Check(context.Background())
	checker.Check(context.Background())

	assert.Len(t, drainEvents(ch), 1)
}

func TestDeadlineCheckHonorsPreference(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	settings := NewSettingsStore(store, "notification_config.yaml")
	require.NoError(t, settings.Load(ctx))
	_, err = settings.Update(ctx, func(st *Settings) error {
		st.Preferences.NotifyDeadlines = false
		return nil
	})
	require.NoError(t, err)

	bus := eventbus.New()
	_, ch := bus.Subscribe(64)
	soon := time.Now().Add(49 * time.Hour).Format("2006-01-02T15:04:05")
	checker := NewDeadlineChecker(staticProjects{openProject("due soon", soon)}, bus, settings)

	checker.Check(ctx)
	assert.Empty(t, drainEvents(ch))
}
