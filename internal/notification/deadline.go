package notification

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/stagetrack/stagetrack/internal/eventbus"
	"github.com/stagetrack/stagetrack/internal/tracker"
)

// ProjectLister is the slice of the registry the deadline sweep needs.
type ProjectLister interface {
	ListProjects() []*tracker.Project
}

// DeadlineChecker scans projects for deadlines inside the warning window
// and publishes deadline.approaching events. Each project fires at most
// once per calendar day so a daily cron schedule does not double-notify
// after a restart-and-catchup run.
type DeadlineChecker struct {
	registry ProjectLister
	bus      *eventbus.Bus
	settings *SettingsStore

	mu       sync.Mutex
	notified map[string]string // project id -> date last notified
}

func NewDeadlineChecker(registry ProjectLister, bus *eventbus.Bus, settings *SettingsStore) *DeadlineChecker {
	return &DeadlineChecker{
		registry: registry,
		bus:      bus,
		settings: settings,
		notified: make(map[string]string),
	}
}

// Check runs one sweep. Safe to call from a cron schedule.
func (c *DeadlineChecker) Check(ctx context.Context) {
	s := c.settings.Get()
	if !s.Preferences.NotifyDeadlines {
		return
	}
	warningDays := s.Preferences.DeadlineWarningDays
	today := time.Now().Format("2006-01-02")

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.registry.ListProjects() {
		if p.Deadline == "" || p.IsCompleted() {
			continue
		}
		daysLeft := p.DaysUntilDeadline()
		if daysLeft == nil {
			slog.WarnContext(ctx, "deadline check: unparseable deadline", "project", p.Name, "deadline", p.Deadline)
			continue
		}
		if *daysLeft < 0 || *daysLeft > warningDays {
			continue
		}
		if c.notified[p.ID] == today {
			continue
		}
		c.notified[p.ID] = today
		c.bus.PublishNew(eventbus.EventDeadlineApproaching, p.ID, map[string]string{
			"name":      p.Name,
			"deadline":  p.Deadline,
			"days_left": strconv.Itoa(*daysLeft),
		})
	}
}
