package notification

import (
	"context"
	"fmt"
	"log/slog"
)

// Notifier fans a domain notification out to every enabled channel.
type Notifier struct {
	settings *SettingsStore
	push     *PushSender
	telegram *TelegramSender
}

func NewNotifier(settings *SettingsStore, push *PushSender, telegram *TelegramSender) *Notifier {
	return &Notifier{
		settings: settings,
		push:     push,
		telegram: telegram,
	}
}

func (n *Notifier) NotifyDeadlineApproaching(ctx context.Context, projectName, deadline string, daysLeft int) {
	s := n.settings.Get()
	if !s.Preferences.NotifyDeadlines {
		return
	}
	title := fmt.Sprintf("⏰ Project Deadline Approaching: %s", projectName)
	body := fmt.Sprintf("Deadline: %s\nDays remaining: %d", deadline, daysLeft)
	n.deliver(ctx, s, title, body, "deadline-"+projectName)
}

func (n *Notifier) NotifyProjectCompleted(ctx context.Context, projectName, completedAt string) {
	s := n.settings.Get()
	if !s.Preferences.NotifyCompletion {
		return
	}
	title := fmt.Sprintf("🎉 Project Completed: %s", projectName)
	body := fmt.Sprintf("Completed: %s\nGreat work on finishing this project!", completedAt)
	n.deliver(ctx, s, title, body, "completed-"+projectName)
}

func (n *Notifier) NotifySystemError(ctx context.Context, errorType, message, timestamp string) {
	s := n.settings.Get()
	if !s.Preferences.NotifyErrors {
		return
	}
	title := fmt.Sprintf("🚨 System Error: %s", errorType)
	body := fmt.Sprintf("Time: %s\nMessage: %s", timestamp, message)
	n.deliver(ctx, s, title, body, "error")
}

func (n *Notifier) deliver(ctx context.Context, s Settings, title, body, tag string) {
	if s.Push.Enabled && n.push != nil {
		n.push.SendToAll(ctx, &Payload{
			Title: title,
			Body:  body,
			URL:   "/",
			Tag:   tag,
		})
	}
	if s.Telegram.Enabled && n.telegram != nil {
		if err := n.telegram.Send(s.Telegram.ChatID, title, body); err != nil {
			slog.Error("notification: telegram send failed", "error", err)
		}
	}
}

// TestResult reports the outcome of a channel self-test.
type TestResult struct {
	Push     bool     `json:"push"`
	Telegram bool     `json:"telegram"`
	Errors   []string `json:"errors"`
}

// TestAll exercises every enabled channel with a canned message.
func (n *Notifier) TestAll(ctx context.Context) TestResult {
	result := TestResult{Errors: []string{}}
	s := n.settings.Get()

	if s.Push.Enabled {
		if n.push != nil && n.push.Configured() {
			n.push.SendToAll(ctx, &Payload{
				Title: "🧪 Test Notification",
				Body:  "This is a test to verify your notification settings are working correctly.",
				Tag:   "test",
			})
			result.Push = true
		} else {
			result.Errors = append(result.Errors, "Push test failed: VAPID keys not configured")
		}
	}

	if s.Telegram.Enabled {
		if n.telegram == nil {
			result.Errors = append(result.Errors, "Telegram test failed: bot token not configured")
		} else if err := n.telegram.Send(s.Telegram.ChatID, "🧪 Test Notification", "Telegram notifications are working!"); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Telegram error: %s", err))
		} else {
			result.Telegram = true
		}
	}

	return result
}
