package notification

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagetrack/stagetrack/pkg/storage"
)

type fakeBot struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func newTelegramFixture(t *testing.T) (*Notifier, *SettingsStore, *fakeBot) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	settings := NewSettingsStore(store, "notification_config.yaml")
	require.NoError(t, settings.Load(context.Background()))
	bot := &fakeBot{}
	return NewNotifier(settings, nil, &TelegramSender{bot: bot}), settings, bot
}

func TestNotifyProjectCompletedSendsTelegram(t *testing.T) {
	n, settings, bot := newTelegramFixture(t)
	ctx := context.Background()
	_, err := settings.Update(ctx, func(st *Settings) error {
		st.Telegram.Enabled = true
		st.Telegram.ChatID = 42
		return nil
	})
	require.NoError(t, err)

	n.NotifyProjectCompleted(ctx, "Release 2.0", "2026-08-28T10:00:00Z")

	require.Len(t, bot.sent, 1)
	assert.Equal(t, int64(42), bot.sent[0].ChatID)
	assert.Contains(t, bot.sent[0].Text, "🎉 Project Completed: Release 2.0")
}

func TestNotifyHonorsPreferences(t *testing.T) {
	n, settings, bot := newTelegramFixture(t)
	ctx := context.Background()
	_, err := settings.Update(ctx, func(st *Settings) error {
		st.Telegram.Enabled = true
		st.Telegram.ChatID = 42
		st.Preferences.NotifyCompletion = false
		st.Preferences.NotifyErrors = false
		return nil
	})
	require.NoError(t, err)

	n.NotifyProjectCompleted(ctx, "muted", "")
	n.NotifySystemError(ctx, "persistence", "disk full", "")
	assert.Empty(t, bot.sent)

	n.NotifyDeadlineApproaching(ctx, "still on", "2026-09-01", 2)
	assert.Len(t, bot.sent, 1)
}

func TestNotifySkipsDisabledChannels(t *testing.T) {
	n, _, bot := newTelegramFixture(t)

	n.NotifyProjectCompleted(context.Background(), "quiet", "")
	assert.Empty(t, bot.sent)
}

func TestTelegramSenderRequiresChatID(t *testing.T) {
	sender := &TelegramSender{bot: &fakeBot{}}
	assert.Error(t, sender.Send(0, "title", "body"))
}

func TestTestAllReportsUnconfiguredChannels(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	settings := NewSettingsStore(store, "notification_config.yaml")
	require.NoError(t, settings.Load(ctx))
	_, err = settings.Update(ctx, func(st *Settings) error {
		st.Push.Enabled = true
		st.Telegram.Enabled = true
		return nil
	})
	require.NoError(t, err)

	n := NewNotifier(settings, nil, nil)
	result := n.TestAll(ctx)
	assert.False(t, result.Push)
	assert.False(t, result.Telegram)
	assert.Len(t, result.Errors, 2)
}
