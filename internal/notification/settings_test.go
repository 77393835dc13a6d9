package notification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagetrack/stagetrack/pkg/cerr"
	"github.com/stagetrack/stagetrack/pkg/storage"
)

func newTestSettingsStore(t *testing.T) *SettingsStore {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewSettingsStore(store, "notification_config.yaml")
}

func TestSettingsDefaults(t *testing.T) {
	s := newTestSettingsStore(t)
	require.NoError(t, s.Load(context.Background()))

	got := s.Get()
	assert.False(t, got.Push.Enabled)
	assert.False(t, got.Telegram.Enabled)
	assert.True(t, got.Preferences.NotifyDeadlines)
	assert.True(t, got.Preferences.NotifyCompletion)
	assert.True(t, got.Preferences.NotifyErrors)
	assert.Equal(t, 3, got.Preferences.DeadlineWarningDays)
}

func TestSettingsUpdatePersists(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	s := NewSettingsStore(store, "notification_config.yaml")
	require.NoError(t, s.Load(ctx))

	updated, err := s.Update(ctx, func(st *Settings) error {
		st.Push.Enabled = true
		st.Telegram.Enabled = true
		st.Telegram.ChatID = 12345
		st.Preferences.DeadlineWarningDays = 7
		return nil
	})
	require.NoError(t, err)
	assert.True(t, updated.Push.Enabled)

	reloaded := NewSettingsStore(store, "notification_config.yaml")
	require.NoError(t, reloaded.Load(ctx))
	got := reloaded.Get()
	assert.True(t, got.Push.Enabled)
	assert.Equal(t, int64(12345), got.Telegram.ChatID)
	assert.Equal(t, 7, got.Preferences.DeadlineWarningDays)
}

func TestSettingsUpdateRejectsNegativeWarningDays(t *testing.T) {
	s := newTestSettingsStore(t)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx))

	_, err := s.Update(ctx, func(st *Settings) error {
		st.Preferences.DeadlineWarningDays = -1
		return nil
	})
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
	assert.Equal(t, 3, s.Get().Preferences.DeadlineWarningDays)
}

func TestSettingsUpdateAbortsWhenCallbackFails(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	s := NewSettingsStore(store, "notification_config.yaml")
	require.NoError(t, s.Load(ctx))

	_, err = s.Update(ctx, func(st *Settings) error {
		st.Push.Enabled = true
		return cerr.NewError(cerr.InvalidArgument, "invalid JSON body", nil)
	})
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
	assert.False(t, s.Get().Push.Enabled)

	// Nothing may have reached disk either.
	exists, err := store.Exists(ctx, "notification_config.yaml")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSettingsLoadMalformedFails(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Write(ctx, "notification_config.yaml", []byte("preferences: [not a map]")))

	s := NewSettingsStore(store, "notification_config.yaml")
	assert.Error(t, s.Load(ctx))
}
