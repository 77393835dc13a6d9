package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/stagetrack/stagetrack/pkg/cerr"
	"github.com/stagetrack/stagetrack/pkg/storage"
)

// Settings is the runtime notification configuration, editable from the
// dashboard and persisted as a YAML document in the backing store.
type Settings struct {
	Push struct {
		Enabled bool `yaml:"enabled" json:"enabled"`
	} `yaml:"push" json:"push"`
	Telegram struct {
		Enabled bool  `yaml:"enabled" json:"enabled"`
		ChatID  int64 `yaml:"chat_id" json:"chat_id"`
	} `yaml:"telegram" json:"telegram"`
	Preferences struct {
		NotifyDeadlines     bool `yaml:"notify_deadlines" json:"notify_deadlines"`
		NotifyCompletion    bool `yaml:"notify_completion" json:"notify_completion"`
		NotifyErrors        bool `yaml:"notify_errors" json:"notify_errors"`
		DeadlineWarningDays int  `yaml:"deadline_warning_days" json:"deadline_warning_days"`
	} `yaml:"preferences" json:"preferences"`
}

func defaultSettings() Settings {
	var s Settings
	s.Preferences.NotifyDeadlines = true
	s.Preferences.NotifyCompletion = true
	s.Preferences.NotifyErrors = true
	s.Preferences.DeadlineWarningDays = 3
	return s
}

// SettingsStore loads and persists Settings, serving concurrent readers
// from an in-memory copy.
type SettingsStore struct {
	mu       sync.RWMutex
	storage  storage.Storage
	path     string
	settings Settings
}

func NewSettingsStore(s storage.Storage, path string) *SettingsStore {
	return &SettingsStore{
		storage:  s,
		path:     path,
		settings: defaultSettings(),
	}
}

// Load reads the settings document. A missing document keeps the defaults;
// a malformed one is an error so a typo never silently disables channels.
func (s *SettingsStore) Load(ctx context.Context) error {
	data, err := s.storage.Read(ctx, s.path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return cerr.WrapStorageReadError("notification settings", err)
	}
	loaded := defaultSettings()
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to parse notification settings: %w", err))
	}
	s.mu.Lock()
	s.settings = loaded
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the current settings.
func (s *SettingsStore) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Update applies fn to a copy of the settings and persists the result.
// When fn returns an error the update is abandoned whole: neither memory
// nor the backing store sees any of its changes.
func (s *SettingsStore) Update(ctx context.Context, fn func(*Settings) error) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings
	if err := fn(&next); err != nil {
		return s.settings, err
	}
	if next.Preferences.DeadlineWarningDays < 0 {
		return s.settings, cerr.NewError(cerr.InvalidArgument, "deadline warning days must not be negative", nil)
	}
	data, err := yaml.Marshal(&next)
	if err != nil {
		return s.settings, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal notification settings: %w", err))
	}
	if err := s.storage.Write(ctx, s.path, data); err != nil {
		return s.settings, cerr.WrapStorageWriteError("notification settings", err)
	}
	s.settings = next
	return next, nil
}
