package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stagetrack/stagetrack/internal/eventbus"
	"github.com/stagetrack/stagetrack/internal/tracker"
	"github.com/stagetrack/stagetrack/pkg/storage"
)

// Snapshot is the complete serialized state of a registry: a single JSON
// document holding every project, category and template plus the
// default-category pointer and free-form metadata.
type Snapshot struct {
	Projects          map[string]*tracker.Project  `json:"projects"`
	Categories        map[string]*tracker.Category `json:"categories"`
	Templates         map[string]*tracker.Template `json:"templates"`
	DefaultCategoryID string                       `json:"default_category_id"`
	Metadata          map[string]string            `json:"metadata"`
}

func (r *Registry) snapshotLocked() *Snapshot {
	return &Snapshot{
		Projects:          r.projects,
		Categories:        r.categories,
		Templates:         r.templates,
		DefaultCategoryID: r.defaultCategoryID,
		Metadata:          r.metadata,
	}
}

// save writes the snapshot document. Persistence faults are logged and
// reported on the event bus, never propagated: the in-memory state stays
// authoritative and the next successful save catches up.
func (r *Registry) saveLocked(ctx context.Context) {
	data, err := json.MarshalIndent(r.snapshotLocked(), "", "  ")
	if err != nil {
		r.reportStorageFault(ctx, fmt.Errorf("failed to marshal snapshot: %w", err))
		return
	}
	if err := r.store.Write(ctx, r.snapshotPath, data); err != nil {
		r.reportStorageFault(ctx, fmt.Errorf("failed to write snapshot: %w", err))
		return
	}
	if mtime, err := r.store.Stat(ctx, r.snapshotPath); err == nil {
		r.loadedAt = mtime
	}
}

func (r *Registry) reportStorageFault(ctx context.Context, err error) {
	slog.ErrorContext(ctx, "snapshot persistence failed", "path", r.snapshotPath, "error", err)
	if r.bus != nil {
		r.bus.PublishNew(eventbus.EventSystemError, r.snapshotPath, map[string]string{
			"error_type": "persistence",
			"message":    err.Error(),
			"timestamp":  time.Now().Format(time.RFC3339),
		})
	}
}

// Load reads the snapshot document into memory. A missing or empty backing
// store initializes empty collections plus seeded defaults; a malformed one
// is logged and whatever in-memory state already exists is preserved.
func (r *Registry) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked(ctx)
}

func (r *Registry) loadLocked(ctx context.Context) error {
	data, err := r.store.Read(ctx, r.snapshotPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			r.initEmptyLocked()
			r.ensureDefaultCategoryLocked(ctx)
			return nil
		}
		slog.WarnContext(ctx, "could not read snapshot, keeping in-memory state", "path", r.snapshotPath, "error", err)
		if r.neverLoadedLocked() {
			r.initEmptyLocked()
		}
		r.ensureDefaultCategoryLocked(ctx)
		return nil
	}

	if len(bytes.TrimSpace(data)) == 0 {
		slog.WarnContext(ctx, "snapshot is empty, initializing with defaults without saving", "path", r.snapshotPath)
		r.initEmptyLocked()
		r.ensureDefaultCategoryLocked(ctx)
		return nil
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		slog.WarnContext(ctx, "could not parse snapshot, keeping in-memory state", "path", r.snapshotPath, "error", err)
		if r.neverLoadedLocked() {
			r.initEmptyLocked()
		}
		r.ensureDefaultCategoryLocked(ctx)
		return nil
	}

	r.projects = snap.Projects
	r.categories = snap.Categories
	r.templates = snap.Templates
	r.defaultCategoryID = snap.DefaultCategoryID
	r.metadata = snap.Metadata
	if r.projects == nil {
		r.projects = make(map[string]*tracker.Project)
	}
	if r.categories == nil {
		r.categories = make(map[string]*tracker.Category)
	}
	if len(r.templates) == 0 {
		r.templates = defaultTemplates()
	}
	if r.metadata == nil {
		r.metadata = defaultMetadata()
	} else {
		for k, v := range defaultMetadata() {
			if _, ok := r.metadata[k]; !ok {
				r.metadata[k] = v
			}
		}
	}

	if mtime, err := r.store.Stat(ctx, r.snapshotPath); err == nil {
		r.loadedAt = mtime
	}
	r.ensureDefaultCategoryLocked(ctx)
	return nil
}

// neverLoadedLocked reports whether the registry holds no prior state worth
// preserving. Every successful load or seed leaves at least one category, so
// an empty category map means nothing has ever been loaded.
func (r *Registry) neverLoadedLocked() bool {
	return len(r.categories) == 0 && len(r.projects) == 0
}

func (r *Registry) initEmptyLocked() {
	r.projects = make(map[string]*tracker.Project)
	r.categories = make(map[string]*tracker.Category)
	r.templates = defaultTemplates()
	r.defaultCategoryID = ""
	r.metadata = defaultMetadata()
}

// SnapshotPersisted reports whether the snapshot document exists in the
// backing store.
func (r *Registry) SnapshotPersisted(ctx context.Context) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ok, err := r.store.Exists(ctx, r.snapshotPath)
	return err == nil && ok
}

// ReloadIfStale re-reads the snapshot when the backing document has been
// modified since the last load. Used by the web layer to pick up writes
// from other processes; last-write-wins, no locking across processes.
func (r *Registry) ReloadIfStale(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	mtime, err := r.store.Stat(ctx, r.snapshotPath)
	if err != nil {
		return
	}
	if !mtime.After(r.loadedAt) {
		return
	}
	slog.DebugContext(ctx, "snapshot changed on disk, reloading", "path", r.snapshotPath)
	_ = r.loadLocked(ctx)
}
