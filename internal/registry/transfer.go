package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/stagetrack/stagetrack/internal/eventbus"
	"github.com/stagetrack/stagetrack/internal/tracker"
	"github.com/stagetrack/stagetrack/pkg/cerr"
)

const exportVersion = "1.0"

// BatchResult reports the outcome of a batch operation: how many ids were
// processed and a message per id that was not.
type BatchResult struct {
	Succeeded int      `json:"succeeded"`
	Errors    []string `json:"errors,omitempty"`
}

// BatchDeleteProjects deletes the listed projects, collecting per-id
// failures instead of stopping at the first one.
func (r *Registry) BatchDeleteProjects(ctx context.Context, projectIDs []string) BatchResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result BatchResult
	for _, id := range projectIDs {
		p := r.projects[id]
		if p == nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Project %s not found", id))
			continue
		}
		delete(r.projects, id)
		r.publish(eventbus.EventProjectDeleted, id, map[string]string{"name": p.Name})
		result.Succeeded++
	}
	if result.Succeeded > 0 {
		r.saveLocked(ctx)
	}
	return result
}

// BatchMoveCategory reassigns the listed projects to a category (or to none
// when categoryID is empty).
func (r *Registry) BatchMoveCategory(ctx context.Context, projectIDs []string, categoryID string) (BatchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if categoryID != "" && r.categories[categoryID] == nil {
		return BatchResult{}, cerr.NewError(cerr.NotFound, "Category not found", nil)
	}

	var result BatchResult
	for _, id := range projectIDs {
		p := r.projects[id]
		if p == nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Project %s not found", id))
			continue
		}
		p.CategoryID = categoryID
		result.Succeeded++
	}
	if result.Succeeded > 0 {
		r.saveLocked(ctx)
	}
	return result, nil
}

// ProjectExport is the standalone projects document produced by the export
// endpoint.
type ProjectExport struct {
	Projects   map[string]*tracker.Project `json:"projects"`
	ExportDate string                      `json:"export_date"`
	Version    string                      `json:"version"`
}

// TemplateExport is the standalone templates document.
type TemplateExport struct {
	Templates  map[string]*tracker.Template `json:"templates"`
	ExportDate string                       `json:"export_date"`
	Version    string                       `json:"version"`
}

// FullExport wraps the whole snapshot for backup purposes.
type FullExport struct {
	Snapshot
	ExportDate string `json:"export_date"`
	Version    string `json:"version"`
}

func (r *Registry) ExportProjects() ProjectExport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	projects := make(map[string]*tracker.Project, len(r.projects))
	for id, p := range r.projects {
		projects[id] = p
	}
	return ProjectExport{
		Projects:   projects,
		ExportDate: time.Now().Format(time.RFC3339),
		Version:    exportVersion,
	}
}

func (r *Registry) ExportTemplates() TemplateExport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	templates := make(map[string]*tracker.Template, len(r.templates))
	for id, tpl := range r.templates {
		templates[id] = tpl
	}
	return TemplateExport{
		Templates:  templates,
		ExportDate: time.Now().Format(time.RFC3339),
		Version:    exportVersion,
	}
}

func (r *Registry) ExportAll() FullExport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return FullExport{
		Snapshot: Snapshot{
			Projects:          r.projects,
			Categories:        r.categories,
			Templates:         r.templates,
			DefaultCategoryID: r.defaultCategoryID,
			Metadata:          r.metadata,
		},
		ExportDate: time.Now().Format(time.RFC3339),
		Version:    exportVersion,
	}
}

// ImportProjects merges the given projects into the registry, overwriting
// on id collision. Entries without an id are skipped and reported.
func (r *Registry) ImportProjects(ctx context.Context, projects map[string]*tracker.Project) BatchResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result BatchResult
	for id, p := range projects {
		if p == nil || p.ID == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("Project %s has no id, skipped", id))
			continue
		}
		r.projects[p.ID] = p
		result.Succeeded++
	}
	if result.Succeeded > 0 {
		r.saveLocked(ctx)
	}
	return result
}

// ImportTemplates merges templates, never overwriting the built-in ones.
func (r *Registry) ImportTemplates(ctx context.Context, templates map[string]*tracker.Template) BatchResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result BatchResult
	for id, tpl := range templates {
		if tpl == nil || tpl.ID == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("Template %s has no id, skipped", id))
			continue
		}
		if existing := r.templates[tpl.ID]; existing != nil && existing.IsDefault {
			result.Errors = append(result.Errors, fmt.Sprintf("Template %s is built-in, skipped", tpl.ID))
			continue
		}
		r.templates[tpl.ID] = tpl
		result.Succeeded++
	}
	if result.Succeeded > 0 {
		r.saveLocked(ctx)
	}
	return result
}

// ImportAll merges a full snapshot: projects, categories and templates are
// merged by id, the default-category pointer and metadata are taken from
// the import when present.
func (r *Registry) ImportAll(ctx context.Context, snap Snapshot) BatchResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result BatchResult
	for _, p := range snap.Projects {
		if p == nil || p.ID == "" {
			continue
		}
		r.projects[p.ID] = p
		result.Succeeded++
	}
	for _, c := range snap.Categories {
		if c == nil || c.ID == "" {
			continue
		}
		r.categories[c.ID] = c
		result.Succeeded++
	}
	for _, tpl := range snap.Templates {
		if tpl == nil || tpl.ID == "" {
			continue
		}
		if existing := r.templates[tpl.ID]; existing != nil && existing.IsDefault {
			continue
		}
		r.templates[tpl.ID] = tpl
		result.Succeeded++
	}
	if snap.DefaultCategoryID != "" && r.categories[snap.DefaultCategoryID] != nil {
		r.defaultCategoryID = snap.DefaultCategoryID
	}
	for k, v := range snap.Metadata {
		r.metadata[k] = v
	}
	r.ensureDefaultCategoryLocked(ctx)
	r.saveLocked(ctx)
	return result
}
