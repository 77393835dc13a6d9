package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stagetrack/stagetrack/internal/eventbus"
	"github.com/stagetrack/stagetrack/internal/tracker"
	"github.com/stagetrack/stagetrack/pkg/cerr"
	"github.com/stagetrack/stagetrack/pkg/storage"
)

// Registry owns every project, category and template, and is the single
// mutation path for the whole object graph. Each mutation recomputes the
// affected project's completion state, persists a snapshot and publishes a
// domain event.
//
// The mutex exists because the HTTP layer serves requests concurrently;
// across processes the snapshot stays last-write-wins.
type Registry struct {
	mu           sync.RWMutex
	store        storage.Storage
	bus          *eventbus.Bus
	snapshotPath string

	projects          map[string]*tracker.Project
	categories        map[string]*tracker.Category
	templates         map[string]*tracker.Template
	defaultCategoryID string
	metadata          map[string]string
	loadedAt          time.Time
}

func New(store storage.Storage, bus *eventbus.Bus, snapshotPath string) *Registry {
	return &Registry{
		store:        store,
		bus:          bus,
		snapshotPath: snapshotPath,
		projects:     make(map[string]*tracker.Project),
		categories:   make(map[string]*tracker.Category),
		templates:    make(map[string]*tracker.Template),
		metadata:     make(map[string]string),
	}
}

func (r *Registry) publish(eventType eventbus.EventType, resourceID string, payload map[string]string) {
	if r.bus != nil {
		r.bus.PublishNew(eventType, resourceID, payload)
	}
}

// ensureDefaultCategoryLocked guarantees at least one category exists and
// that the default pointer names a live category.
func (r *Registry) ensureDefaultCategoryLocked(ctx context.Context) {
	if len(r.categories) == 0 {
		cat := tracker.NewCategory("General", "Default category", "#6c757d")
		r.categories[cat.ID] = cat
		r.defaultCategoryID = cat.ID
		r.saveLocked(ctx)
		return
	}
	if r.defaultCategoryID == "" || r.categories[r.defaultCategoryID] == nil {
		ids := make([]string, 0, len(r.categories))
		for id := range r.categories {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		r.defaultCategoryID = ids[0]
		r.saveLocked(ctx)
	}
}

// CreateProject builds a project with the given pipeline (or the standard
// one), starts the first stage and assigns the default category when none
// is named.
func (r *Registry) CreateProject(ctx context.Context, name, description string, stageNames []string, deadline, categoryID string) (*tracker.Project, error) {
	if strings.TrimSpace(name) == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "Project name is required", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if categoryID == "" {
		categoryID = r.defaultCategoryID
	} else if r.categories[categoryID] == nil {
		return nil, cerr.NewError(cerr.NotFound, "Category not found", nil)
	}

	p := tracker.NewProject(name, description, deadline, categoryID)
	names := stageNames
	if len(names) == 0 {
		names = defaultStageNames
	}
	for _, stageName := range names {
		p.AddStage(tracker.NewStage(stageName, fmt.Sprintf("Stage for %s", stageName), defaultStageTasks[stageName]))
	}
	if len(p.Stages) > 0 {
		p.Stages[0].Start()
	}

	r.projects[p.ID] = p
	r.saveLocked(ctx)
	r.publish(eventbus.EventProjectCreated, p.ID, map[string]string{"name": p.Name})
	return p, nil
}

// CreateProjectFromTemplate instantiates the named template, falling back
// to the standard one when the id is unknown.
func (r *Registry) CreateProjectFromTemplate(ctx context.Context, name, description, deadline, categoryID, templateID string) (*tracker.Project, error) {
	if strings.TrimSpace(name) == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "Project name is required", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if categoryID == "" {
		categoryID = r.defaultCategoryID
	} else if r.categories[categoryID] == nil {
		return nil, cerr.NewError(cerr.NotFound, "Category not found", nil)
	}

	tpl := r.templates[templateID]
	if tpl == nil {
		tpl = r.templates[TemplateStandard]
	}
	if tpl == nil {
		return nil, cerr.NewError(cerr.NotFound, "Template not found", nil)
	}

	p := tpl.Instantiate(name, description, deadline, categoryID)
	if len(p.Stages) > 0 {
		p.Stages[0].Start()
	}

	r.projects[p.ID] = p
	r.saveLocked(ctx)
	r.publish(eventbus.EventProjectCreated, p.ID, map[string]string{"name": p.Name, "template": tpl.ID})
	return p, nil
}

func (r *Registry) GetProject(id string) (*tracker.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p := r.projects[id]
	if p == nil {
		return nil, cerr.NewError(cerr.NotFound, "Project not found", nil)
	}
	return p, nil
}

// ListProjects returns every project sorted by creation time, newest first.
func (r *Registry) ListProjects() []*tracker.Project {
	r.mu.RLock()
	defer r.mu.RUnlock()
	projects := make([]*tracker.Project, 0, len(r.projects))
	for _, p := range r.projects {
		projects = append(projects, p)
	}
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})
	return projects
}

func (r *Registry) DeleteProject(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.projects[id]
	if p == nil {
		return cerr.NewError(cerr.NotFound, "Project not found", nil)
	}
	delete(r.projects, id)
	r.saveLocked(ctx)
	r.publish(eventbus.EventProjectDeleted, id, map[string]string{"name": p.Name})
	return nil
}

// UpdateProject overwrites the mutable header fields. Empty arguments leave
// the current value in place, except deadline which may be cleared
// explicitly.
func (r *Registry) UpdateProject(ctx context.Context, id, name, description string, deadline *string) (*tracker.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.projects[id]
	if p == nil {
		return nil, cerr.NewError(cerr.NotFound, "Project not found", nil)
	}
	if name != "" {
		p.Name = name
	}
	if description != "" {
		p.Description = description
	}
	if deadline != nil {
		p.Deadline = *deadline
	}
	r.saveLocked(ctx)
	return p, nil
}

// AddStage appends a new stage to the end of a project's pipeline.
func (r *Registry) AddStage(ctx context.Context, projectID, name, description string) (*tracker.Stage, error) {
	if strings.TrimSpace(name) == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "Stage name is required", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.projects[projectID]
	if p == nil {
		return nil, cerr.NewError(cerr.NotFound, "Project not found", nil)
	}
	s := tracker.NewStage(name, description, nil)
	p.AddStage(s)
	p.RecomputeCompletion()
	r.saveLocked(ctx)
	return s, nil
}

// AddTask appends a task to the project's current stage (the stage being
// worked), starting the stage if it was fresh.
func (r *Registry) AddTask(ctx context.Context, projectID, name, description, assignee string) (*tracker.Task, error) {
	if strings.TrimSpace(name) == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "Task name is required", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.projects[projectID]
	if p == nil {
		return nil, cerr.NewError(cerr.NotFound, "Project not found", nil)
	}
	current := p.CurrentStage()
	if current == nil {
		return nil, cerr.NewError(cerr.FailedPrecondition, "No active stage to add task to", nil)
	}
	t := tracker.NewTask(name, description, assignee)
	current.AddTask(t)
	p.RecomputeCompletion()
	r.saveLocked(ctx)
	return t, nil
}

// findTaskLocked locates a task by id across every project.
func (r *Registry) findTaskLocked(taskID string) (*tracker.Project, *tracker.Stage, *tracker.Task) {
	for _, p := range r.projects {
		if t, s := p.FindTask(taskID); t != nil {
			return p, s, t
		}
	}
	return nil, nil, nil
}

// CompleteTask marks a task completed wherever it lives.
func (r *Registry) CompleteTask(ctx context.Context, taskID string) (*tracker.Project, *tracker.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, _, t := r.findTaskLocked(taskID)
	if t == nil {
		return nil, nil, cerr.NewError(cerr.NotFound, "Task not found", nil)
	}
	t.Complete()
	r.recomputeAndNotifyLocked(p)
	r.saveLocked(ctx)
	r.publish(eventbus.EventTaskCompleted, t.ID, map[string]string{"name": t.Name, "project": p.Name})
	return p, t, nil
}

// SetTaskStatus assigns a parsed status to a task.
func (r *Registry) SetTaskStatus(ctx context.Context, taskID string, status tracker.TaskStatus) (*tracker.Project, *tracker.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, _, t := r.findTaskLocked(taskID)
	if t == nil {
		return nil, nil, cerr.NewError(cerr.NotFound, "Task not found", nil)
	}
	t.SetStatus(status)
	r.recomputeAndNotifyLocked(p)
	r.saveLocked(ctx)
	if status == tracker.TaskCompleted {
		r.publish(eventbus.EventTaskCompleted, t.ID, map[string]string{"name": t.Name, "project": p.Name})
	}
	return p, t, nil
}

// CompleteCurrentStage completes the stage being worked without advancing.
func (r *Registry) CompleteCurrentStage(ctx context.Context, projectID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.projects[projectID]
	if p == nil {
		return "", cerr.NewError(cerr.NotFound, "Project not found", nil)
	}
	current := p.CurrentStage()
	if current == nil {
		return "", cerr.NewError(cerr.FailedPrecondition, "No active stage to complete", nil)
	}
	msg, err := current.Complete()
	if err != nil {
		return "", err
	}
	r.recomputeAndNotifyLocked(p)
	r.saveLocked(ctx)
	return msg, nil
}

// AdvanceProject moves the pipeline forward one stage.
func (r *Registry) AdvanceProject(ctx context.Context, projectID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.projects[projectID]
	if p == nil {
		return "", cerr.NewError(cerr.NotFound, "Project not found", nil)
	}
	wasCompleted := p.CompletedAt != nil
	msg, err := p.AdvanceToNextStage()
	if err != nil {
		return "", err
	}
	p.RecomputeCompletion()
	r.saveLocked(ctx)
	r.publish(eventbus.EventStageAdvanced, p.ID, map[string]string{"project": p.Name, "message": msg})
	if !wasCompleted && p.CompletedAt != nil {
		r.publishProjectCompletedLocked(p)
	}
	return msg, nil
}

// RevertProject moves the pipeline back one stage.
func (r *Registry) RevertProject(ctx context.Context, projectID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.projects[projectID]
	if p == nil {
		return "", cerr.NewError(cerr.NotFound, "Project not found", nil)
	}
	msg, err := p.GoBackToPreviousStage()
	if err != nil {
		return "", err
	}
	p.RecomputeCompletion()
	r.saveLocked(ctx)
	r.publish(eventbus.EventStageReverted, p.ID, map[string]string{"project": p.Name, "message": msg})
	return msg, nil
}

// recomputeAndNotifyLocked reconciles a project's completion state and
// publishes a completion event when the flag flips to true.
func (r *Registry) recomputeAndNotifyLocked(p *tracker.Project) {
	wasCompleted := p.CompletedAt != nil
	p.RecomputeCompletion()
	if !wasCompleted && p.CompletedAt != nil {
		r.publishProjectCompletedLocked(p)
	}
}

func (r *Registry) publishProjectCompletedLocked(p *tracker.Project) {
	completedAt := ""
	if p.CompletedAt != nil {
		completedAt = p.CompletedAt.Format(time.RFC3339)
	}
	r.publish(eventbus.EventProjectCompleted, p.ID, map[string]string{
		"name":         p.Name,
		"completed_at": completedAt,
	})
}

// CreateCategory registers a new category.
func (r *Registry) CreateCategory(ctx context.Context, name, description, color string) (*tracker.Category, error) {
	if strings.TrimSpace(name) == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "Category name is required", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cat := tracker.NewCategory(name, description, color)
	r.categories[cat.ID] = cat
	r.saveLocked(ctx)
	return cat, nil
}

func (r *Registry) GetCategory(id string) (*tracker.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cat := r.categories[id]
	if cat == nil {
		return nil, cerr.NewError(cerr.NotFound, "Category not found", nil)
	}
	return cat, nil
}

// ListCategories returns every category sorted by name.
func (r *Registry) ListCategories() []*tracker.Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	categories := make([]*tracker.Category, 0, len(r.categories))
	for _, c := range r.categories {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool {
		return categories[i].Name < categories[j].Name
	})
	return categories
}

// DeleteCategory removes a category and repairs every reference to it:
// referencing projects move to the default category, or to none when the
// deleted category was itself the default (a new default is then elected
// from whatever remains).
func (r *Registry) DeleteCategory(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.categories[id] == nil {
		return cerr.NewError(cerr.NotFound, "Category not found", nil)
	}

	replacement := r.defaultCategoryID
	if replacement == id {
		replacement = ""
	}
	for _, p := range r.projects {
		if p.CategoryID == id {
			p.CategoryID = replacement
		}
	}

	delete(r.categories, id)

	if r.defaultCategoryID == id {
		r.defaultCategoryID = ""
		r.ensureDefaultCategoryLocked(ctx)
	}
	r.saveLocked(ctx)
	return nil
}

// AssignProjectToCategory points a project at a category, or at none when
// categoryID is empty.
func (r *Registry) AssignProjectToCategory(ctx context.Context, projectID, categoryID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.projects[projectID]
	if p == nil {
		return cerr.NewError(cerr.NotFound, "Project not found", nil)
	}
	if categoryID != "" && r.categories[categoryID] == nil {
		return cerr.NewError(cerr.NotFound, "Category not found", nil)
	}
	p.CategoryID = categoryID
	r.saveLocked(ctx)
	return nil
}

// SetDefaultCategory updates the default-category pointer; empty clears it.
func (r *Registry) SetDefaultCategory(ctx context.Context, categoryID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if categoryID != "" && r.categories[categoryID] == nil {
		return cerr.NewError(cerr.NotFound, "Category not found", nil)
	}
	r.defaultCategoryID = categoryID
	r.saveLocked(ctx)
	return nil
}

func (r *Registry) DefaultCategory() *tracker.Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.defaultCategoryID == "" {
		return nil
	}
	return r.categories[r.defaultCategoryID]
}

// ProjectsByCategory returns the projects referencing a category, newest
// first.
func (r *Registry) ProjectsByCategory(categoryID string) []*tracker.Project {
	all := r.ListProjects()
	var out []*tracker.Project
	for _, p := range all {
		if p.CategoryID == categoryID {
			out = append(out, p)
		}
	}
	return out
}

// ListTemplates returns every template sorted by name.
func (r *Registry) ListTemplates() []*tracker.Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	templates := make([]*tracker.Template, 0, len(r.templates))
	for _, tpl := range r.templates {
		templates = append(templates, tpl)
	}
	sort.Slice(templates, func(i, j int) bool {
		return templates[i].Name < templates[j].Name
	})
	return templates
}

func (r *Registry) GetTemplate(id string) (*tracker.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tpl := r.templates[id]
	if tpl == nil {
		return nil, cerr.NewError(cerr.NotFound, "Template not found", nil)
	}
	return tpl, nil
}

func (r *Registry) CreateTemplate(ctx context.Context, name, description string, stages []tracker.StageBlueprint) (*tracker.Template, error) {
	if strings.TrimSpace(name) == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "Template name is required", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	tpl := tracker.NewTemplate(name, description, stages)
	r.templates[tpl.ID] = tpl
	r.saveLocked(ctx)
	return tpl, nil
}

func (r *Registry) UpdateTemplate(ctx context.Context, id, name, description string, stages []tracker.StageBlueprint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tpl := r.templates[id]
	if tpl == nil {
		return cerr.NewError(cerr.NotFound, "Template not found", nil)
	}
	if tpl.IsDefault {
		return cerr.NewError(cerr.FailedPrecondition, "Default templates cannot be modified", nil)
	}
	tpl.Name = name
	tpl.Description = description
	tpl.Stages = stages
	r.saveLocked(ctx)
	return nil
}

func (r *Registry) DeleteTemplate(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tpl := r.templates[id]
	if tpl == nil {
		return cerr.NewError(cerr.NotFound, "Template not found", nil)
	}
	if tpl.IsDefault {
		return cerr.NewError(cerr.FailedPrecondition, "Default templates cannot be deleted", nil)
	}
	delete(r.templates, id)
	r.saveLocked(ctx)
	return nil
}

// GlobalSummary aggregates counts and mean progress across all projects.
type GlobalSummary struct {
	TotalProjects     int     `json:"total_projects"`
	ActiveProjects    int     `json:"active_projects"`
	CompletedProjects int     `json:"completed_projects"`
	TotalTasks        int     `json:"total_tasks"`
	CompletedTasks    int     `json:"completed_tasks"`
	TotalStages       int     `json:"total_stages"`
	CompletedStages   int     `json:"completed_stages"`
	OverallProgress   float64 `json:"overall_progress"`
}

func (r *Registry) GlobalSummary() GlobalSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var summary GlobalSummary
	if len(r.projects) == 0 {
		return summary
	}

	progressTotal := 0.0
	for _, p := range r.projects {
		summary.TotalProjects++
		if p.IsCompleted() {
			summary.CompletedProjects++
		}
		progressTotal += p.OverallProgress()
		summary.TotalStages += len(p.Stages)
		for _, s := range p.Stages {
			if s.Status == tracker.StageCompleted {
				summary.CompletedStages++
			}
			summary.TotalTasks += len(s.Tasks)
			for _, t := range s.Tasks {
				if t.Status == tracker.TaskCompleted {
					summary.CompletedTasks++
				}
			}
		}
	}
	summary.ActiveProjects = summary.TotalProjects - summary.CompletedProjects
	summary.OverallProgress = progressTotal / float64(summary.TotalProjects)
	return summary
}

// Subtitle returns the dashboard subtitle from the registry metadata.
func (r *Registry) Subtitle() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.metadata["subtitle"]; ok && s != "" {
		return s
	}
	return defaultMetadata()["subtitle"]
}

// UpdateMetadata overwrites the free-form metadata fields callers may
// change and stamps last_modified.
func (r *Registry) UpdateMetadata(ctx context.Context, fields map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range []string{"subtitle", "description"} {
		if v, ok := fields[key]; ok {
			r.metadata[key] = v
		}
	}
	r.metadata["last_modified"] = time.Now().Format(time.RFC3339)
	r.saveLocked(ctx)
}
