package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stagetrack/stagetrack/internal/notification"
	"github.com/stagetrack/stagetrack/internal/pushsubscription"
	"github.com/stagetrack/stagetrack/internal/registry"
	"github.com/stagetrack/stagetrack/internal/tracker"
	"github.com/stagetrack/stagetrack/pkg/cerr"
)

func (s *Server) apiRoutes(r chi.Router) {
	r.Get("/projects", s.handleListProjects)
	r.Post("/create_project", s.handleCreateProject)
	r.Get("/project/{projectID}", s.handleGetProject)
	r.Post("/project/{projectID}/update", s.handleUpdateProject)
	r.Delete("/project/{projectID}/delete", s.handleDeleteProject)
	r.Post("/project/{projectID}/add_task", s.handleAddTask)
	r.Post("/project/{projectID}/add_stage", s.handleAddStage)
	r.Post("/project/{projectID}/next_stage", s.handleNextStage)
	r.Post("/project/{projectID}/previous_stage", s.handlePreviousStage)
	r.Post("/project/{projectID}/complete_stage", s.handleCompleteStage)
	r.Post("/project/{projectID}/assign_category", s.handleAssignCategory)

	r.Post("/task/{taskID}/complete", s.handleCompleteTask)
	r.Post("/task/{taskID}/update", s.handleUpdateTask)

	r.Get("/summary", s.handleSummary)

	r.Get("/categories", s.handleListCategories)
	r.Post("/categories", s.handleCreateCategory)
	r.Delete("/category/{categoryID}", s.handleDeleteCategory)
	r.Get("/default_category", s.handleGetDefaultCategory)
	r.Post("/default_category", s.handleSetDefaultCategory)

	r.Get("/templates", s.handleListTemplates)
	r.Post("/templates", s.handleCreateTemplate)
	r.Get("/template/{templateID}", s.handleGetTemplate)
	r.Put("/template/{templateID}", s.handleUpdateTemplate)
	r.Delete("/template/{templateID}", s.handleDeleteTemplate)

	r.Get("/export/projects", s.handleExportProjects)
	r.Get("/export/templates", s.handleExportTemplates)
	r.Get("/export/all", s.handleExportAll)
	r.Post("/import/projects", s.handleImportProjects)
	r.Post("/import/templates", s.handleImportTemplates)
	r.Post("/import/all", s.handleImportAll)

	r.Post("/projects/batch_delete", s.handleBatchDelete)
	r.Post("/projects/batch_move_category", s.handleBatchMoveCategory)

	r.Get("/notification-settings", s.handleGetNotificationSettings)
	r.Post("/notification-settings", s.handleUpdateNotificationSettings)
	r.Post("/test-notifications", s.handleTestNotifications)

	r.Get("/push/vapid_public_key", s.handleVapidPublicKey)
	r.Post("/push/subscribe", s.handlePushSubscribe)
	r.Post("/push/unsubscribe", s.handlePushUnsubscribe)

	r.Get("/system-status", s.handleSystemStatus)
	r.Get("/recent-activity", s.handleRecentActivity)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return cerr.NewError(cerr.InvalidArgument, "invalid JSON body", err)
	}
	return nil
}

// Projects

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	cerr.SetJSONResponse(r.Context(), s.registry.ListProjects())
}

type createProjectRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Stages      []string `json:"stages"`
	Deadline    string   `json:"deadline"`
	CategoryID  string   `json:"category_id"`
	TemplateID  string   `json:"template_id"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	var (
		p   *tracker.Project
		err error
	)
	if req.TemplateID != "" {
		p, err = s.registry.CreateProjectFromTemplate(ctx, req.Name, req.Description, req.Deadline, req.CategoryID, req.TemplateID)
	} else {
		p, err = s.registry.CreateProject(ctx, req.Name, req.Description, req.Stages, req.Deadline, req.CategoryID)
	}
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONCreated(ctx, p)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := s.registry.GetProject(chi.URLParam(r, "projectID"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, p)
}

type updateProjectRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Deadline    *string `json:"deadline"`
	CategoryID  *string `json:"category_id"`
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req updateProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	id := chi.URLParam(r, "projectID")
	p, err := s.registry.UpdateProject(ctx, id, req.Name, req.Description, req.Deadline)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.CategoryID != nil {
		if err := s.registry.AssignProjectToCategory(ctx, id, *req.CategoryID); err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
	}
	cerr.SetJSONResponse(ctx, p)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.registry.DeleteProject(ctx, chi.URLParam(r, "projectID")); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]string{"message": "Project deleted successfully"})
}

type addTaskRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Assignee    string `json:"assignee"`
}

func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req addTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	t, err := s.registry.AddTask(ctx, chi.URLParam(r, "projectID"), req.Name, req.Description, req.Assignee)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONCreated(ctx, t)
}

type addStageRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleAddStage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req addStageRequest
	if err := decodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	st, err := s.registry.AddStage(ctx, chi.URLParam(r, "projectID"), req.Name, req.Description)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONCreated(ctx, st)
}

// stageTransitionResponse mirrors the shape the dashboard expects from
// stage movement calls: a flag, the state-machine message and the fresh
// project document.
type stageTransitionResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Project *tracker.Project `json:"project,omitempty"`
}

func (s *Server) stageTransition(w http.ResponseWriter, r *http.Request, move func() (string, error)) {
	ctx := r.Context()
	msg, err := move()
	if err != nil {
		// Blocked transitions are a normal dashboard outcome, reported
		// in-band rather than as an HTTP failure.
		if cerr.IsCode(err, cerr.FailedPrecondition) {
			p, getErr := s.registry.GetProject(chi.URLParam(r, "projectID"))
			if getErr != nil {
				cerr.SetJSONError(ctx, getErr)
				return
			}
			cerr.SetJSONResponse(ctx, stageTransitionResponse{Success: false, Message: cerr.Message(err), Project: p})
			return
		}
		cerr.SetJSONError(ctx, err)
		return
	}
	p, err := s.registry.GetProject(chi.URLParam(r, "projectID"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, stageTransitionResponse{Success: true, Message: msg, Project: p})
}

func (s *Server) handleNextStage(w http.ResponseWriter, r *http.Request) {
	s.stageTransition(w, r, func() (string, error) {
		return s.registry.AdvanceProject(r.Context(), chi.URLParam(r, "projectID"))
	})
}

func (s *Server) handlePreviousStage(w http.ResponseWriter, r *http.Request) {
	s.stageTransition(w, r, func() (string, error) {
		return s.registry.RevertProject(r.Context(), chi.URLParam(r, "projectID"))
	})
}

func (s *Server) handleCompleteStage(w http.ResponseWriter, r *http.Request) {
	s.stageTransition(w, r, func() (string, error) {
		return s.registry.CompleteCurrentStage(r.Context(), chi.URLParam(r, "projectID"))
	})
}

type assignCategoryRequest struct {
	CategoryID string `json:"category_id"`
}

func (s *Server) handleAssignCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req assignCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := s.registry.AssignProjectToCategory(ctx, chi.URLParam(r, "projectID"), req.CategoryID); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]string{"message": "Category assigned successfully"})
}

// Tasks

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, t, err := s.registry.CompleteTask(ctx, chi.URLParam(r, "taskID"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

type updateTaskRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req updateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	status, err := tracker.ParseTaskStatus(req.Status)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	_, t, err := s.registry.SetTaskStatus(ctx, chi.URLParam(r, "taskID"), status)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

// Summary

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	cerr.SetJSONResponse(r.Context(), s.registry.GlobalSummary())
}

// Categories

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cerr.SetJSONResponse(r.Context(), s.registry.ListCategories())
}

type createCategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cat, err := s.registry.CreateCategory(ctx, req.Name, req.Description, req.Color)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONCreated(ctx, cat)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.registry.DeleteCategory(ctx, chi.URLParam(r, "categoryID")); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]string{"message": "Category deleted successfully"})
}

func (s *Server) handleGetDefaultCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if cat := s.registry.DefaultCategory(); cat != nil {
		cerr.SetJSONResponse(ctx, cat)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"default_category": nil})
}

func (s *Server) handleSetDefaultCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req assignCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := s.registry.SetDefaultCategory(ctx, req.CategoryID); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]string{"message": "Default category updated"})
}

// Templates

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	cerr.SetJSONResponse(r.Context(), s.registry.ListTemplates())
}

type templateRequest struct {
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	Stages      []tracker.StageBlueprint `json:"stages"`
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req templateRequest
	if err := decodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if len(req.Stages) == 0 {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "Name and stages are required", nil)
		return
	}
	tpl, err := s.registry.CreateTemplate(ctx, req.Name, req.Description, req.Stages)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONCreated(ctx, tpl)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tpl, err := s.registry.GetTemplate(chi.URLParam(r, "templateID"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, tpl)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req templateRequest
	if err := decodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.Name == "" || len(req.Stages) == 0 {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "Name and stages are required", nil)
		return
	}
	if err := s.registry.UpdateTemplate(ctx, chi.URLParam(r, "templateID"), req.Name, req.Description, req.Stages); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]bool{"success": true})
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.registry.DeleteTemplate(ctx, chi.URLParam(r, "templateID")); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]bool{"success": true})
}

// Export / import

func (s *Server) handleExportProjects(w http.ResponseWriter, r *http.Request) {
	cerr.SetJSONResponse(r.Context(), s.registry.ExportProjects())
}

func (s *Server) handleExportTemplates(w http.ResponseWriter, r *http.Request) {
	cerr.SetJSONResponse(r.Context(), s.registry.ExportTemplates())
}

func (s *Server) handleExportAll(w http.ResponseWriter, r *http.Request) {
	cerr.SetJSONResponse(r.Context(), s.registry.ExportAll())
}

func (s *Server) handleImportProjects(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var doc registry.ProjectExport
	if err := decodeJSON(r, &doc); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if len(doc.Projects) == 0 {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "No projects data found", nil)
		return
	}
	cerr.SetJSONResponse(ctx, s.registry.ImportProjects(ctx, doc.Projects))
}

func (s *Server) handleImportTemplates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var doc registry.TemplateExport
	if err := decodeJSON(r, &doc); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if len(doc.Templates) == 0 {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "No templates data found", nil)
		return
	}
	cerr.SetJSONResponse(ctx, s.registry.ImportTemplates(ctx, doc.Templates))
}

func (s *Server) handleImportAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var doc registry.FullExport
	if err := decodeJSON(r, &doc); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, s.registry.ImportAll(ctx, doc.Snapshot))
}

// Batch operations

type batchRequest struct {
	ProjectIDs []string `json:"project_ids"`
	CategoryID string   `json:"category_id"`
}

func (s *Server) handleBatchDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req batchRequest
	if err := decodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if len(req.ProjectIDs) == 0 {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "No project IDs provided", nil)
		return
	}
	cerr.SetJSONResponse(ctx, s.registry.BatchDeleteProjects(ctx, req.ProjectIDs))
}

func (s *Server) handleBatchMoveCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req batchRequest
	if err := decodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if len(req.ProjectIDs) == 0 {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "No project IDs provided", nil)
		return
	}
	result, err := s.registry.BatchMoveCategory(ctx, req.ProjectIDs, req.CategoryID)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, result)
}

// Notifications

func (s *Server) handleGetNotificationSettings(w http.ResponseWriter, r *http.Request) {
	cerr.SetJSONResponse(r.Context(), s.settings.Get())
}

func (s *Server) handleUpdateNotificationSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body json.RawMessage
	if err := decodeJSON(r, &body); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	updated, err := s.settings.Update(ctx, func(st *notification.Settings) error {
		// Unmarshal over the current settings: absent fields keep their
		// values, so partial updates work. A decode failure aborts the
		// whole update so a half-applied body is never persisted.
		if err := json.Unmarshal(body, st); err != nil {
			return cerr.NewError(cerr.InvalidArgument, "invalid JSON body", err)
		}
		return nil
	})
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, updated)
}

func (s *Server) handleTestNotifications(w http.ResponseWriter, r *http.Request) {
	cerr.SetJSONResponse(r.Context(), s.notifier.TestAll(r.Context()))
}

// Web push registration

func (s *Server) handleVapidPublicKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.vapidEnv.VAPIDPublicKey == "" {
		cerr.SetNewJSONError(ctx, cerr.FailedPrecondition, "VAPID keys not configured", nil)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]string{"public_key": s.vapidEnv.VAPIDPublicKey})
}

type pushSubscribeRequest struct {
	Endpoint  string `json:"endpoint"`
	P256dhKey string `json:"p256dh_key"`
	AuthKey   string `json:"auth_key"`
}

func (s *Server) handlePushSubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req pushSubscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.Endpoint == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "endpoint is required", nil)
		return
	}
	if req.P256dhKey == "" || req.AuthKey == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "p256dh_key and auth_key are required", nil)
		return
	}
	sub := pushsubscription.New(req.Endpoint, req.P256dhKey, req.AuthKey, r.UserAgent())
	if err := s.pushRepo.Save(ctx, sub); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONCreated(ctx, sub)
}

func (s *Server) handlePushUnsubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req pushSubscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.Endpoint == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "endpoint is required", nil)
		return
	}
	if err := s.pushRepo.DeleteByEndpoint(ctx, req.Endpoint); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]string{"message": "Subscription removed"})
}

// Status

type systemStatus struct {
	WebInterface            bool   `json:"web_interface"`
	DataPersistence         bool   `json:"data_persistence"`
	AutoReload              bool   `json:"auto_reload"`
	NotificationsConfigured bool   `json:"notifications_configured"`
	TotalProjects           int    `json:"total_projects"`
	Timestamp               string `json:"timestamp"`
}

func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	settings := s.settings.Get()
	cerr.SetJSONResponse(ctx, systemStatus{
		WebInterface:            true,
		DataPersistence:         s.registry.SnapshotPersisted(ctx),
		AutoReload:              true,
		NotificationsConfigured: settings.Push.Enabled || settings.Telegram.Enabled,
		TotalProjects:           len(s.registry.ListProjects()),
		Timestamp:               time.Now().Format(time.RFC3339),
	})
}

type activityEntry struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Time        string `json:"time"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
}

func (s *Server) handleRecentActivity(w http.ResponseWriter, r *http.Request) {
	projects := s.registry.ListProjects()
	categories := s.registry.ListCategories()

	activities := []activityEntry{{
		Title:       "Dashboard Loaded",
		Description: fmt.Sprintf("Viewing %d projects across %d categories", len(projects), len(categories)),
		Time:        time.Now().Format("2006-01-02 15:04:05"),
		Icon:        "fas fa-tachometer-alt",
		Color:       "#4f46e5",
	}}

	// Newest five projects.
	for i, p := range projects {
		if i == 5 {
			break
		}
		category := "Uncategorized"
		if p.CategoryID != "" {
			if cat, err := s.registry.GetCategory(p.CategoryID); err == nil {
				category = cat.Name
			}
		}
		activities = append(activities, activityEntry{
			Title:       "Project Created: " + p.Name,
			Description: "New project added to " + category,
			Time:        p.CreatedAt.Format("2006-01-02 15:04:05"),
			Icon:        "fas fa-plus",
			Color:       "#10b981",
		})
	}

	cerr.SetJSONResponse(r.Context(), map[string][]activityEntry{"activities": activities})
}
