package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagetrack/stagetrack/internal/config"
	"github.com/stagetrack/stagetrack/internal/eventbus"
	"github.com/stagetrack/stagetrack/internal/notification"
	pushsubrepo "github.com/stagetrack/stagetrack/internal/pushsubscription/repositoryimpl"
	"github.com/stagetrack/stagetrack/internal/registry"
	"github.com/stagetrack/stagetrack/internal/tracker"
	"github.com/stagetrack/stagetrack/pkg/storage"
)

func newTestServer(t *testing.T) (*Server, *registry.Registry) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	reg := registry.New(store, eventbus.New(), "projects.json")
	require.NoError(t, reg.Load(context.Background()))

	settings := notification.NewSettingsStore(store, "notification_config.yaml")
	require.NoError(t, settings.Load(context.Background()))
	notifier := notification.NewNotifier(settings, nil, nil)
	pushRepo := pushsubrepo.NewYAMLRepository(store)

	env := &config.Env{}
	srv := NewServer(env, reg, settings, notifier, pushRepo)
	return srv, reg
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateAndGetProject(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/create_project", map[string]any{
		"name":        "Website",
		"description": "relaunch",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[tracker.Project](t, rec)
	assert.Len(t, created.Stages, 6)

	rec = doJSON(t, h, http.MethodGet, "/api/project/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[tracker.Project](t, rec)
	assert.Equal(t, "Website", got.Name)

	rec = doJSON(t, h, http.MethodGet, "/api/project/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateProjectRequiresName(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/create_project", map[string]any{
		"description": "nameless",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStageTransitionEndpoints(t *testing.T) {
	srv, reg := newTestServer(t)
	h := srv.Handler()
	ctx := context.Background()

	p, err := reg.CreateProject(ctx, "flow", "", []string{"A", "B"}, "", "")
	require.NoError(t, err)
	task, err := reg.AddTask(ctx, p.ID, "t", "", "")
	require.NoError(t, err)

	// Blocked advance is a 200 with success=false, not an HTTP error.
	rec := doJSON(t, h, http.MethodPost, "/api/project/"+p.ID+"/next_stage", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	blocked := decodeBody[stageTransitionResponse](t, rec)
	assert.False(t, blocked.Success)
	assert.Equal(t, "Cannot complete stage: 1 tasks incomplete", blocked.Message)

	rec = doJSON(t, h, http.MethodPost, "/api/task/"+task.ID+"/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/project/"+p.ID+"/next_stage", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	advanced := decodeBody[stageTransitionResponse](t, rec)
	assert.True(t, advanced.Success)
	assert.Equal(t, "Advanced to stage: B", advanced.Message)

	rec = doJSON(t, h, http.MethodPost, "/api/project/"+p.ID+"/previous_stage", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	back := decodeBody[stageTransitionResponse](t, rec)
	assert.True(t, back.Success)
	assert.Equal(t, "Moved back to stage: A", back.Message)
}

func TestTaskUpdateValidatesStatus(t *testing.T) {
	srv, reg := newTestServer(t)
	h := srv.Handler()
	ctx := context.Background()

	p, err := reg.CreateProject(ctx, "p", "", []string{"A"}, "", "")
	require.NoError(t, err)
	task, err := reg.AddTask(ctx, p.ID, "t", "", "")
	require.NoError(t, err)

	rec := doJSON(t, h, http.MethodPost, "/api/task/"+task.ID+"/update", map[string]string{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/task/"+task.ID+"/update", map[string]string{"status": "in_progress"})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[tracker.Task](t, rec)
	assert.Equal(t, tracker.TaskInProgress, got.Status)
}

func TestCategoryEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/categories", map[string]string{
		"name":  "Work",
		"color": "#ff0000",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[tracker.Category](t, rec)

	rec = doJSON(t, h, http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]tracker.Category](t, rec)
	assert.Len(t, list, 2) // seeded General plus Work

	rec = doJSON(t, h, http.MethodDelete, "/api/category/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/api/category/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDefaultCategoryEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodGet, "/api/default_category", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	def := decodeBody[tracker.Category](t, rec)
	assert.Equal(t, "General", def.Name)

	rec = doJSON(t, h, http.MethodPost, "/api/default_category", map[string]string{"category_id": "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTemplateEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodGet, "/api/templates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]tracker.Template](t, rec)
	assert.Len(t, list, 3)

	rec = doJSON(t, h, http.MethodPost, "/api/templates", map[string]any{
		"name":   "Custom",
		"stages": []map[string]any{{"name": "Solo"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[tracker.Template](t, rec)

	rec = doJSON(t, h, http.MethodDelete, "/api/template/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Built-ins are protected.
	rec = doJSON(t, h, http.MethodDelete, "/api/template/standard", nil)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
}

func TestExportImportRoundTrip(t *testing.T) {
	srv, reg := newTestServer(t)
	h := srv.Handler()
	ctx := context.Background()

	_, err := reg.CreateProject(ctx, "exported", "", []string{"A"}, "", "")
	require.NoError(t, err)

	rec := doJSON(t, h, http.MethodGet, "/api/export/projects", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	exported := decodeBody[registry.ProjectExport](t, rec)
	require.Len(t, exported.Projects, 1)

	// Import into a fresh server.
	srv2, reg2 := newTestServer(t)
	rec = doJSON(t, srv2.Handler(), http.MethodPost, "/api/import/projects", exported)
	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeBody[registry.BatchResult](t, rec)
	assert.Equal(t, 1, result.Succeeded)
	assert.Len(t, reg2.ListProjects(), 1)
}

func TestBatchEndpointsValidate(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/projects/batch_delete", map[string]any{"project_ids": []string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/projects/batch_move_category", map[string]any{
		"project_ids": []string{"x"},
		"category_id": "missing",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotificationSettingsEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodGet, "/api/notification-settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[notification.Settings](t, rec)
	assert.Equal(t, 3, got.Preferences.DeadlineWarningDays)

	// Partial update: untouched fields keep their values.
	rec = doJSON(t, h, http.MethodPost, "/api/notification-settings", map[string]any{
		"telegram": map[string]any{"enabled": true, "chat_id": 99},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeBody[notification.Settings](t, rec)
	assert.True(t, updated.Telegram.Enabled)
	assert.Equal(t, int64(99), updated.Telegram.ChatID)
	assert.True(t, updated.Preferences.NotifyDeadlines)
}

func TestNotificationSettingsRejectedBodyLeavesNoTrace(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	// A decodable field ahead of a wrong-typed one: the valid field decodes
	// before the error hits, but the request must fail as a whole, applying
	// nothing. Raw JSON keeps the field order fixed.
	rec := doJSON(t, h, http.MethodPost, "/api/notification-settings",
		json.RawMessage(`{"push":{"enabled":true},"preferences":{"deadline_warning_days":"oops"}}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/notification-settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[notification.Settings](t, rec)
	assert.False(t, got.Push.Enabled)
	assert.Equal(t, 3, got.Preferences.DeadlineWarningDays)
}

func TestPushSubscribeValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/push/subscribe", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/push/subscribe", map[string]string{
		"endpoint":   "https://push.example/ep",
		"p256dh_key": "k",
		"auth_key":   "a",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)

	// No VAPID keys configured in tests.
	rec = doJSON(t, h, http.MethodGet, "/api/push/vapid_public_key", nil)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
}

func TestSystemStatus(t *testing.T) {
	srv, reg := newTestServer(t)
	h := srv.Handler()

	_, err := reg.CreateProject(context.Background(), "p", "", []string{"A"}, "", "")
	require.NoError(t, err)

	rec := doJSON(t, h, http.MethodGet, "/api/system-status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeBody[systemStatus](t, rec)
	assert.True(t, status.WebInterface)
	assert.True(t, status.DataPersistence)
	assert.Equal(t, 1, status.TotalProjects)
	assert.False(t, status.NotificationsConfigured)
}

func TestPagesRender(t *testing.T) {
	srv, reg := newTestServer(t)
	h := srv.Handler()

	p, err := reg.CreateProject(context.Background(), "rendered", "", nil, "2026-12-31", "")
	require.NoError(t, err)

	for _, path := range []string{"/", "/projects", "/summary", "/categories", "/templates", "/project/" + p.ID} {
		rec := doJSON(t, h, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html", path)
	}

	rec := doJSON(t, h, http.MethodGet, "/project/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
