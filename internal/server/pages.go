package server

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stagetrack/stagetrack/internal/tracker"
	"github.com/stagetrack/stagetrack/pkg/clog"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageFuncs = template.FuncMap{
	"percent": func(f float64) int { return int(f * 100) },
}

// parsePage builds one page template on top of the shared layout.
func parsePage(name string) *template.Template {
	return template.Must(
		template.New("layout.html").Funcs(pageFuncs).ParseFS(templateFS, "templates/layout.html", "templates/"+name),
	)
}

var (
	dashboardTmpl      = parsePage("dashboard.html")
	projectsTmpl       = parsePage("projects.html")
	summaryTmpl        = parsePage("summary.html")
	categoriesTmpl     = parsePage("categories.html")
	categoryDetailTmpl = parsePage("category_detail.html")
	projectDetailTmpl  = parsePage("project_detail.html")
	templatesTmpl      = parsePage("templates.html")
)

func (s *Server) pageRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(clog.SlogChiMiddleware(), s.reloadMiddleware)
		r.Get("/", s.pageDashboard)
		r.Get("/projects", s.pageProjects)
		r.Get("/summary", s.pageSummary)
		r.Get("/categories", s.pageCategories)
		r.Get("/category/{categoryID}", s.pageCategoryDetail)
		r.Get("/project/{projectID}", s.pageProjectDetail)
		r.Get("/templates", s.pageTemplates)
	})
}

func renderPage(w http.ResponseWriter, r *http.Request, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "layout.html", data); err != nil {
		slog.ErrorContext(r.Context(), "failed to render page", "error", err)
	}
}

// categoryView is a category annotated with its project count.
type categoryView struct {
	*tracker.Category
	ProjectCount int
}

func (s *Server) categoryViews() []categoryView {
	projects := s.registry.ListProjects()
	categories := s.registry.ListCategories()
	views := make([]categoryView, 0, len(categories))
	for _, c := range categories {
		view := categoryView{Category: c}
		for _, p := range projects {
			if p.CategoryID == c.ID {
				view.ProjectCount++
			}
		}
		views = append(views, view)
	}
	return views
}

func (s *Server) pageDashboard(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, dashboardTmpl, map[string]any{
		"Subtitle":   s.registry.Subtitle(),
		"Projects":   s.registry.ListProjects(),
		"Categories": s.categoryViews(),
		"Summary":    s.registry.GlobalSummary(),
	})
}

func (s *Server) pageProjects(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, projectsTmpl, map[string]any{
		"Projects":   s.registry.ListProjects(),
		"Categories": s.registry.ListCategories(),
	})
}

// projectSummaryView joins a project header with its progress summary and
// resolved category name.
type projectSummaryView struct {
	ID           string
	Name         string
	Description  string
	CategoryName string
	Summary      tracker.ProjectSummary
}

func (s *Server) pageSummary(w http.ResponseWriter, r *http.Request) {
	projects := s.registry.ListProjects()
	views := make([]projectSummaryView, 0, len(projects))
	for _, p := range projects {
		view := projectSummaryView{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Summary:     p.Summary(),
		}
		if p.CategoryID != "" {
			if cat, err := s.registry.GetCategory(p.CategoryID); err == nil {
				view.CategoryName = cat.Name
			} else {
				view.CategoryName = "Unknown"
			}
		}
		views = append(views, view)
	}
	renderPage(w, r, summaryTmpl, map[string]any{
		"Summary":  s.registry.GlobalSummary(),
		"Projects": views,
	})
}

func (s *Server) pageCategories(w http.ResponseWriter, r *http.Request) {
	var defaultID string
	if cat := s.registry.DefaultCategory(); cat != nil {
		defaultID = cat.ID
	}
	renderPage(w, r, categoriesTmpl, map[string]any{
		"Categories":        s.categoryViews(),
		"DefaultCategoryID": defaultID,
	})
}

func (s *Server) pageCategoryDetail(w http.ResponseWriter, r *http.Request) {
	cat, err := s.registry.GetCategory(chi.URLParam(r, "categoryID"))
	if err != nil {
		http.Error(w, "Category not found", http.StatusNotFound)
		return
	}
	renderPage(w, r, categoryDetailTmpl, map[string]any{
		"Category": cat,
		"Projects": s.registry.ProjectsByCategory(cat.ID),
	})
}

func (s *Server) pageProjectDetail(w http.ResponseWriter, r *http.Request) {
	p, err := s.registry.GetProject(chi.URLParam(r, "projectID"))
	if err != nil {
		http.Error(w, "Project not found", http.StatusNotFound)
		return
	}
	renderPage(w, r, projectDetailTmpl, map[string]any{
		"Project":    p,
		"Categories": s.registry.ListCategories(),
	})
}

func (s *Server) pageTemplates(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, templatesTmpl, map[string]any{
		"Templates": s.registry.ListTemplates(),
	})
}
