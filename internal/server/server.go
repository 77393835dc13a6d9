package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/stagetrack/stagetrack/internal/config"
	"github.com/stagetrack/stagetrack/internal/notification"
	"github.com/stagetrack/stagetrack/internal/pushsubscription"
	"github.com/stagetrack/stagetrack/internal/registry"
	"github.com/stagetrack/stagetrack/pkg/cerr"
	"github.com/stagetrack/stagetrack/pkg/clog"
)

type Server struct {
	server   *http.Server
	env      *config.Env
	registry *registry.Registry
	settings *notification.SettingsStore
	notifier *notification.Notifier
	pushRepo pushsubscription.Repository
	vapidEnv *config.VAPIDEnv
}

func NewServer(
	env *config.Env,
	reg *registry.Registry,
	settings *notification.SettingsStore,
	notifier *notification.Notifier,
	pushRepo pushsubscription.Repository,
) *Server {
	return &Server{
		env:      env,
		registry: reg,
		settings: settings,
		notifier: notifier,
		pushRepo: pushRepo,
		vapidEnv: config.VAPIDEnvFromEnv(env),
	}
}

// Handler builds the full route tree. Split out from ListenAndServe so
// tests can drive it with httptest.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Use(
			clog.SlogChiMiddleware(),
			cerr.NewJSONResponseChiMiddleware(),
			s.reloadMiddleware,
		)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			cerr.SetNewJSONError(r.Context(), cerr.NotFound, "not found", nil)
		})
		s.apiRoutes(r)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s.pageRoutes(r)

	return r
}

// reloadMiddleware picks up snapshot writes from other processes before
// the request reads registry state.
func (s *Server) reloadMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.registry.ReloadIfStale(r.Context())
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe starts the HTTP server. The provided context is used as
// the base context for all incoming requests; cancelling it (shutdown
// signal) cancels in-flight request contexts as well.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort)
	slog.Info("starting server", "addr", addr)

	s.server = &http.Server{
		Addr: addr,
		Handler: h2c.NewHandler(cors.New(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		}).Handler(s.Handler()), &http2.Server{}),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
