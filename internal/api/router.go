package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nikhilbhutani/docingest/internal/api/handlers"
	"github.com/nikhilbhutani/docingest/internal/api/middleware"
	"github.com/nikhilbhutani/docingest/internal/auth"
)

type Deps struct {
	Store     handlers.QueueReader
	Admin     handlers.AdminService
	Tasks     handlers.TaskEnqueuer
	Checks    map[string]handlers.Pinger
	JWTSecret string
}

type Router struct {
	mux  *chi.Mux
	deps Deps
}

func NewRouter(deps Deps) *Router {
	return &Router{
		mux:  chi.NewRouter(),
		deps: deps,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)

	health := handlers.NewHealthHandler(rt.deps.Checks)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	authEnabled := rt.deps.JWTSecret != ""
	requireOperator := func(next http.Handler) http.Handler { return next }
	if authEnabled {
		requireOperator = auth.RequireRole(auth.RoleOperator)
	}

	files := handlers.NewFileHandler(rt.deps.Store, rt.deps.Admin, rt.deps.Tasks)

	r.Route("/v1", func(r chi.Router) {
		if authEnabled {
			r.Use(auth.NewJWTMiddleware(rt.deps.JWTSecret).Authenticate)
		}
		r.Use(chimiddleware.Throttle(50))

		r.Get("/queue", files.ListQueue)
		r.Route("/files/{id}", func(r chi.Router) {
			r.Get("/", files.Get)
			r.Get("/chunks", files.Chunks)
			r.Get("/consistency", files.Consistency)
			r.With(requireOperator).Post("/requeue", files.Requeue)
		})
	})

	return r
}
