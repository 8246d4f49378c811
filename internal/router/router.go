// Package router sets up the HTTP routes and middleware chain of the
// reviewd API server.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"reviewd/internal/handlers"
	"reviewd/internal/metrics"
	"reviewd/internal/middleware"
)

// New creates and returns the configured Chi router with all middleware
// and route groups wired up.
func New(api *handlers.API) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.Metrics)

	r.Get("/health", healthHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/kinds", api.Kinds)

		// Dashboard panels
		r.Get("/dashboard/overdue", api.Overdue)
		r.Get("/dashboard/this-month", api.ThisMonth)

		r.Get("/reports/periodic-review", api.PeriodicReport)

		// Page tree
		r.Get("/pages", api.ListPages)
		r.Post("/pages", api.CreatePage)

		// Review metadata of a single page
		r.Route("/pages/{id}", func(r chi.Router) {
			r.Delete("/", api.DeletePage)
			r.Post("/publish", api.PublishPage)
			r.Post("/unpublish", api.UnpublishPage)
			r.Get("/review", api.GetReview)
			r.Patch("/review", api.PatchReview)
			r.Put("/review", api.PutReview)
			r.Get("/revisions", api.ListRevisions)
			r.Post("/revisions", api.CreateRevision)
		})
		r.Post("/revisions/{revisionID}/restore", api.RestoreRevision)

		// Sites and their frequency rules
		r.Get("/sites", api.ListSites)
		r.Post("/sites", api.CreateSite)
		r.Delete("/sites/{siteID}", api.DeleteSite)
		r.Get("/sites/{siteID}/review-frequencies", api.GetFrequencies)
		r.Put("/sites/{siteID}/review-frequencies", api.PutFrequencies)
	})

	return r
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
