package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ping", PingHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/videos", func(r chi.Router) {
			r.Post("/", app.UploadHandler)
			r.Get("/", app.ListVideosHandler)
			r.Get("/{id}", app.GetVideoHandler)
			r.Delete("/{id}", app.DeleteVideoHandler)
			r.Post("/{id}/analyze", app.AnalyzeHandler)
		})

		r.Route("/cache", func(r chi.Router) {
			r.Get("/stats", app.CacheStatsHandler)
			r.Get("/entries", app.CacheEntriesHandler)
			r.Delete("/entries", app.CacheRemoveEntryHandler)
			r.Post("/sweep", app.CacheSweepHandler)
			r.Delete("/", app.CacheClearHandler)
		})
	})

	return r
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}
