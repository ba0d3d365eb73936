package coordinator

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// AdminRouter mounts the coordinator's read-only observability surface,
// grounded on how laura-db's pkg/server.Server mounts its API on
// chi.NewRouter and on pkg/server/handlers/admin.go's Health handler shape.
// Every handler here is read-only and never touches a commit's own
// goroutines.
func (c *Coordinator) AdminRouter() http.Handler {
	startTime := time.Now()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"status": "healthy",
			"uptime": time.Since(startTime).String(),
		})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"ready":   c.ready.Load(),
			"commits": c.Statuses(),
		})
	})

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		if err := c.metrics.WriteMetrics(w); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
