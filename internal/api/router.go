// Package api assembles the capsule-match HTTP surface: the chi router,
// its middleware stack, and the handlers that front the matching
// pipeline (C6-C8), the qualification store (C9), and admin visibility
// into the vector store (C1) and subject-matter cache (C4).
package api

import (
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/westonopentrain/capsule-match/internal/api/middleware"
)

// NewRouter builds the full HTTP router (§6). serviceKey disables auth
// when empty, for local/dev use only.
func NewRouter(h *Handlers, serviceKey, version string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)

	auth := middleware.NewServiceAuth(serviceKey)
	r.Use(auth.Handler)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   parseCORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id", "X-API-Key"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(version))

	r.Route("/v1", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Post("/upsert", h.UpsertUser)
			r.Delete("/{userId}", h.DeleteUser)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/upsert", h.UpsertJob)
			r.Post("/notify", h.Notify)
			r.Route("/{jobId}", func(r chi.Router) {
				r.Delete("/", h.DeleteJob)
				r.Post("/re-notify", h.ReNotify)
				r.Post("/evaluate", h.Evaluate)
				r.Patch("/metadata", h.UpdateJobMetadata)
				r.Patch("/status", h.UpdateJobStatus)
				r.Get("/qualifications", h.GetQualifications)
				r.Get("/pending-notifications", h.GetPendingNotifications)
				r.Post("/mark-notified", h.MarkNotified)
			})
		})

		r.Route("/match", func(r chi.Router) {
			r.Post("/score_users_for_job", h.ScoreUsersForJob)
			r.Post("/score_jobs_for_user", h.ScoreJobsForUser)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/vectorstore/health", h.VectorStoreHealth)
			r.Get("/subject-cache/stats", h.SubjectCacheStats)
		})
	})

	return r
}

// parseCORSOrigins reads CAPSULE_MATCH_CORS_ORIGINS as a comma-separated
// list, defaulting to "*" when unset.
func parseCORSOrigins() []string {
	originsEnv := os.Getenv("CAPSULE_MATCH_CORS_ORIGINS")
	if originsEnv == "" {
		return []string{"*"}
	}
	var origins []string
	for _, o := range strings.Split(originsEnv, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
