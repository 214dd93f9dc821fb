package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/maxpert/eventwire/telemetry"
	"github.com/rs/zerolog/log"
)

// RegisterRoutes registers all admin API routes using chi router.
// /metrics is mounted only when telemetry is enabled and is never
// behind auth, so scrapers need no secret.
func RegisterRoutes(mux *http.ServeMux, handlers *AdminHandlers, secret string) {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(secret))

	r.Get("/stats", handlers.handleStats)
	r.Get("/health", handlers.handleHealth)

	r.Route("/channels/{channel}", func(r chi.Router) {
		r.Get("/", handlers.handleChannel)
		r.Post("/publish", handlers.handlePublish)
	})

	// Mount chi router under /admin
	mux.Handle("/admin", http.RedirectHandler("/admin/", http.StatusMovedPermanently))
	mux.Handle("/admin/", http.StripPrefix("/admin", r))

	if metrics := telemetry.GetMetricsHandler(); metrics != nil {
		mux.Handle("/metrics", metrics)
	}

	log.Info().Bool("auth", secret != "").Msg("Admin endpoints enabled at /admin/*")
}
