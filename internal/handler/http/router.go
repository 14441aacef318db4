package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hoffnungslabor/mediable/pkg/health"
	"github.com/hoffnungslabor/mediable/pkg/middleware"

	"github.com/hoffnungslabor/mediable/internal/service"
)

// NewRouter creates a chi router with all attachment service routes registered.
func NewRouter(
	attachmentService *service.AttachmentService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	pprofCIDRs []string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("mediable"))
	r.Use(middleware.Tracing())
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, pprofCIDRs, logger)

	// Attachment API endpoints
	attachmentHandler := NewAttachmentHandler(attachmentService, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.NoStore())

		r.Route("/hosts/{hostType}", func(r chi.Router) {
			r.Get("/", attachmentHandler.ListHosts)

			r.Route("/{hostID}", func(r chi.Router) {
				r.Delete("/", attachmentHandler.CascadeHost)

				r.Route("/media", func(r chi.Router) {
					r.Post("/", attachmentHandler.AttachMedia)
					r.Put("/", attachmentHandler.SyncMedia)
					r.Get("/", attachmentHandler.ListMedia)
					r.Delete("/", attachmentHandler.DetachTags)
					r.Get("/first", attachmentHandler.FirstMedia)
					r.Get("/last", attachmentHandler.LastMedia)
					r.Get("/by-tag", attachmentHandler.MediaByTag)
					r.Get("/{mediaID}/tags", attachmentHandler.MediaTags)
					r.Delete("/{mediaID}", attachmentHandler.DetachMedia)
				})
			})
		})

		r.Route("/media", func(r chi.Router) {
			r.Get("/{mediaID}", attachmentHandler.GetMedia)
			r.Delete("/{mediaID}", attachmentHandler.DeleteMedia)
		})
	})

	return r
}
