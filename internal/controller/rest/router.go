package rest

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"
)

type RouterConfig struct {
	RateLimitRPS   int // 0 - без ограничения
	AllowedOrigins []string
}

// NewRouter собирает chi-роутер с middleware и маршрутами /api/v1
func NewRouter(h *Handler, cfg RouterConfig, logger *zap.Logger) *chi.Mux {
	router := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", OperatorHeader},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	if cfg.RateLimitRPS > 0 {
		router.Use(httprate.LimitByIP(cfg.RateLimitRPS, time.Second))
	}

	router.Use(middleware.RequestID)
	router.Use(RequestLogger(logger))
	router.Use(Recoverer(logger))
	router.Use(Operator)

	router.Get("/healthz", h.Health)

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/providers/{providerID}/availability", h.CreateAvailability)
		r.Get("/providers/{providerID}/week.png", h.ProviderWeekImage)

		r.Route("/slots", func(r chi.Router) {
			r.Get("/", h.SearchSlots)
			r.Get("/grouped", h.SearchGrouped)
			r.Post("/bulk-clear", h.BulkClearSlots)
			r.Post("/bulk-delete", h.BulkDeleteSlots)

			r.Route("/{slotID}", func(r chi.Router) {
				r.Get("/", h.GetSlot)
				r.Post("/reservation", h.ReserveSlot)
				r.Post("/guest-reservation", h.ReserveSlotAsGuest)
				r.Post("/cancellation", h.CancelSlot)
				r.Post("/completion", h.CompleteSlot)
				r.Post("/attachments", h.AttachFile)
				r.Delete("/attachments/{fileID}", h.RemoveFile)
			})
		})
	})

	return router
}
