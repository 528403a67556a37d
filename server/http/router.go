package serverhttp

import (
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"catalog-recon/internal/config"
	"catalog-recon/internal/middleware"
	recHnd "catalog-recon/internal/reconcile/handler"
	recSvc "catalog-recon/internal/reconcile/service"
	"catalog-recon/server/http/handlers"
)

func NewRouter(cfg config.Config, logger zerolog.Logger, svc *recSvc.Service) *chi.Mux {
	r := chi.NewRouter()

	// порядок важен: recover -> requestID -> logging -> cors -> limit
	r.Use(middleware.Recover(logger))
	r.Use(middleware.RequestID(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS(cfg.AllowOrigins))
	r.Use(middleware.LimitBytes(int64(cfg.MaxUploadMB) << 20))

	// health-check
	r.Get("/health", handlers.Health)

	// анализ прайса
	r.Post("/reconcile", recHnd.Reconcile(svc, cfg.MaxUploadMB))

	// ревью и запись
	r.Route("/runs/{id}", func(r chi.Router) {
		r.Get("/", recHnd.GetRun(svc))
		r.Patch("/staged/{productID}", recHnd.UpdateStaged(svc))
		r.Post("/unmatched/{index}/bind", recHnd.Bind(svc))
		r.Post("/commit", recHnd.Commit(svc))
	})

	// ручной поиск для привязки
	r.Get("/products/suggest", recHnd.Suggest(svc))

	return r
}
