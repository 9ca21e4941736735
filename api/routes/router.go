package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/loomline/designvault/api/controllers"
	billingcontrollers "github.com/loomline/designvault/api/controllers/billing"
	importcontrollers "github.com/loomline/designvault/api/controllers/imports"
	previewcontrollers "github.com/loomline/designvault/api/controllers/previews"
	"github.com/loomline/designvault/api/middleware"
	"github.com/loomline/designvault/internal/catalog"
	checkoutsvc "github.com/loomline/designvault/internal/checkout"
	"github.com/loomline/designvault/internal/imports"
	"github.com/loomline/designvault/internal/plans"
	"github.com/loomline/designvault/internal/previews"
	"github.com/loomline/designvault/pkg/auth/session"
	"github.com/loomline/designvault/pkg/config"
	"github.com/loomline/designvault/pkg/enums"
	"github.com/loomline/designvault/pkg/logger"
	pkgredis "github.com/loomline/designvault/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Revoke(ctx context.Context, accessID string, expiresAt time.Time) error
}

// cacheStore is the redis surface the HTTP layer needs: idempotency records,
// rate limit counters and the readiness ping.
type cacheStore interface {
	pkgredis.IdempotencyStore
	Set(context.Context, string, any, time.Duration) error
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
	Ping(context.Context) error
}

// Services bundles the domain services the API exposes.
type Services struct {
	Catalog  catalog.Service
	Imports  imports.Service
	Previews previews.Service
	Plans    plans.Service
	Checkout checkoutsvc.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	cache cacheStore,
	sessions sessionManager,
	svcs Services,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	uploadPolicy := middleware.NewRateLimitPolicy(
		"uploads",
		cfg.RateLimit.UploadWindow,
		cfg.RateLimit.UploadUserLimit,
		cfg.RateLimit.UploadIPLimit,
	)
	uploadLimit := middleware.RateLimit(uploadPolicy, cache, logg)

	var redisPinger controllers.Pinger
	if cache != nil {
		redisPinger = cache
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    dbP,
			"redis": redisPinger,
		}))
	})

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.Idempotency(cache, logg))

		r.Post("/session/logout", controllers.SessionLogout(sessions, logg))

		r.Get("/categories", controllers.CatalogCategories(svcs.Catalog, logg))
		r.Get("/categories/{categoryId}/subcategories", controllers.CatalogSubcategories(svcs.Catalog, logg))
		r.Get("/designs", controllers.CatalogDesigns(svcs.Catalog, logg))
		r.Get("/designs/{designNo}", controllers.CatalogDesign(svcs.Catalog, logg))

		r.Route("/previews", func(r chi.Router) {
			r.Post("/", previewcontrollers.Create(svcs.Previews, logg))
			r.Route("/{previewId}", func(r chi.Router) {
				r.Get("/", previewcontrollers.Get(svcs.Previews, logg))
				r.Delete("/", previewcontrollers.Close(svcs.Previews, logg))
				r.Get("/render.png", previewcontrollers.Render(svcs.Previews, logg))
				r.Put("/background/color", previewcontrollers.SetColor(svcs.Previews, logg))
				r.With(uploadLimit).Post("/background/image", previewcontrollers.SetImage(svcs.Previews, cfg.Canvas.MaxBackgroundBytes(), logg))
				r.Post("/webcam/start", previewcontrollers.StartWebcam(svcs.Previews, logg))
				r.Post("/webcam/stop", previewcontrollers.StopWebcam(svcs.Previews, logg))
				r.Post("/webcam/frames", previewcontrollers.PushFrame(svcs.Previews, logg))
				r.Post("/design", previewcontrollers.LoadDesign(svcs.Previews, logg))
				r.Post("/object/move", previewcontrollers.Move(svcs.Previews, logg))
				r.Post("/object/scale", previewcontrollers.Scale(svcs.Previews, logg))
				r.Post("/pages/next", previewcontrollers.NextPage(svcs.Previews, logg))
				r.Post("/pages/previous", previewcontrollers.PreviousPage(svcs.Previews, logg))
				r.Get("/pages/current.pdf", previewcontrollers.PagePDF(svcs.Previews, logg))
			})
		})

		r.Get("/plans", billingcontrollers.PlansList(svcs.Plans, logg))
		r.Route("/checkout/orders", func(r chi.Router) {
			r.Post("/", billingcontrollers.CheckoutCreateOrder(svcs.Checkout, logg))
			r.Post("/{orderId}/callback", billingcontrollers.CheckoutCallback(svcs.Checkout, logg))
			r.Post("/{orderId}/failure", billingcontrollers.CheckoutFailure(svcs.Checkout, logg))
		})
		r.Get("/subscriptions/me", billingcontrollers.SubscriptionMe(svcs.Checkout, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.RequireRole(enums.RoleAdmin, logg))
		r.Use(middleware.Idempotency(cache, logg))

		r.Route("/imports", func(r chi.Router) {
			r.With(uploadLimit).Post("/", importcontrollers.Upload(svcs.Imports, cfg.Import.MaxUploadBytes(), logg))
			r.Get("/", importcontrollers.History(svcs.Imports, logg))
			r.Get("/{jobId}", importcontrollers.Detail(svcs.Imports, logg))
			r.Post("/{jobId}/next", importcontrollers.Next(svcs.Imports, logg))
			r.Delete("/{jobId}", importcontrollers.Discard(svcs.Imports, logg))
		})
		r.Post("/documents/truncate", importcontrollers.Truncate(svcs.Imports, logg))

		r.Route("/plans", func(r chi.Router) {
			r.Get("/", billingcontrollers.AdminPlansList(svcs.Plans, logg))
			r.Post("/", billingcontrollers.AdminPlanCreate(svcs.Plans, logg))
			r.Get("/{planId}", billingcontrollers.AdminPlanDetail(svcs.Plans, logg))
			r.Put("/{planId}", billingcontrollers.AdminPlanUpdate(svcs.Plans, logg))
		})
		r.Get("/subscriptions", billingcontrollers.AdminSubscriptionsList(svcs.Checkout, logg))
		r.Get("/transactions", billingcontrollers.AdminTransactionsList(svcs.Checkout, logg))
	})

	return r
}
