package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/watchfi/storefront/api/controllers"
	"github.com/watchfi/storefront/api/middleware"
	"github.com/watchfi/storefront/internal/auth"
	"github.com/watchfi/storefront/internal/session"
	authsession "github.com/watchfi/storefront/pkg/auth/session"
	"github.com/watchfi/storefront/pkg/config"
	"github.com/watchfi/storefront/pkg/logger"
	"github.com/watchfi/storefront/pkg/metrics"
	"github.com/watchfi/storefront/pkg/redis"
)

// shopperSessions creates and resolves storefront sessions.
type shopperSessions interface {
	controllers.SessionCreator
	Resolve(ctx context.Context, id string) (*session.Session, bool, error)
}

// Backend is the catalogue API surface the router proxies.
type Backend interface {
	controllers.CollectionCatalog
	controllers.BookingLister
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	registry *prometheus.Registry,
	httpMetrics *metrics.HTTPMetrics,
	readiness map[string]controllers.Pinger,
	redisClient *redis.Client,
	sessions shopperSessions,
	adminSessions authsession.AccessSessionChecker,
	authService auth.Service,
	backendClient Backend,
	catalogService controllers.CatalogService,
	ledger controllers.ReceiptLedger,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	sessionOpts := middleware.SessionOptions{
		TTL:    cfg.Checkout.SessionTTL,
		Secure: cfg.App.IsProd(),
	}
	loginPolicy := middleware.NewLoginRateLimitPolicy(
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginLimit,
	)
	submitPolicy := middleware.NewSessionRateLimitPolicy(
		"submit",
		cfg.Checkout.SubmitWindow,
		cfg.Checkout.SubmitLimit,
	)
	idempotent := middleware.Idempotency(redisClient, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	if registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/session", controllers.SessionCreate(sessions, sessionOpts, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Session(sessions, sessionOpts, logg))

			r.Get("/collections", controllers.CollectionsList(backendClient, logg))
			r.Get("/collections/{id}", controllers.CollectionGet(backendClient, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartGet(logg))
				r.Delete("/", controllers.CartClear(logg))
				r.Post("/items", controllers.CartAddItem(logg))
				r.Patch("/items/{id}", controllers.CartUpdateItem(logg))
				r.Delete("/items/{id}", controllers.CartRemoveItem(logg))
			})

			r.Route("/searches", func(r chi.Router) {
				r.Get("/", controllers.SearchesList(logg))
				r.Post("/", controllers.SearchesAdd(logg))
				r.Delete("/", controllers.SearchesClear(logg))
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Get("/", controllers.CheckoutView(logg))
				r.Put("/billing", controllers.CheckoutSetBilling(logg))
				r.Post("/next", controllers.CheckoutNext(logg))
				r.Post("/previous", controllers.CheckoutPrevious(logg))
				r.Post("/reset", controllers.CheckoutReset(logg))
				r.Get("/geo/countries", controllers.GeoCountries(logg))
				r.Get("/geo/countries/{iso}/cities", controllers.GeoCities(logg))

				r.Route("/payment", func(r chi.Router) {
					r.Get("/", controllers.PaymentState(logg))
					r.Put("/method", controllers.PaymentSelectMethod(logg))
					r.Post("/prices", controllers.PaymentFetchPrices(logg))
					r.Post("/wallet", controllers.PaymentConnectWallet(logg))
					r.With(
						middleware.RateLimit(submitPolicy, redisClient, logg),
						idempotent,
					).Post("/submit", controllers.PaymentSubmit(logg))
				})
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.RateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AdminLogin(authService, logg))
			r.Post("/refresh", controllers.AdminRefresh(authService, logg))
			r.Post("/logout", controllers.AdminLogout(authService, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminAuth(cfg.JWT, adminSessions, logg))

			r.Get("/schemas/{kind}", controllers.AdminSchema(catalogService, logg))
			r.Route("/entities/{kind}", func(r chi.Router) {
				r.Get("/", controllers.AdminEntitiesList(catalogService, logg))
				r.With(idempotent).Post("/", controllers.AdminEntitySave(catalogService, logg))
				r.Get("/{id}", controllers.AdminEntityGet(catalogService, logg))
				r.Put("/{id}", controllers.AdminEntitySave(catalogService, logg))
				r.Delete("/{id}", controllers.AdminEntityDelete(catalogService, logg))
			})
			r.Get("/bookings", controllers.AdminBookingsList(backendClient, logg))
			r.Get("/payments", controllers.AdminPaymentsList(ledger, logg))
			r.With(idempotent).Post("/payments/{signature}/verify", controllers.AdminPaymentVerify(ledger, logg))
		})
	})

	return r
}
