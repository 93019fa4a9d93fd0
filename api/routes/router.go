package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/cartsync/api/controllers"
	cartcontrollers "github.com/angelmondragon/cartsync/api/controllers/cart"
	checkoutcontrollers "github.com/angelmondragon/cartsync/api/controllers/checkout"
	vouchercontrollers "github.com/angelmondragon/cartsync/api/controllers/vouchers"
	"github.com/angelmondragon/cartsync/api/middleware"
	checkoutsvc "github.com/angelmondragon/cartsync/internal/checkout"
	"github.com/angelmondragon/cartsync/internal/orders"
	"github.com/angelmondragon/cartsync/internal/vouchers"
	"github.com/angelmondragon/cartsync/pkg/config"
	"github.com/angelmondragon/cartsync/pkg/db"
	"github.com/angelmondragon/cartsync/pkg/enums"
	"github.com/angelmondragon/cartsync/pkg/logger"
	"github.com/angelmondragon/cartsync/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	gatherer prometheus.Gatherer,
	carts controllers.CartProvider,
	ordersService orders.Service,
	checkoutService checkoutsvc.Service,
	voucherService vouchers.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	deps := map[string]controllers.Pinger{}
	if dbP != nil {
		deps["db"] = dbP
	}
	if redisP != nil {
		deps["redis"] = redisP
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	currency := parseCurrency(cfg.Checkout.Currency)
	checkoutDeps := checkoutcontrollers.Deps{
		Carts:    carts,
		Orders:   ordersService,
		Checkout: checkoutService,
		Currency: currency,
		Logger:   logg,
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/vouchers", func(r chi.Router) {
			r.Post("/", vouchercontrollers.Create(voucherService, logg))
			r.Post("/validate", vouchercontrollers.Validate(voucherService, logg))
			r.Get("/code/{code}", vouchercontrollers.FetchByCode(voucherService, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.CartSession(logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartcontrollers.Fetch(carts, currency, logg))
				r.Delete("/", cartcontrollers.Clear(carts, currency, logg))
				r.Post("/items", cartcontrollers.AddItem(carts, currency, logg))
				r.Patch("/items/{itemId}", cartcontrollers.UpdateItem(carts, currency, logg))
				r.Delete("/items/{itemId}", cartcontrollers.RemoveItem(carts, currency, logg))
			})

			r.Route("/outlets/{outletRef}", func(r chi.Router) {
				r.Get("/checkout", checkoutcontrollers.Enter(checkoutDeps))
				r.Post("/checkout/submit", checkoutcontrollers.Submit(checkoutDeps))
				r.Get("/order", checkoutcontrollers.Order(checkoutDeps))
				r.Post("/order/items/{itemId}/quantity", checkoutcontrollers.UpdateQuantity(checkoutDeps))
				r.Delete("/order/items/{itemId}", checkoutcontrollers.DeleteItem(checkoutDeps))
			})
		})
	})

	return r
}

func parseCurrency(raw string) enums.Currency {
	currency, err := enums.ParseCurrency(raw)
	if err != nil {
		return enums.CurrencyIDR
	}
	return currency
}
