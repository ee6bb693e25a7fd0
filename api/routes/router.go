package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coachhubvn/coachhub-backend/api/controllers"
	webhookcontrollers "github.com/coachhubvn/coachhub-backend/api/controllers/webhooks"
	"github.com/coachhubvn/coachhub-backend/api/middleware"
	"github.com/coachhubvn/coachhub-backend/internal/payments"
	"github.com/coachhubvn/coachhub-backend/internal/wallet"
	"github.com/coachhubvn/coachhub-backend/pkg/config"
	"github.com/coachhubvn/coachhub-backend/pkg/logger"
	"github.com/coachhubvn/coachhub-backend/pkg/redis"
)

type RouterParams struct {
	Config         *config.Config
	Logger         *logger.Logger
	Readiness      map[string]controllers.Pinger
	Redis          *redis.Client
	PaymentService payments.Service
	WalletService  wallet.Service
	Gatherer       prometheus.Gatherer
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Readiness))
	})

	if p.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	// Gateway callbacks carry their own HMAC signatures, so they stay
	// outside the JWT-protected group. VNPay returns via browser redirect
	// and arrives as a GET.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/{gateway}", webhookcontrollers.GatewayCallback(p.PaymentService, logg))
		r.Get("/{gateway}", webhookcontrollers.GatewayCallback(p.PaymentService, logg))
	})

	var idemStore redis.IdempotencyStore
	if p.Redis != nil {
		idemStore = p.Redis
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Post("/payments", controllers.InitiatePayment(p.PaymentService, logg))
		r.Get("/payments/bookings/{bookingId}/status", controllers.BookingPaymentStatus(p.PaymentService, logg))

		r.Get("/wallets/{walletId}/balance", controllers.WalletBalance(p.WalletService, logg))
	})

	return r
}
