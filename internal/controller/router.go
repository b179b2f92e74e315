package controller

import (
	"time"

	"github.com/bitcoinote/commerce-gateway/internal/domain/order"
	"github.com/bitcoinote/commerce-gateway/internal/infrastructure/config"
	"github.com/bitcoinote/commerce-gateway/internal/infrastructure/observability"
	customMW "github.com/bitcoinote/commerce-gateway/internal/middleware"
	"github.com/bitcoinote/commerce-gateway/internal/service"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type RouterDeps struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
	OrderRepo   order.Repository
	Reconciler  *service.ReconcileService
	Metrics     *observability.Metrics
	CORSConfig  config.CORSConfig
	AuthConfig  config.AuthConfig
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(customMW.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSConfig.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: deps.CORSConfig.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.Metrics(deps.Metrics))

	healthH := NewHealthController(deps.Pool, deps.RedisClient)
	orderH := NewOrderController(deps.OrderRepo, deps.Reconciler)
	webhookH := NewWebhookController(deps.Reconciler)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	// IPN endpoint. Authenticated by body signature, not by session; the
	// rate limit only guards against floods.
	r.With(customMW.RateLimit(120)).Post("/webhooks/gateway", webhookH.HandleIPN)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/orders", orderH.Create)
		r.Get("/orders/{id}", orderH.Get)
		r.Post("/orders/{id}/checkout", orderH.Checkout)
		r.Get("/orders/key/{orderKey}/revisit", orderH.Revisit)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(customMW.RequireAuth(deps.AuthConfig.JWTSecret))
		r.Post("/orders/{id}/reconcile", orderH.AdminReconcile)
	})

	return r
}
