package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vintage-realtime/internal/config"
	"github.com/vintage-realtime/internal/domain"
	"github.com/vintage-realtime/internal/transport/http/handler"
	appmiddleware "github.com/vintage-realtime/internal/transport/http/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	if cfg.TrustProxy {
		// Rewrites RemoteAddr from proxy headers, which the rate limiters key on.
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	connectRL := appmiddleware.NewRateLimiter("ws_connect", rate.Limit(cfg.Realtime.ConnectRate), cfg.Realtime.ConnectBurst)
	// 20 requests/second, burst of 40 per calling service.
	ingestRL := appmiddleware.NewRateLimiter("events", rate.Limit(20), 40)

	healthH := handler.NewHealthHandler(deps.Gateway.Connections)
	presenceH := handler.NewPresenceHandler(deps.Gateway)
	notifH := handler.NewNotificationHandler(deps.Notifications, deps.Gateway)
	eventH := handler.NewEventHandler(deps.Dispatcher)
	wsH := handler.NewWSHandler(deps.Gateway, handler.WSOptions{
		AllowedOrigins:  cfg.AllowedOrigins,
		MaxMessageBytes: cfg.Realtime.MaxMessageBytes,
		PongTimeout:     cfg.Realtime.PongTimeout,
		WriteTimeout:    cfg.Realtime.WriteTimeout,
	}, log)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(connectRL.Limit).Get("/ws", wsH.Serve)

		if deps.Tokens == nil {
			log.Warn("no token verifier configured, authenticated REST routes disabled")
			return
		}

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.Auth(deps.Tokens))

			r.Get("/notifications", notifH.List)
			r.Get("/notifications/unread-count", notifH.UnreadCount)
			r.Post("/notifications/read-all", notifH.MarkAllAsRead)
			r.Delete("/notifications/read", notifH.DeleteAllRead)
			r.Put("/notifications/{id}", notifH.MarkAsRead)
			r.Delete("/notifications/{id}", notifH.Delete)
			r.Get("/presence", presenceH.List)
			r.Get("/presence/{id}", presenceH.Get)

			// Event ingestion from the catalog and order services
			r.Route("/events", func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin, domain.RoleService))
				r.Use(ingestRL.Limit)

				r.Post("/orders", eventH.OrderCreated)
				r.Post("/orders/{id}/status", eventH.OrderStatusChanged)
				r.Post("/orders/{id}/updated", eventH.OrderUpdated)
				r.Post("/products", eventH.ProductCreated)
				r.Post("/products/{id}/updated", eventH.ProductUpdated)
				r.Post("/products/{id}/deleted", eventH.ProductDeleted)
				r.Post("/products/{id}/price-drop", eventH.PriceDropped)
				r.Post("/reviews", eventH.NewReview)
				r.Post("/admin-notices", eventH.AdminNotice)
				r.Post("/broadcasts", eventH.Broadcast)
				r.Post("/online-count", eventH.OnlineCount)
			})
		})
	})

	return r
}
