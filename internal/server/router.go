package server

import (
	"net/http"

	"github.com/despachantemarcelino/hookd/internal/metrics"
	"github.com/despachantemarcelino/hookd/internal/server/handlers"
)

// Webhook routes. The legacy path stays mounted for senders configured
// against the old deployment.
const (
	WebhookPath       = "/api/webhook"
	LegacyWebhookPath = "/webhook"
	LivePath          = "/api/live"
	DeliveriesPath    = "/api/deliveries"
	HealthPath        = "/health"
)

type Router struct {
	server      *Server
	mux         *http.ServeMux
	middlewares []Middleware
}

type Middleware func(http.Handler) http.Handler

func NewRouter(srv *Server) *Router {
	r := &Router{
		server: srv,
		mux:    http.NewServeMux(),
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

func (r *Router) setupMiddleware() {
	r.Use(RecoveryMiddleware)
	r.Use(RequestIDMiddleware)
	r.Use(ClientIPMiddleware(r.server.trustedProxies))
	r.Use(LoggingMiddleware)

	if r.server.cfg.Metrics.Enabled {
		r.Use(MetricsMiddleware(r.server.cfg.Metrics.Path, r.mux))
	}
}

func (r *Router) Use(mw Middleware) {
	r.middlewares = append(r.middlewares, mw)
}

func (r *Router) setupRoutes() {
	var webhook http.Handler = r.server.webhook
	if r.server.limiter != nil {
		webhook = r.server.limiter.Middleware(webhook, r.server.cors)
	}
	r.mux.Handle(WebhookPath, webhook)
	r.mux.Handle(LegacyWebhookPath, webhook)

	health := handlers.NewHealthHandlers(r.server.pinger(), r.server.clientCounter(), r.server.version)
	r.mux.HandleFunc("GET "+HealthPath, health.Health)

	if r.server.cfg.Metrics.Enabled {
		r.mux.Handle("GET "+r.server.cfg.Metrics.Path, metrics.Handler())
	}

	if r.server.hub != nil {
		r.mux.Handle("GET "+LivePath, r.server.hub)
	}

	if r.server.store != nil {
		d := handlers.NewDeliveryHandlers(r.server.store)
		r.mux.Handle(DeliveriesPath, r.protected(d.List))
		r.mux.Handle(DeliveriesPath+"/stats", r.protected(d.Stats))
		r.mux.Handle(DeliveriesPath+"/{id}", r.protected(d.Get))
	}
}

// protected wraps a read API handler with the CORS policy, a GET-only method
// check and the webhook secret.
func (r *Router) protected(fn handlers.HandlerFunc) http.Handler {
	auth := r.server.auth
	guarded := func(w http.ResponseWriter, req *http.Request) {
		if !auth.Authenticate(req) {
			handlers.Unauthorized(w)
			return
		}
		fn(w, req)
	}
	return r.server.cors.Middleware(allowMethods(guarded, http.MethodGet))
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	handler := http.Handler(r.mux)

	for i := len(r.middlewares) - 1; i >= 0; i-- {
		handler = r.middlewares[i](handler)
	}

	handler.ServeHTTP(w, req)
}
