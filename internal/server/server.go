package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/despachantemarcelino/hookd/internal/config"
	"github.com/despachantemarcelino/hookd/internal/database"
	"github.com/despachantemarcelino/hookd/internal/deliveries"
	"github.com/despachantemarcelino/hookd/internal/events"
	"github.com/despachantemarcelino/hookd/internal/live"
	"github.com/despachantemarcelino/hookd/internal/requestctx"
	"github.com/despachantemarcelino/hookd/internal/server/handlers"
	"github.com/despachantemarcelino/hookd/internal/webhooks"
)

type Server struct {
	cfg        *config.Config
	db         *database.DB
	version    string
	auth       *webhooks.Authenticator
	cors       *webhooks.CORSPolicy
	dispatcher *webhooks.Dispatcher
	webhook    *webhooks.Handler
	store      *deliveries.Store
	sweeper    *deliveries.Sweeper
	hub        *live.Hub
	limiter    *RateLimiter
	httpServer *http.Server

	trustedProxies requestctx.TrustedProxies
	router     *Router
}

type Option func(*Server)

func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// WithProcessor replaces the default logging processor for kind.
func WithProcessor(kind events.Kind, p webhooks.Processor) Option {
	return func(s *Server) {
		if err := s.dispatcher.Register(kind, p); err != nil {
			log.Warn().Err(err).Str("event", string(kind)).Msg("Ignoring processor")
		}
	}
}

// New wires the webhook pipeline. db may be nil when the journal is
// disabled.
func New(cfg *config.Config, db *database.DB, opts ...Option) (*Server, error) {
	cors, err := webhooks.NewCORSPolicy(cfg.Webhook.CORS)
	if err != nil {
		return nil, fmt.Errorf("building CORS policy: %w", err)
	}

	trusted, err := requestctx.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("parsing trusted proxies: %w", err)
	}

	srv := &Server{
		cfg:        cfg,
		db:         db,
		version:    "dev",
		auth:       webhooks.NewAuthenticator(webhooks.NewSecretSource(&cfg.Webhook)),
		cors:       cors,
		dispatcher: webhooks.NewDispatcher(),

		trustedProxies: trusted,
	}

	for _, opt := range opts {
		opt(srv)
	}

	if !srv.auth.Configured() {
		log.Warn().
			Str("env", cfg.Webhook.SecretEnv).
			Msg("No webhook secret configured, every delivery will be rejected")
	}

	if cfg.Journal.Enabled {
		if db == nil {
			return nil, errors.New("journal enabled without a database")
		}
		srv.store = deliveries.NewStore(db)
		srv.dispatcher.AddObserver(srv.store)

		sweeper, err := deliveries.NewSweeper(srv.store, cfg.Journal.Retention, cfg.Journal.CleanupSchedule)
		if err != nil {
			return nil, fmt.Errorf("creating journal sweeper: %w", err)
		}
		srv.sweeper = sweeper
	}

	if cfg.Live.Enabled {
		srv.hub = live.NewHub(&cfg.Live, srv.auth, originHosts(cfg.Webhook.CORS.AllowedOrigins))
		srv.dispatcher.AddObserver(srv.hub)
	}

	if cfg.Server.RateLimit.Enabled {
		srv.limiter = NewRateLimiter(cfg.Server.RateLimit)
	}

	srv.webhook = webhooks.NewHandler(srv.auth, srv.dispatcher, cors, cfg.Webhook.MaxBodySize)

	srv.router = NewRouter(srv)
	srv.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      srv.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return srv, nil
}

func (s *Server) Start(ctx context.Context) error {
	log.Info().
		Str("addr", s.cfg.Server.Address()).
		Bool("journal", s.store != nil).
		Bool("live", s.hub != nil).
		Bool("rate_limit", s.limiter != nil).
		Msg("Starting server")

	if s.sweeper != nil {
		if _, err := s.sweeper.RunOnce(ctx); err != nil {
			log.Warn().Err(err).Msg("Initial journal sweep failed")
		}
		s.sweeper.Start()
	}

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down server")

	if s.hub != nil {
		s.hub.Close()
		log.Info().Msg("Live feed closed")
	}

	if s.sweeper != nil {
		s.sweeper.Stop()
		log.Info().Msg("Journal sweeper stopped")
	}

	if s.limiter != nil {
		s.limiter.Stop()
	}

	return s.httpServer.Shutdown(ctx)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Config() *config.Config {
	return s.cfg
}

func (s *Server) Dispatcher() *webhooks.Dispatcher {
	return s.dispatcher
}

func (s *Server) Deliveries() *deliveries.Store {
	return s.store
}

func (s *Server) Hub() *live.Hub {
	return s.hub
}

// pinger and clientCounter keep typed nils out of the health handler's
// interfaces.
func (s *Server) pinger() handlers.Pinger {
	if s.store == nil {
		return nil
	}
	return s.db
}

func (s *Server) clientCounter() handlers.ClientCounter {
	if s.hub == nil {
		return nil
	}
	return s.hub
}

// originHosts converts CORS origin patterns into the host patterns the
// websocket handshake matches against.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if i := strings.Index(o, "://"); i >= 0 {
			o = o[i+3:]
		}
		hosts = append(hosts, strings.TrimSuffix(o, "/"))
	}
	return hosts
}
