// Package httpfiber serves the faucet JSON API, metrics and readiness endpoint.
//
// The API stands in for signed transactions on a development node: the
// caller of every state changing endpoint is the "from" field of the request
// body and is trusted as given. There is no authentication, so anyone who can
// reach the listener can act as the faucet owner. Keep it on a private
// interface.
package httpfiber

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gofiber/contrib/fiberzap/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/zama-ai/faucet-contract/pkg/chain"
	"github.com/zama-ai/faucet-contract/pkg/config"
	"github.com/zama-ai/faucet-contract/pkg/currency"
	"github.com/zama-ai/faucet-contract/pkg/faucet"
	"github.com/zama-ai/faucet-contract/pkg/logger"
	"github.com/zama-ai/faucet-contract/pkg/scheduler"
)

type Server struct {
	app    *fiber.App
	cfg    *config.Schema
	unit   *currency.Unit
	chain  *chain.Chain
	faucet *faucet.Session
	refill *scheduler.RefillScheduler

	registry *prometheus.Registry
	requests *prometheus.CounterVec
}

type Option func(*Server)

func WithRegistry(registry *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = registry
	}
}

// WithRefillScheduler exposes the scheduler state and a manual trigger.
func WithRefillScheduler(rs *scheduler.RefillScheduler) Option {
	return func(s *Server) {
		s.refill = rs
	}
}

func NewServer(cfg *config.Schema, c *chain.Chain, f *faucet.Session, opts ...Option) (*Server, error) {
	app := fiber.New(fiber.Config{
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		DisableStartupMessage: true,
	})
	srv := &Server{
		app:    app,
		cfg:    cfg,
		unit:   cfg.Faucet.Unit,
		chain:  c,
		faucet: f,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faucet_requests_total",
				Help: "Faucet API calls by operation and result",
			},
			[]string{"operation", "result"},
		),
	}
	for _, opt := range opts {
		opt(srv)
	}
	if srv.registry == nil {
		srv.registry = prometheus.NewRegistry()
	}
	if err := srv.registry.Register(srv.requests); err != nil {
		return nil, err
	}

	if cfg.Global.Environment == "production" {
		level, err := zap.ParseAtomicLevel(cfg.Global.LogLevel)
		if err != nil {
			return nil, err
		}
		zapLogger, err := logger.NewZapLogger(logger.WithLevel(level.Level()))
		if err != nil {
			return nil, err
		}
		app.Use(fiberzap.New(fiberzap.Config{
			Logger: zapLogger.Logger,
		}))
	}

	srv.MapRoutes()
	return srv, nil
}

func (s *Server) Run() error {
	logger.Infof("listening on %s", s.cfg.Global.ListenAddr)
	return s.app.Listen(s.cfg.Global.ListenAddr)
}

// Handler exposes the app as a net/http handler.
func (s *Server) Handler() http.HandlerFunc {
	return adaptor.FiberApp(s.app)
}

func (s *Server) Stop() {
	logger.Infof("Stopping HTTP server...")
	if err := s.app.ShutdownWithTimeout(1 * time.Second); err != nil {
		logger.Debugf("HTTP server shutdown: %v", err)
	}
	logger.Infof("HTTP server stopped")
}

func (s *Server) MapRoutes() {
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, log.Prefix(), log.Flags()),
		ErrorHandling: promhttp.ContinueOnError,
	})))

	s.app.Get("/readiness", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	})

	api := s.app.Group("/api", requestid.New(), func(c *fiber.Ctx) error {
		id, _ := c.Locals("requestid").(string)
		c.SetUserContext(logger.WithAttrs(c.UserContext(), "request_id", id))
		return c.Next()
	})
	api.Get("/faucet", s.getFaucet)
	api.Post("/faucet/withdraw", s.withdraw)
	api.Post("/faucet/withdrawAll", s.withdrawAll)
	api.Post("/faucet/destroy", s.destroy)
	api.Post("/faucet/deposit", s.deposit)
	api.Post("/faucet/refill", s.triggerRefill)
	api.Get("/accounts/:address", s.getAccount)
	api.Get("/receipts/:hash", s.getReceipt)
}
