package http

import (
	"context"
	"net/http"
	"time"

	"apiregistry/internal/config"
	"apiregistry/internal/domain"
	"apiregistry/internal/infra/policyopa"
	"apiregistry/internal/infra/ratelimit"
	"apiregistry/internal/observability"
	"apiregistry/internal/usecase"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const component = "authorizer"

// Authorizer is the policy issuer as seen by the HTTP adapter.
type Authorizer interface {
	Authorize(ctx context.Context, req domain.AuthorizationRequest) (domain.AuthorizerResponse, error)
}

type Server struct {
	cfg    config.Config
	r      *gin.Engine
	logger zerolog.Logger

	authorizer Authorizer
	bundleHash string

	rateLimiter       domain.RateLimiter
	rateLimitRequests int
	rateLimitWindow   time.Duration
	closeLimiter      func() error
}

type ServerDeps struct {
	Authorizer  Authorizer
	RateLimiter domain.RateLimiter
	BundleHash  string
	Logger      zerolog.Logger
}

// NewServer builds the policy engine, issuer and rate limiter from cfg.
func NewServer(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Server, error) {
	engine, err := policyopa.NewEngineFromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	issuer, err := usecase.NewIssuer(cfg.Authorization, engine, logger)
	if err != nil {
		return nil, err
	}
	deps := ServerDeps{
		Authorizer: issuer,
		BundleHash: engine.BundleHash(),
		Logger:     logger,
	}
	closeLimiter := func() error { return nil }
	if cfg.RateLimit.Requests > 0 {
		limiter, closeFn, err := ratelimit.NewFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		deps.RateLimiter = limiter
		closeLimiter = closeFn
	}
	s := NewServerWithDeps(cfg, deps)
	s.closeLimiter = closeLimiter
	return s, nil
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(deps.Logger))
	r.Use(observability.RequestMetricsMiddleware(component))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:          12 * time.Hour,
	}))
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		deps.Logger.Warn().Err(err).Msg("invalid trusted proxies; trusting none")
		_ = r.SetTrustedProxies(nil)
	}

	s := &Server{
		cfg:               cfg,
		r:                 r,
		logger:            deps.Logger,
		authorizer:        deps.Authorizer,
		bundleHash:        deps.BundleHash,
		rateLimiter:       deps.RateLimiter,
		rateLimitRequests: cfg.RateLimit.Requests,
		rateLimitWindow:   cfg.RateLimit.Window(),
		closeLimiter:      func() error { return nil },
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if s.bundleHash != "" {
			body["policy_bundle"] = s.bundleHash
		}
		c.JSON(http.StatusOK, body)
	})
	s.r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.r.Group("/v1")
	{
		v1.POST("/authorize", s.handleAuthorize)
	}

	s.r.NoRoute(s.handleNoRoute)
}

func (s *Server) Handler() http.Handler {
	return s.r
}

func (s *Server) Run() error {
	return s.r.Run(s.cfg.HTTPAddr)
}

func (s *Server) Close() error {
	return s.closeLimiter()
}
