package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	aggregationdomain "github.com/znapsite/platform/internal/aggregation/domain"
	billingdomain "github.com/znapsite/platform/internal/billing/domain"
	"github.com/znapsite/platform/internal/clock"
	"github.com/znapsite/platform/internal/config"
	pricingdomain "github.com/znapsite/platform/internal/pricing/domain"
	visitcapdomain "github.com/znapsite/platform/internal/visitcap/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewMetrics),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, logger *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	log            *zap.Logger
	clock          clock.Clock
	metrics        *Metrics
	billingSvc     billingdomain.Service
	aggregationSvc aggregationdomain.Service
	visitCapSvc    visitcapdomain.Service
	pricingSvc     pricingdomain.Service
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	Log            *zap.Logger
	Clock          clock.Clock
	Metrics        *Metrics
	BillingSvc     billingdomain.Service
	AggregationSvc aggregationdomain.Service
	VisitCapSvc    visitcapdomain.Service
	PricingSvc     pricingdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		log:            p.Log.Named("http.server"),
		clock:          p.Clock,
		metrics:        p.Metrics,
		billingSvc:     p.BillingSvc,
		aggregationSvc: p.AggregationSvc,
		visitCapSvc:    p.VisitCapSvc,
		pricingSvc:     p.PricingSvc,
	}

	svc.registerAPIRoutes()
	svc.registerWebhookRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	tenant := v1.Group("/tenants/:tenant_id")
	tenant.POST("/ai/check", s.CheckAICap)
	tenant.POST("/ai/usage", s.RecordAIUsage)
	tenant.POST("/visits/track", s.TrackVisit)
	tenant.GET("/visits/cap", s.CheckVisitCap)
	tenant.GET("/visits/prompt", s.EnforceCap)
	tenant.POST("/stats/aggregate", s.AggregateDailyStats)
	tenant.GET("/subscription", s.SubscriptionStatus)
	tenant.POST("/billing/provision", s.ProvisionCustomer)
	tenant.GET("/billing/total", s.CalculateMonthlyTotal)
	tenant.POST("/addons/:addon_id", s.SubscribeToAddon)
	tenant.DELETE("/addons/:addon_id", s.UnsubscribeFromAddon)
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/stripe", s.StripeWebhook)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/v1/admin")
	admin.POST("/visits/reset", s.ResetMonthlyCounters)
}
