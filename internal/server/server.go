package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	accountdomain "github.com/smallbiznis/makerhub/internal/account/domain"
	checkoutdomain "github.com/smallbiznis/makerhub/internal/checkout/domain"
	"github.com/smallbiznis/makerhub/internal/config"
	currencydomain "github.com/smallbiznis/makerhub/internal/currency/domain"
	leaddomain "github.com/smallbiznis/makerhub/internal/lead/domain"
	"github.com/smallbiznis/makerhub/internal/observability"
	obslogger "github.com/smallbiznis/makerhub/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/makerhub/internal/observability/metrics"
	obstracing "github.com/smallbiznis/makerhub/internal/observability/tracing"
	pagedomain "github.com/smallbiznis/makerhub/internal/page/domain"
	paymentdomain "github.com/smallbiznis/makerhub/internal/payment/domain"
	plandomain "github.com/smallbiznis/makerhub/internal/plan/domain"
	"github.com/smallbiznis/makerhub/internal/ratelimit"
	saledomain "github.com/smallbiznis/makerhub/internal/sale/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg config.Config, log *zap.Logger, s *Server) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
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
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	pageSvc         pagedomain.Service
	planSvc         plandomain.Service
	saleSvc         saledomain.Service
	leadSvc         leaddomain.Service
	accountSvc      accountdomain.Service
	checkoutSvc     checkoutdomain.Service
	webhookSvc      paymentdomain.Service
	converter       currencydomain.Converter
	obsMetrics      *obsmetrics.Metrics
	checkoutLimiter *ratelimit.CheckoutLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	PageSvc         pagedomain.Service
	PlanSvc         plandomain.Service
	SaleSvc         saledomain.Service
	LeadSvc         leaddomain.Service
	AccountSvc      accountdomain.Service
	CheckoutSvc     checkoutdomain.Service
	WebhookSvc      paymentdomain.Service
	Converter       currencydomain.Converter
	ObsMetrics      *obsmetrics.Metrics        `optional:"true"`
	CheckoutLimiter *ratelimit.CheckoutLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http.server"),
		pageSvc:         p.PageSvc,
		planSvc:         p.PlanSvc,
		saleSvc:         p.SaleSvc,
		leadSvc:         p.LeadSvc,
		accountSvc:      p.AccountSvc,
		checkoutSvc:     p.CheckoutSvc,
		webhookSvc:      p.WebhookSvc,
		converter:       p.Converter,
		obsMetrics:      p.ObsMetrics,
		checkoutLimiter: p.CheckoutLimiter,
	}

	svc.registerPublicRoutes()
	svc.registerWebhookRoutes()
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerPublicRoutes() {
	r := s.engine

	r.GET("/currencies", s.ListCurrencies)
	r.GET("/prices/:productId", s.GetPrices)
	r.POST("/track/:productId/view", s.TrackView)
	r.POST("/track/:productId/click", s.TrackClick)

	checkout := r.Group("/checkout")
	checkout.POST("/create-session", s.CheckoutRateLimit(), s.CreateCheckoutSession)
	checkout.GET("/session/:sessionId", s.GetCheckoutSession)
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/checkout/webhook", s.HandleStripeWebhook)
	s.engine.POST("/webhooks/:provider", s.HandlePaymentWebhook)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	// -------- Pages --------
	api.GET("/pages", s.ListPages)
	api.POST("/pages", s.CreatePage)
	api.GET("/pages/:pageId", s.GetPage)
	api.PATCH("/pages/:pageId", s.UpdatePage)
	api.DELETE("/pages/:pageId", s.DeletePage)
	api.PUT("/pages/:pageId/status", s.SetPageStatus)
	api.GET("/pages/:pageId/stats", s.GetPageStats)

	// -------- Plans --------
	api.GET("/pages/:pageId/plans", s.ListPlans)
	api.PUT("/pages/:pageId/plans", s.ReplacePlans)
	api.POST("/pages/:pageId/plans", s.AddPlan)
	api.PATCH("/pages/:pageId/plans/:planId", s.UpdatePlan)
	api.DELETE("/pages/:pageId/plans/:planId", s.DeletePlan)

	// -------- Sales & leads --------
	api.GET("/pages/:pageId/sales", s.ListSales)
	api.GET("/leads", s.ListLeads)

	// -------- Connected account --------
	api.GET("/accounts/me", s.GetAccount)
	api.PUT("/accounts/me", s.LinkAccount)
	api.POST("/accounts/me/refresh", s.RefreshAccount)
	api.POST("/accounts/me/onboard", s.StartOnboarding)
	api.GET("/accounts/me/dashboard-link", s.GetDashboardLink)
}
