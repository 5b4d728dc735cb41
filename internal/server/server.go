package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/railzwaylabs/interviewledger/internal/audit/domain"
	"github.com/railzwaylabs/interviewledger/internal/clock"
	"github.com/railzwaylabs/interviewledger/internal/config"
	invoicedomain "github.com/railzwaylabs/interviewledger/internal/invoice/domain"
	ledgerdomain "github.com/railzwaylabs/interviewledger/internal/ledger/domain"
	pricechangedomain "github.com/railzwaylabs/interviewledger/internal/pricechange/domain"
	pricingdomain "github.com/railzwaylabs/interviewledger/internal/pricing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(New),
	fx.Invoke(Register),
)

type Params struct {
	fx.In

	Config       config.Config
	Log          *zap.Logger
	Clock        clock.Clock
	Pricing      pricingdomain.Service
	Resolver     pricingdomain.Resolver
	PriceChanges pricechangedomain.Service
	Ledger       ledgerdomain.Service
	Invoices     invoicedomain.Service
	AuditSvc     auditdomain.Service
	AuditExport  auditdomain.ExportService

	Gatherer prometheus.Gatherer `optional:"true"`
}

type Server struct {
	engine *gin.Engine
	log    *zap.Logger
	clock  clock.Clock

	pricingSvc     pricingdomain.Service
	resolver       pricingdomain.Resolver
	priceChangeSvc pricechangedomain.Service
	ledgerSvc      ledgerdomain.Service
	invoiceSvc     invoicedomain.Service
	auditSvc       auditdomain.Service
	auditExportSvc auditdomain.ExportService
}

func New(p Params) *Server {
	if p.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		engine:         gin.New(),
		log:            p.Log.Named("http"),
		clock:          p.Clock,
		pricingSvc:     p.Pricing,
		resolver:       p.Resolver,
		priceChangeSvc: p.PriceChanges,
		ledgerSvc:      p.Ledger,
		invoiceSvc:     p.Invoices,
		auditSvc:       p.AuditSvc,
		auditExportSvc: p.AuditExport,
	}
	s.engine.Use(gin.Recovery(), s.RequestLogger(), s.ActorFromHeaders())
	s.routes(p.Gatherer)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes(gatherer prometheus.Gatherer) {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := s.engine.Group("/api/v1")

	pricing := api.Group("/pricing")
	pricing.GET("/global", s.GetGlobalPricing)
	pricing.GET("/resolve", s.ResolvePricing)
	pricing.GET("/overrides", s.ListOverrides)
	pricing.GET("/overrides/:institution_id", s.GetOverride)
	pricing.POST("/overrides/:institution_id/enable", s.EnableOverride)
	pricing.POST("/overrides/:institution_id/disable", s.DisableOverride)

	changes := api.Group("/price-changes")
	changes.POST("", s.SchedulePriceChange)
	changes.GET("", s.ListPriceChanges)
	changes.POST("/tick", s.TickPriceChanges)
	changes.GET("/:id", s.GetPriceChange)
	changes.POST("/:id/cancel", s.CancelPriceChange)

	purchases := api.Group("/purchases")
	purchases.POST("", s.CreatePurchase)
	purchases.POST("/import", s.ImportPurchase)
	purchases.GET("/:id", s.GetPurchase)
	purchases.POST("/:id/complete", s.CompletePurchase)
	purchases.POST("/:id/cancel", s.CancelPurchase)

	institutions := api.Group("/institutions/:institution_id")
	institutions.GET("/balance", s.GetBalance)
	institutions.POST("/sessions/consume", s.ConsumeSessions)
	institutions.GET("/billing-history", s.ListBillingHistory)

	invoices := api.Group("/invoices/:purchase_id")
	invoices.GET("", s.GetInvoice)
	invoices.GET("/text", s.GetInvoiceText)
	invoices.GET("/pdf", s.GetInvoicePDF)

	audit := api.Group("/audit")
	audit.GET("/logs", s.ListAuditLogs)
	audit.GET("/export", s.ExportAuditLogs)
}

// Register runs the HTTP listener for the lifetime of the application.
func Register(lc fx.Lifecycle, s *Server, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log = log.Named("http")

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
