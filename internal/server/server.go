package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/cuotas/internal/adjustment"
	adjustmentdomain "github.com/smallbiznis/cuotas/internal/adjustment/domain"
	"github.com/smallbiznis/cuotas/internal/audit"
	auditdomain "github.com/smallbiznis/cuotas/internal/audit/domain"
	"github.com/smallbiznis/cuotas/internal/config"
	"github.com/smallbiznis/cuotas/internal/cuota"
	cuotadomain "github.com/smallbiznis/cuotas/internal/cuota/domain"
	"github.com/smallbiznis/cuotas/internal/discount"
	discountdomain "github.com/smallbiznis/cuotas/internal/discount/domain"
	"github.com/smallbiznis/cuotas/internal/exemption"
	exemptiondomain "github.com/smallbiznis/cuotas/internal/exemption/domain"
	"github.com/smallbiznis/cuotas/internal/member"
	"github.com/smallbiznis/cuotas/internal/observability"
	obsmiddleware "github.com/smallbiznis/cuotas/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/cuotas/internal/observability/metrics"
	obstracing "github.com/smallbiznis/cuotas/internal/observability/tracing"
	"github.com/smallbiznis/cuotas/internal/pricing"
	"github.com/smallbiznis/cuotas/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	ratelimit.Module,
	member.Module,
	audit.Module,
	discount.Module,
	adjustment.Module,
	exemption.Module,
	pricing.Module,
	cuota.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(log, obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ActorHeader:     headerActor,
		SlowRequest:     5 * time.Second,
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(HTTPMetricsMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(log, obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
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
	engine        *gin.Engine
	log           *zap.Logger
	limiter       *ratelimit.Limiter
	cuotaSvc      cuotadomain.Service
	discountSvc   discountdomain.Service
	adjustmentSvc adjustmentdomain.Service
	exemptionSvc  exemptiondomain.Service
	auditSvc      auditdomain.Service
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Log           *zap.Logger
	Limiter       *ratelimit.Limiter `optional:"true"`
	CuotaSvc      cuotadomain.Service
	DiscountSvc   discountdomain.Service
	AdjustmentSvc adjustmentdomain.Service
	ExemptionSvc  exemptiondomain.Service
	AuditSvc      auditdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		log:           p.Log.Named("http.server"),
		limiter:       p.Limiter,
		cuotaSvc:      p.CuotaSvc,
		discountSvc:   p.DiscountSvc,
		adjustmentSvc: p.AdjustmentSvc,
		exemptionSvc:  p.ExemptionSvc,
		auditSvc:      p.AuditSvc,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/v1")

	// -------- Cuotas --------
	api.GET("/cuotas", s.ListCuotas)
	api.GET("/cuotas/:id", s.GetCuota)
	batch := api.Group("", BatchRateLimitMiddleware(s.limiter, s.log))
	batch.POST("/cuotas/generate", s.GenerateCuotas)
	batch.POST("/cuotas/recalculate", s.RecalculatePeriod)
	batch.POST("/cuotas/regenerate", s.RegenerateCuotas)
	api.POST("/cuotas/preview", s.PreviewCuotas)
	api.POST("/cuotas/:id/recalculate", s.RecalculateCuota)
	api.GET("/cuotas/:id/compare", s.CompareCuota)
	api.POST("/cuotas/:id/pay", s.PayCuota)

	// -------- Adjustments --------
	api.GET("/adjustments", s.ListAdjustments)
	api.POST("/adjustments", s.CreateAdjustment)
	api.GET("/adjustments/:id", s.GetAdjustment)
	api.PATCH("/adjustments/:id", s.UpdateAdjustment)
	api.POST("/adjustments/:id/deactivate", s.DeactivateAdjustment)
	api.POST("/adjustments/:id/reactivate", s.ReactivateAdjustment)
	api.DELETE("/adjustments/:id", s.DeleteAdjustment)

	// -------- Exemptions --------
	api.GET("/exemptions", s.ListExemptions)
	api.POST("/exemptions", s.CreateExemption)
	api.GET("/exemptions/:id", s.GetExemption)
	api.PATCH("/exemptions/:id", s.UpdateExemption)
	api.POST("/exemptions/:id/approve", s.ApproveExemption)
	api.POST("/exemptions/:id/reject", s.RejectExemption)
	api.POST("/exemptions/:id/revoke", s.RevokeExemption)

	// -------- Discount rules --------
	api.GET("/discount-rules", s.ListDiscountRules)
	api.POST("/discount-rules", s.CreateDiscountRule)
	api.GET("/discount-rules/:id", s.GetDiscountRule)
	api.PUT("/discount-rules/:id", s.UpdateDiscountRule)
	api.POST("/discount-rules/:id/activate", s.ActivateDiscountRule)
	api.POST("/discount-rules/:id/deactivate", s.DeactivateDiscountRule)

	api.GET("/discount-config", s.GetDiscountConfig)
	api.PUT("/discount-config", s.UpdateDiscountConfig)

	// -------- Audit --------
	api.GET("/audit", s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
