package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/intopays/subpay/internal/app/api/handlers"
	mw "github.com/intopays/subpay/internal/app/api/middleware"
	acctsvc "github.com/intopays/subpay/internal/app/service/account"
	lsnsvc "github.com/intopays/subpay/internal/app/service/listener"
	prodsvc "github.com/intopays/subpay/internal/app/service/product"
	subsvc "github.com/intopays/subpay/internal/app/service/subscription"
	cfgpkg "github.com/intopays/subpay/pkg/config"
	metrics "github.com/intopays/subpay/pkg/metrics"
	"github.com/intopays/subpay/pkg/token"
)

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// Add request tracing middleware only; request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

func registerRoutes(
	r *gin.Engine,
	log *zap.SugaredLogger,
	cfg *cfgpkg.Config,
	signer *token.Signer,
	accounts *acctsvc.Service,
	sub *subsvc.Service,
	products *prodsvc.Service,
	listeners *lsnsvc.Service,
) {
	// Prometheus metrics
	if cfg != nil && cfg.MetricsAddr != "" {
		p := metrics.NewPrometheus(metrics.NewPrometheusOptions{
			ReqCntURLLabelMappingFn: func(c *gin.Context) string {
				if fp := c.FullPath(); fp != "" {
					return fp
				}
				return c.Request.URL.Path
			},
			Logger: log,
		})
		p.SetListenAddress(cfg.MetricsAddr)
		p.Use(r)

		log.Infow("metrics started", "addr", cfg.MetricsAddr)
	}

	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterHealthRoutes(pub)

	// Public v1: registration, login, browser pages, product catalog and the
	// provider webhook intake.
	v1 := r.Group("/v1")
	v1.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterAuthRoutes(v1, accounts)
	handlers.RegisterWebRoutes(v1, sub, signer)

	// Authenticated v1: everything acting on behalf of an account.
	authed := r.Group("/v1")
	authed.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(), mw.AuthMiddleware(accounts, signer))
	handlers.RegisterAccountRoutes(authed, accounts)
	handlers.RegisterSubscriptionRoutes(authed, sub)
	handlers.RegisterProductRoutes(authed, v1, products)
	handlers.RegisterListenerRoutes(authed, v1, listeners)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
