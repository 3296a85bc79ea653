// Package server exposes the webhook ingress that drives the sync pipeline.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/groupsync/internal/config"
	"github.com/smallbiznis/groupsync/internal/observability"
	obslogger "github.com/smallbiznis/groupsync/internal/observability/logger"
	obstracing "github.com/smallbiznis/groupsync/internal/observability/tracing"
	syncdomain "github.com/smallbiznis/groupsync/internal/sync/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware())
	r.Use(obstracing.GinMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	engine  *gin.Engine
	cfg     config.Config
	log     *zap.Logger
	syncSvc syncdomain.Service
}

type Params struct {
	fx.In

	Engine  *gin.Engine
	Cfg     config.Config
	Log     *zap.Logger
	SyncSvc syncdomain.Service
}

func NewServer(p Params) *Server {
	return &Server{
		engine:  p.Engine,
		cfg:     p.Cfg,
		log:     p.Log.Named("server"),
		syncSvc: p.SyncSvc,
	}
}

func (s *Server) RegisterRoutes() {
	s.engine.POST("/webhooks/:source", s.HandleCommerceWebhook)
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
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

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(RunHTTP),
)
