// Package http wires the gin router: the websocket endpoint, health and
// metrics, and the workspace membership API.
package http

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/devcollab/server/internal/adapters/ws"
	"github.com/devcollab/server/internal/config"
	"github.com/devcollab/server/internal/membership"
)

func SetupRouter(ctx context.Context, cfg *config.Config, wsHandler *ws.Handler, members *membership.Service, gatherer prometheus.Gatherer) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	r.GET("/ws", func(c *gin.Context) {
		wsHandler.Handle(ctx, c)
	})

	api := r.Group("/api")
	mh := &memberHandlers{members: members}
	api.PUT("/workspaces/:workspaceId/members/:userId", mh.setRole)
	api.DELETE("/workspaces/:workspaceId/members/:userId", mh.remove)
	api.DELETE("/workspaces/:workspaceId", mh.deleteWorkspace)

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
