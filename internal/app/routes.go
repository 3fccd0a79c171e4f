package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Varietyz/banes-lab-bot/internal/middleware"
	"github.com/Varietyz/banes-lab-bot/internal/modules/gateway"
	"github.com/Varietyz/banes-lab-bot/internal/modules/stats/diskreport"
	"github.com/Varietyz/banes-lab-bot/internal/modules/tasks/crontask"
	"github.com/Varietyz/banes-lab-bot/internal/pkg/metrics"
	"github.com/Varietyz/banes-lab-bot/internal/pkg/response"
)

func (a *App) registerRoutes() {
	r := a.router
	authMW := middleware.Auth(a.signer)

	r.NoRoute(func(c *gin.Context) {
		response.NotFoundMsg(c, "Not found")
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler(a.registry)))

	api := r.Group("/api")
	api.Use(middleware.OptionalAuth(a.signer))
	if a.rc != nil {
		api.Use(middleware.RateLimit(a.rc, a.logger))
	}

	gateway.RegisterRoutes(r, api, a.hub)
	crontask.NewHandler(a.sched).RegisterRoutes(api, authMW)
	diskreport.NewHandler(a.store).RegisterRoutes(api, authMW)

	api.GET("/health", a.health)
	api.GET("/checkAuth", authMW, func(c *gin.Context) {
		response.OK(c, gin.H{"message": "Authenticated", "user": middleware.CurrentClaims(c)})
	})
}

func (a *App) health(c *gin.Context) {
	status := http.StatusOK
	dbState := "ok"
	if sqlDB, err := a.store.DB().DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		status = http.StatusServiceUnavailable
		dbState = "unavailable"
	}
	ok := 1
	if status != http.StatusOK {
		ok = 0
	}
	c.JSON(status, gin.H{
		"ok":       ok,
		"version":  Version(),
		"uptime":   humanizeDuration(time.Since(processStart)),
		"database": dbState,
	})
}
