package gateway

import (
	"github.com/gin-gonic/gin"

	"github.com/Varietyz/banes-lab-bot/internal/pkg/response"
)

// RegisterRoutes mounts socket.io and the stats endpoint.
func RegisterRoutes(root *gin.Engine, api *gin.RouterGroup, hub *Hub) {
	handler := gin.WrapH(hub.Handler())
	root.Any("/socket.io", handler)
	root.Any("/socket.io/*any", handler)

	api.GET("/gateway/stats", func(c *gin.Context) {
		response.OK(c, hub.Stats(c.Request.Context()))
	})
}
