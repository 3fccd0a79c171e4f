package diskreport

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Varietyz/banes-lab-bot/internal/models"
	"github.com/Varietyz/banes-lab-bot/internal/pkg/response"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Reader lists stored reports.
type Reader interface {
	LatestReports(ctx context.Context, limit int) ([]models.DiskReport, error)
}

// Handler exposes stored reports.
type Handler struct{ reader Reader }

func NewHandler(reader Reader) *Handler { return &Handler{reader: reader} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.GET("/disk-reports", authMW, h.list)
}

// GET /disk-reports?limit=N
func (h *Handler) list(c *gin.Context) {
	limit := defaultListLimit
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = min(v, maxListLimit)
	}
	rows, err := h.reader.LatestReports(c.Request.Context(), limit)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, rows)
}
