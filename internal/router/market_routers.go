package router

import (
	"github.com/gin-gonic/gin"

	"bitrag/internal/handler"
)

func registerMarketRoutes(group *gin.RouterGroup, h *handler.MarketHandler) {
	group.GET("/prices/recent", h.GetRecentPrices)
	group.GET("/whales/recent", h.GetRecentWhales)
	group.GET("/progress", h.GetProgress)
}
