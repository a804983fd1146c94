// Package handler contains the gin handlers for the read API.
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bitrag/internal/service"
)

type MarketHandler struct {
	marketService *service.MarketService
}

func NewMarketHandler(marketService *service.MarketService) *MarketHandler {
	return &MarketHandler{
		marketService: marketService,
	}
}

// GetRecentPrices returns price rows from the past `days` days (default 7).
func (h *MarketHandler) GetRecentPrices(c *gin.Context) {
	days := queryInt(c, "days", 7)
	prices, err := h.marketService.RecentPrices(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query prices"})
		return
	}
	c.JSON(http.StatusOK, prices)
}

// GetRecentWhales returns the `limit` most recent whale transactions (default 5).
func (h *MarketHandler) GetRecentWhales(c *gin.Context) {
	limit := queryInt(c, "limit", 5)
	whales, err := h.marketService.RecentWhales(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query transactions"})
		return
	}
	c.JSON(http.StatusOK, whales)
}

// GetProgress returns the processor's latest progress snapshot.
func (h *MarketHandler) GetProgress(c *gin.Context) {
	snap, err := h.marketService.Progress()
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no progress snapshot available"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func queryInt(c *gin.Context, key string, defaultValue int) int {
	valueStr := c.Query(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}
