// Package router assembles the gin routes for the read API.
package router

import (
	"github.com/gin-gonic/gin"

	"bitrag/internal/handler"
)

type Config struct {
	MarketHandler *handler.MarketHandler
}

func NewRouter(cfg *Config) *gin.Engine {
	router := gin.Default()

	api := router.Group("/v1/")
	registerMarketRoutes(api, cfg.MarketHandler)

	return router
}
