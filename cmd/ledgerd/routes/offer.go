package routes

import (
	"github.com/attestly/ledger/cmd/ledgerd/container"
	"github.com/attestly/ledger/cmd/ledgerd/handlers"
	commonmw "github.com/attestly/ledger/common/middleware"
	"github.com/labstack/echo/v4"
)

// RegisterOfferRoutes registers the marketplace routes
func RegisterOfferRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewOfferHandler(c.DirectoryService, c.EstimatorService, c.Components.Logger)
	cfg := c.Components.Config

	offers := e.Group("/api/v1/offers")
	if cfg.RateLimit.Enabled {
		offers.Use(commonmw.ClientRateLimitMiddleware(c.RateLimiter, cfg.RateLimit.GlobalLimit, cfg.RateLimit.WindowSeconds))
	}
	{
		offers.GET("", h.ListOffers)        // GET /api/v1/offers
		offers.GET("/best", h.BestOffer)    // GET /api/v1/offers/best
		offers.POST("/estimate", h.Estimate) // POST /api/v1/offers/estimate
	}
}
