package routes

import (
	"github.com/attestly/ledger/cmd/ledgerd/container"
	"github.com/attestly/ledger/cmd/ledgerd/handlers"
	"github.com/attestly/ledger/cmd/ledgerd/middleware"
	commonmw "github.com/attestly/ledger/common/middleware"
	"github.com/labstack/echo/v4"
)

// RegisterRecordRoutes registers all record-related routes
func RegisterRecordRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewRecordHandler(c.LedgerService, c.Components.Logger)
	cfg := c.Components.Config

	records := e.Group("/api/v1/records")
	if cfg.RateLimit.Enabled {
		records.Use(commonmw.GlobalRateLimitMiddleware(c.RateLimiter, cfg.RateLimit.GlobalLimit, cfg.RateLimit.WindowSeconds))
	}
	{
		// Creation requires an authenticated uploader identity
		records.POST("", h.CreateRecord, middleware.ExtractUploader()) // POST /api/v1/records

		// Public query surface
		records.GET("", h.ListRecordIDs) // GET /api/v1/records
		records.GET("/:id", h.GetRecord) // GET /api/v1/records/{record_id}
	}
}
