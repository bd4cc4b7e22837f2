package handlers

import (
	"errors"
	"net/http"

	"github.com/attestly/ledger/cmd/ledgerd/models"
	"github.com/attestly/ledger/cmd/ledgerd/service"
	"github.com/attestly/ledger/common/logger"
	"github.com/labstack/echo/v4"
)

// OfferHandler exposes the provider marketplace surface
type OfferHandler struct {
	directory *service.DirectoryService
	estimator *service.EstimatorService
	log       *logger.Logger
}

// NewOfferHandler creates a new offer handler
func NewOfferHandler(directory *service.DirectoryService, estimator *service.EstimatorService, log *logger.Logger) *OfferHandler {
	return &OfferHandler{
		directory: directory,
		estimator: estimator,
		log:       log,
	}
}

// ListOffers returns the current marketplace listing
// GET /api/v1/offers
func (h *OfferHandler) ListOffers(c echo.Context) error {
	listing, err := h.directory.ListOffers(c.Request().Context())
	if errors.Is(err, models.ErrNoOffersAvailable) {
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"error": "no offers available",
		})
	}
	if err != nil {
		h.log.Error("offer listing failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "offer listing failed",
		})
	}

	return c.JSON(http.StatusOK, listing)
}

// BestOffer returns the cheapest provider with available capacity
// GET /api/v1/offers/best
func (h *OfferHandler) BestOffer(c echo.Context) error {
	offer, listing, err := h.directory.BestOffer(c.Request().Context())
	if errors.Is(err, models.ErrNoOffersAvailable) {
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"error": "no offers available",
		})
	}
	if err != nil {
		h.log.Error("best offer selection failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "best offer selection failed",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"offer":    offer,
		"degraded": listing.Degraded,
	})
}

// EstimateRequest is the POST /api/v1/offers/estimate body
type EstimateRequest struct {
	Provider       string `json:"provider"`
	SizeBytes      uint64 `json:"size_bytes"`
	DurationMonths uint64 `json:"duration_months"`
}

// Estimate prices a hypothetical agreement against a provider's offer
// POST /api/v1/offers/estimate
func (h *OfferHandler) Estimate(c echo.Context) error {
	var req EstimateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}

	var offer *models.ProviderOffer
	var err error
	if req.Provider != "" {
		offer, err = h.directory.FindOffer(c.Request().Context(), req.Provider)
	} else {
		offer, _, err = h.directory.BestOffer(c.Request().Context())
	}
	if errors.Is(err, models.ErrNoOffersAvailable) || errors.Is(err, models.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "no matching offer",
		})
	}
	if err != nil {
		h.log.Error("offer lookup failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "offer lookup failed",
		})
	}

	quote, err := h.estimator.Estimate(offer, req.SizeBytes, req.DurationMonths)
	if errors.Is(err, models.ErrInvalidOffer) {
		return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{
			"error": "offer has no billing plans",
		})
	}
	if err != nil {
		h.log.Error("estimate failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "estimate failed",
		})
	}

	return c.JSON(http.StatusOK, quote)
}
