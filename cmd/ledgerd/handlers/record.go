package handlers

import (
	"errors"
	"net/http"

	"github.com/attestly/ledger/cmd/ledgerd/middleware"
	"github.com/attestly/ledger/cmd/ledgerd/models"
	"github.com/attestly/ledger/cmd/ledgerd/service"
	"github.com/attestly/ledger/common/contentkey"
	"github.com/attestly/ledger/common/logger"
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/ipfs/go-cid"
	"github.com/labstack/echo/v4"
)

// RecordHandler handles record creation and the public query surface
type RecordHandler struct {
	ledger *service.LedgerService
	log    *logger.Logger
}

// NewRecordHandler creates a new record handler
func NewRecordHandler(ledger *service.LedgerService, log *logger.Logger) *RecordHandler {
	return &RecordHandler{
		ledger: ledger,
		log:    log,
	}
}

// CreateRecordRequest is the POST /api/v1/records body
type CreateRecordRequest struct {
	ContentID string                 `json:"content_id"`
	Provider  string                 `json:"provider"`
	SizeBytes uint64                 `json:"size_bytes"`
	Schedule  models.BillingSchedule `json:"schedule"`
	Category  string                 `json:"category"`
	Value     big.Int                `json:"value"`
}

// CreateRecordResponse is returned on successful creation
type CreateRecordResponse struct {
	RecordID models.RecordID `json:"record_id"`
}

// CreateRecord creates a storage record
// POST /api/v1/records
func (h *RecordHandler) CreateRecord(c echo.Context) error {
	uploader := middleware.GetUploader(c)
	if uploader == address.Undef {
		return c.JSON(http.StatusUnauthorized, map[string]interface{}{
			"error": "uploader identity required",
		})
	}

	var req CreateRecordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}

	provider, err := address.NewFromString(req.Provider)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid provider address",
		})
	}

	if len(req.Schedule) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "billing schedule requires at least one plan",
		})
	}

	if req.Value.Nil() {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "value is required",
		})
	}

	id, err := h.ledger.CreateRecord(c.Request().Context(), service.CreateRecordParams{
		ContentKey: contentKeyFromIdentifier(req.ContentID),
		Provider:   provider,
		SizeBytes:  req.SizeBytes,
		Schedule:   req.Schedule,
		Category:   req.Category,
		Uploader:   uploader,
		Value:      req.Value,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrAgreementRejected):
			return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{
				"error":  "agreement_rejected",
				"detail": err.Error(),
			})
		case errors.Is(err, models.ErrDuplicateRecord):
			return c.JSON(http.StatusConflict, map[string]interface{}{
				"error": "duplicate_record",
			})
		default:
			h.log.Error("record creation failed", "error", err)
			return c.JSON(http.StatusInternalServerError, map[string]interface{}{
				"error": "record creation failed",
			})
		}
	}

	return c.JSON(http.StatusCreated, CreateRecordResponse{RecordID: id})
}

// contentKeyFromIdentifier derives a content key from the submitted content
// identifier. Identifiers that parse as a CID use its binary form; anything
// else is taken as an opaque string.
func contentKeyFromIdentifier(identifier string) contentkey.Key {
	if parsed, err := cid.Decode(identifier); err == nil {
		return contentkey.FromCID(parsed)
	}
	return contentkey.FromString(identifier)
}

// GetRecord retrieves a record by id
// GET /api/v1/records/:id
func (h *RecordHandler) GetRecord(c echo.Context) error {
	id, err := models.ParseRecordID(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid record id",
		})
	}

	record, err := h.ledger.GetRecord(c.Request().Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "record not found",
		})
	}
	if err != nil {
		h.log.Error("record lookup failed", "record_id", id.String(), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "record lookup failed",
		})
	}

	return c.JSON(http.StatusOK, record)
}

// ListRecordIDs returns the full creation-order index
// GET /api/v1/records
func (h *RecordHandler) ListRecordIDs(c echo.Context) error {
	ids, err := h.ledger.ListRecordIDs(c.Request().Context())
	if err != nil {
		h.log.Error("record index listing failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "record index listing failed",
		})
	}

	if ids == nil {
		ids = []models.RecordID{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"record_ids": ids,
		"count":      len(ids),
	})
}
