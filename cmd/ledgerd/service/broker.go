package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/attestly/ledger/cmd/ledgerd/models"
	"github.com/attestly/ledger/common/contentkey"
	"github.com/attestly/ledger/common/logger"
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/big"
)

// AgreementParams carries everything the settlement boundary needs to
// establish a billed storage agreement.
type AgreementParams struct {
	ContentKey   contentkey.Key
	Provider     address.Address
	SizeBytes    uint64
	Schedule     models.BillingSchedule
	PaymentToken string
	Value        big.Int
}

// AgreementBroker is the external settlement boundary. Implementations
// must return models.ErrAgreementRejected (wrapped) when the provider
// network declines the agreement, so callers can distinguish a rejection
// from a transport failure.
type AgreementBroker interface {
	CreateAgreement(ctx context.Context, params AgreementParams) (models.AgreementID, error)
}

// HTTPBroker is the production AgreementBroker: a JSON client against a
// configured settlement endpoint. The endpoint is injected, never a
// compiled-in constant, so environments and tests can swap it.
type HTTPBroker struct {
	endpoint string
	client   *http.Client
	log      *logger.Logger
}

// NewHTTPBroker creates a broker client against endpoint
func NewHTTPBroker(endpoint string, timeout time.Duration, log *logger.Logger) *HTTPBroker {
	return &HTTPBroker{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		log:      log,
	}
}

type agreementRequest struct {
	ContentKey string    `json:"content_key"`
	Provider   string    `json:"provider"`
	SizeBytes  uint64    `json:"size_bytes"`
	Periods    []uint64  `json:"periods"`
	Prices     []big.Int `json:"prices"`
	Token      string    `json:"token"`
	Value      big.Int   `json:"value"`
}

type agreementResponse struct {
	AgreementID string `json:"agreement_id"`
	Error       string `json:"error,omitempty"`
}

// CreateAgreement submits the agreement and waits for a definitive
// outcome. Once submitted the call is not cancelable: the caller must see
// success or failure before deciding whether to persist a record.
func (b *HTTPBroker) CreateAgreement(ctx context.Context, params AgreementParams) (models.AgreementID, error) {
	var id models.AgreementID

	if len(params.Schedule) == 0 {
		return id, fmt.Errorf("%w: empty billing schedule", models.ErrAgreementRejected)
	}

	payload, err := json.Marshal(agreementRequest{
		ContentKey: params.ContentKey.String(),
		Provider:   params.Provider.String(),
		SizeBytes:  params.SizeBytes,
		Periods:    params.Schedule.Periods(),
		Prices:     params.Schedule.Prices(),
		Token:      params.PaymentToken,
		Value:      params.Value,
	})
	if err != nil {
		return id, fmt.Errorf("failed to encode agreement request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(payload))
	if err != nil {
		return id, fmt.Errorf("failed to build agreement request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return id, fmt.Errorf("agreement submission failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return id, fmt.Errorf("failed to read agreement response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var decoded agreementResponse
		reason := string(body)
		if json.Unmarshal(body, &decoded) == nil && decoded.Error != "" {
			reason = decoded.Error
		}
		b.log.Warn("broker rejected agreement",
			"provider", params.Provider.String(),
			"status", resp.StatusCode,
			"reason", reason,
		)
		return id, fmt.Errorf("%w: %s", models.ErrAgreementRejected, reason)
	}

	var decoded agreementResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return id, fmt.Errorf("malformed agreement response: %w", err)
	}

	id, err = models.ParseAgreementID(decoded.AgreementID)
	if err != nil {
		return id, fmt.Errorf("malformed agreement id: %w", err)
	}

	return id, nil
}
