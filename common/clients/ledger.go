package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/attestly/ledger/cmd/ledgerd/models"
)

// LedgerClient is a typed client for the ledger's public query surface.
// Used by the verifier to fetch records independently of the event stream.
type LedgerClient struct {
	http    *HTTPClient
	baseURL string
	logger  Logger
}

// NewLedgerClient creates a client against baseURL (e.g. http://ledgerd:8080)
func NewLedgerClient(httpClient *HTTPClient, baseURL string, logger Logger) *LedgerClient {
	return &LedgerClient{
		http:    httpClient,
		baseURL: baseURL,
		logger:  logger,
	}
}

// GetRecord fetches one record by id
func (c *LedgerClient) GetRecord(ctx context.Context, id models.RecordID) (*models.Record, error) {
	url := fmt.Sprintf("%s/api/v1/records/%s", c.baseURL, id)

	resp, err := c.http.DoRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch record: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, models.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	var record models.Record
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}

	return &record, nil
}

// ListRecordIDs fetches the full creation-order index
func (c *LedgerClient) ListRecordIDs(ctx context.Context) ([]models.RecordID, error) {
	url := fmt.Sprintf("%s/api/v1/records", c.baseURL)

	resp, err := c.http.DoRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list record ids: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		RecordIDs []models.RecordID `json:"record_ids"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode record ids: %w", err)
	}

	return payload.RecordIDs, nil
}
