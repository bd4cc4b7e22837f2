package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/attestly/ledger/cmd/ledgerd/models"
	"github.com/attestly/ledger/common/contentkey"
	"github.com/attestly/ledger/common/logger"
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/big"
)

func testAgreementParams(t *testing.T) AgreementParams {
	t.Helper()
	provider, _ := address.NewIDAddress(1000)
	return AgreementParams{
		ContentKey: contentkey.FromString("bafytestcontent"),
		Provider:   provider,
		SizeBytes:  models.GiB,
		Schedule: models.BillingSchedule{
			{ID: "monthly", PeriodSeconds: 30 * 24 * 60 * 60, Amount: big.NewInt(100)},
		},
		PaymentToken: "token-abc",
		Value:        big.NewInt(600),
	}
}

// TestCreateAgreement_Success checks the happy path and that the request
// carries the billing schedule and payment token
func TestCreateAgreement_Success(t *testing.T) {
	wantID := models.AgreementID{0xaa, 0xbb}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req agreementRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("invalid agreement request: %v", err)
		}
		if req.Token != "token-abc" {
			t.Errorf("token = %q, want token-abc", req.Token)
		}
		if len(req.Periods) != 1 || len(req.Prices) != 1 {
			t.Errorf("schedule = %d periods / %d prices, want 1/1", len(req.Periods), len(req.Prices))
		}

		json.NewEncoder(w).Encode(agreementResponse{AgreementID: wantID.String()})
	}))
	defer server.Close()

	broker := NewHTTPBroker(server.URL, 2*time.Second, logger.New("error", "json"))

	id, err := broker.CreateAgreement(context.Background(), testAgreementParams(t))
	if err != nil {
		t.Fatalf("CreateAgreement failed: %v", err)
	}
	if id != wantID {
		t.Errorf("agreement id = %s, want %s", id, wantID)
	}
}

// TestCreateAgreement_Rejection checks that a declined agreement surfaces
// as ErrAgreementRejected with the broker's reason
func TestCreateAgreement_Rejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(agreementResponse{Error: "insufficient collateral"})
	}))
	defer server.Close()

	broker := NewHTTPBroker(server.URL, 2*time.Second, logger.New("error", "json"))

	_, err := broker.CreateAgreement(context.Background(), testAgreementParams(t))
	if !errors.Is(err, models.ErrAgreementRejected) {
		t.Fatalf("err = %v, want ErrAgreementRejected", err)
	}
}

// TestCreateAgreement_EmptySchedule checks local rejection before any
// network call
func TestCreateAgreement_EmptySchedule(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	broker := NewHTTPBroker(server.URL, 2*time.Second, logger.New("error", "json"))

	params := testAgreementParams(t)
	params.Schedule = nil

	_, err := broker.CreateAgreement(context.Background(), params)
	if !errors.Is(err, models.ErrAgreementRejected) {
		t.Fatalf("err = %v, want ErrAgreementRejected", err)
	}
	if called {
		t.Error("broker endpoint contacted despite empty schedule")
	}
}

// TestCreateAgreement_EndpointDown checks that transport failures are not
// reported as rejections
func TestCreateAgreement_EndpointDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	broker := NewHTTPBroker(server.URL, time.Second, logger.New("error", "json"))

	_, err := broker.CreateAgreement(context.Background(), testAgreementParams(t))
	if err == nil {
		t.Fatal("expected error for unreachable endpoint")
	}
	if errors.Is(err, models.ErrAgreementRejected) {
		t.Error("transport failure reported as rejection")
	}
}
