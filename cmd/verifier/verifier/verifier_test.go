package verifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/attestly/ledger/cmd/ledgerd/models"
	"github.com/attestly/ledger/common/clients"
	"github.com/attestly/ledger/common/contentkey"
	"github.com/attestly/ledger/common/logger"
	"github.com/filecoin-project/go-address"
)

func testRecord(t *testing.T) (*models.Record, models.RecordID) {
	t.Helper()
	uploader, err := address.NewIDAddress(100)
	if err != nil {
		t.Fatalf("NewIDAddress failed: %v", err)
	}
	record := &models.Record{
		ContentKey:  contentkey.FromString("bafyverified"),
		AgreementID: models.AgreementID{5, 6, 7},
		Uploader:    uploader,
		CreatedAt:   1700000000,
		Category:    "archive",
		SizeBytes:   models.GiB,
		Pinned:      true,
	}
	return record, record.ID()
}

func ledgerServer(t *testing.T, record *models.Record, id models.RecordID) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/records/"+id.String() {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(record)
	}))
}

func testVerifier(t *testing.T, baseURL string) *Verifier {
	t.Helper()
	log := logger.New("error", "json")
	httpClient := clients.NewHTTPClient(&http.Client{Timeout: 2 * time.Second}, log)
	ledgerClient := clients.NewLedgerClient(httpClient, baseURL, log)
	return New(nil, ledgerClient, "ledger.records.created", log)
}

func eventPayload(t *testing.T, event models.RecordCreated) []byte {
	t.Helper()
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	return data
}

// TestVerifier_ValidEvent checks that a truthful notification verifies
func TestVerifier_ValidEvent(t *testing.T) {
	record, id := testRecord(t)
	server := ledgerServer(t, record, id)
	defer server.Close()

	v := testVerifier(t, server.URL)

	payload := eventPayload(t, models.RecordCreated{
		RecordID:    id,
		ContentKey:  record.ContentKey,
		AgreementID: record.AgreementID,
		Uploader:    record.Uploader,
		Category:    record.Category,
	})

	if err := v.handleEvent(context.Background(), id.String(), payload); err != nil {
		t.Fatalf("handleEvent failed: %v", err)
	}

	verified, mismatches := v.Stats()
	if verified != 1 || mismatches != 0 {
		t.Errorf("stats = %d verified / %d mismatches, want 1/0", verified, mismatches)
	}
}

// TestVerifier_TamperedEvent checks that an event lying about the
// uploader is flagged
func TestVerifier_TamperedEvent(t *testing.T) {
	record, id := testRecord(t)
	server := ledgerServer(t, record, id)
	defer server.Close()

	v := testVerifier(t, server.URL)

	liar, _ := address.NewIDAddress(666)
	payload := eventPayload(t, models.RecordCreated{
		RecordID:    id,
		ContentKey:  record.ContentKey,
		AgreementID: record.AgreementID,
		Uploader:    liar,
		Category:    record.Category,
	})

	if err := v.handleEvent(context.Background(), id.String(), payload); err != nil {
		t.Fatalf("handleEvent failed: %v", err)
	}

	verified, mismatches := v.Stats()
	if verified != 0 || mismatches != 1 {
		t.Errorf("stats = %d verified / %d mismatches, want 0/1", verified, mismatches)
	}
}

// TestVerifier_AnnouncedRecordMissing checks that an event naming a
// record the ledger does not serve is flagged
func TestVerifier_AnnouncedRecordMissing(t *testing.T) {
	record, id := testRecord(t)
	server := ledgerServer(t, record, id)
	defer server.Close()

	v := testVerifier(t, server.URL)

	fake := models.RecordID{0xde, 0xad}
	payload := eventPayload(t, models.RecordCreated{
		RecordID:   fake,
		ContentKey: record.ContentKey,
		Uploader:   record.Uploader,
	})

	if err := v.handleEvent(context.Background(), fake.String(), payload); err != nil {
		t.Fatalf("handleEvent failed: %v", err)
	}

	_, mismatches := v.Stats()
	if mismatches != 1 {
		t.Errorf("mismatches = %d, want 1", mismatches)
	}
}

// TestVerifier_MalformedEvent checks that garbage payloads are dropped
// without counting as a mismatch
func TestVerifier_MalformedEvent(t *testing.T) {
	record, id := testRecord(t)
	server := ledgerServer(t, record, id)
	defer server.Close()

	v := testVerifier(t, server.URL)

	if err := v.handleEvent(context.Background(), "x", []byte("{not json")); err != nil {
		t.Fatalf("handleEvent failed: %v", err)
	}

	verified, mismatches := v.Stats()
	if verified != 0 || mismatches != 0 {
		t.Errorf("stats = %d/%d, want 0/0 for malformed payload", verified, mismatches)
	}
}
