package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/attestly/ledger/cmd/ledgerd/models"
	"github.com/attestly/ledger/common/logger"
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/big"
)

func marketplaceOffers(t *testing.T) []models.ProviderOffer {
	t.Helper()
	p0, _ := address.NewIDAddress(2000)
	p1, _ := address.NewIDAddress(2001)
	p2, _ := address.NewIDAddress(2002)

	plan := func(amount int64) models.BillingSchedule {
		return models.BillingSchedule{
			{ID: "monthly", PeriodSeconds: 30 * 24 * 60 * 60, Amount: big.NewInt(amount)},
		}
	}

	return []models.ProviderOffer{
		{Provider: p0, PeerID: "peerA", AvgPrice: big.NewInt(30), AvailableCapacity: models.GiB, Plans: plan(30)},
		{Provider: p1, PeerID: "peerB", AvgPrice: big.NewInt(10), AvailableCapacity: models.GiB, Plans: plan(10)},
		{Provider: p2, PeerID: "peerC", AvgPrice: big.NewInt(20), AvailableCapacity: models.GiB, Plans: plan(20)},
	}
}

func marketplaceServer(t *testing.T, offers []models.ProviderOffer) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(offers)
	}))
}

func testDirectory(url string, fallback []models.ProviderOffer) *DirectoryService {
	log := logger.New("error", "json")
	return NewDirectoryService(url, 2*time.Second, time.Minute, fallback, nil, log)
}

// TestListOffers_LiveMarketplace checks the healthy path: live offers,
// not degraded
func TestListOffers_LiveMarketplace(t *testing.T) {
	server := marketplaceServer(t, marketplaceOffers(t))
	defer server.Close()

	directory := testDirectory(server.URL, DefaultFallbackOffers())

	listing, err := directory.ListOffers(context.Background())
	if err != nil {
		t.Fatalf("ListOffers failed: %v", err)
	}

	if listing.Degraded {
		t.Error("live listing marked degraded")
	}
	if len(listing.Offers) != 3 {
		t.Errorf("got %d offers, want 3", len(listing.Offers))
	}
}

// TestListOffers_MarketplaceDownServesFallback checks degraded mode: the
// fallback set is served and flagged
func TestListOffers_MarketplaceDownServesFallback(t *testing.T) {
	server := marketplaceServer(t, nil)
	server.Close() // Connection refused from here on

	fallback := DefaultFallbackOffers()
	directory := testDirectory(server.URL, fallback)

	listing, err := directory.ListOffers(context.Background())
	if err != nil {
		t.Fatalf("ListOffers failed: %v", err)
	}

	if !listing.Degraded {
		t.Error("fallback listing not marked degraded")
	}
	if len(listing.Offers) != len(fallback) {
		t.Errorf("got %d offers, want %d fallback offers", len(listing.Offers), len(fallback))
	}
}

// TestListOffers_EmptyMarketplaceServesFallback checks that an index
// returning zero offers also degrades instead of serving nothing
func TestListOffers_EmptyMarketplaceServesFallback(t *testing.T) {
	server := marketplaceServer(t, []models.ProviderOffer{})
	defer server.Close()

	directory := testDirectory(server.URL, DefaultFallbackOffers())

	listing, err := directory.ListOffers(context.Background())
	if err != nil {
		t.Fatalf("ListOffers failed: %v", err)
	}

	if !listing.Degraded {
		t.Error("empty-index listing not marked degraded")
	}
	if len(listing.Offers) == 0 {
		t.Error("degraded listing is empty, want fallback offers")
	}
}

// TestBestOffer_SelectsCheapest checks minimum-price selection
func TestBestOffer_SelectsCheapest(t *testing.T) {
	server := marketplaceServer(t, marketplaceOffers(t))
	defer server.Close()

	directory := testDirectory(server.URL, nil)

	best, listing, err := directory.BestOffer(context.Background())
	if err != nil {
		t.Fatalf("BestOffer failed: %v", err)
	}

	if best.PeerID != "peerB" {
		t.Errorf("best offer = %s, want peerB (cheapest)", best.PeerID)
	}
	if listing.Degraded {
		t.Error("live listing marked degraded")
	}
}

// TestBestOffer_PriceTieKeepsFirstSeen checks a price tie resolves to the
// offer listed first
func TestBestOffer_PriceTieKeepsFirstSeen(t *testing.T) {
	offers := marketplaceOffers(t)
	offers[2].AvgPrice = big.NewInt(10) // peerC now ties peerB, listed later

	server := marketplaceServer(t, offers)
	defer server.Close()

	directory := testDirectory(server.URL, nil)

	best, _, err := directory.BestOffer(context.Background())
	if err != nil {
		t.Fatalf("BestOffer failed: %v", err)
	}

	if best.PeerID != "peerB" {
		t.Errorf("best offer = %s, want peerB (first at the tied price)", best.PeerID)
	}
}

// TestBestOffer_SkipsUnusableOffers checks that offers with no capacity or
// no plans never win even at the lowest price
func TestBestOffer_SkipsUnusableOffers(t *testing.T) {
	offers := marketplaceOffers(t)
	offers[1].AvailableCapacity = 0 // Cheapest, but full
	offers[2].Plans = nil           // Second cheapest, but unbillable

	server := marketplaceServer(t, offers)
	defer server.Close()

	directory := testDirectory(server.URL, nil)

	best, _, err := directory.BestOffer(context.Background())
	if err != nil {
		t.Fatalf("BestOffer failed: %v", err)
	}

	if best.PeerID != "peerA" {
		t.Errorf("best offer = %s, want peerA (only usable)", best.PeerID)
	}
}

// TestBestOffer_NothingUsable checks the exhausted path: marketplace down
// and no fallback configured
func TestBestOffer_NothingUsable(t *testing.T) {
	server := marketplaceServer(t, nil)
	server.Close()

	directory := testDirectory(server.URL, nil)

	_, _, err := directory.BestOffer(context.Background())
	if err != models.ErrNoOffersAvailable {
		t.Fatalf("err = %v, want ErrNoOffersAvailable", err)
	}
}

// TestFindOffer checks provider lookup in the current listing
func TestFindOffer(t *testing.T) {
	offers := marketplaceOffers(t)
	server := marketplaceServer(t, offers)
	defer server.Close()

	directory := testDirectory(server.URL, nil)
	ctx := context.Background()

	found, err := directory.FindOffer(ctx, offers[2].Provider.String())
	if err != nil {
		t.Fatalf("FindOffer failed: %v", err)
	}
	if found.PeerID != "peerC" {
		t.Errorf("found = %s, want peerC", found.PeerID)
	}

	unknown, _ := address.NewIDAddress(9999)
	if _, err := directory.FindOffer(ctx, unknown.String()); err != models.ErrNoOffersAvailable {
		t.Fatalf("err = %v, want ErrNoOffersAvailable for unknown provider", err)
	}
}
