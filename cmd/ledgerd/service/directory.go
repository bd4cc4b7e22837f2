package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/attestly/ledger/cmd/ledgerd/models"
	"github.com/attestly/ledger/common/cache"
	"github.com/attestly/ledger/common/logger"
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/big"
)

const offerCacheKey = "marketplace:offers"

// DefaultFallbackOffers returns the built-in offer set served in degraded
// mode so uploads keep working while the marketplace index is down.
func DefaultFallbackOffers() []models.ProviderOffer {
	p0, _ := address.NewIDAddress(1000)
	p1, _ := address.NewIDAddress(1001)

	monthSeconds := uint64(30 * 24 * 60 * 60)

	return []models.ProviderOffer{
		{
			Provider:          p0,
			PeerID:            "12D3KooWFallbackProviderA",
			AvgPrice:          big.NewInt(10_000_000_000_000), // 0.00001 FIL/GiB/month
			AvailableCapacity: 64 * models.GiB,
			Plans: models.BillingSchedule{
				{ID: "monthly", PeriodSeconds: monthSeconds, Amount: big.NewInt(10_000_000_000_000)},
			},
		},
		{
			Provider:          p1,
			PeerID:            "12D3KooWFallbackProviderB",
			AvgPrice:          big.NewInt(20_000_000_000_000),
			AvailableCapacity: 256 * models.GiB,
			Plans: models.BillingSchedule{
				{ID: "monthly", PeriodSeconds: monthSeconds, Amount: big.NewInt(20_000_000_000_000)},
			},
		},
	}
}

// DirectoryService fetches storage provider offers from the marketplace
// index. When the index is unreachable or returns nothing usable it serves
// the injected fallback set and marks the listing degraded so callers can
// tell a live listing from a built-in one.
type DirectoryService struct {
	url          string
	fetchTimeout time.Duration
	cacheTTL     time.Duration
	fallback     []models.ProviderOffer
	httpClient   *http.Client
	cache        cache.Cache
	log          *logger.Logger
}

// NewDirectoryService creates a new provider directory. fallback is the
// offer set served in degraded mode; pass the built-in defaults in
// production and a controlled set in tests. cache may be nil.
func NewDirectoryService(url string, fetchTimeout, cacheTTL time.Duration, fallback []models.ProviderOffer, offerCache cache.Cache, log *logger.Logger) *DirectoryService {
	return &DirectoryService{
		url:          url,
		fetchTimeout: fetchTimeout,
		cacheTTL:     cacheTTL,
		fallback:     fallback,
		httpClient:   &http.Client{Timeout: fetchTimeout},
		cache:        offerCache,
		log:          log,
	}
}

// ListOffers returns the current offer listing. Restartable: every call
// refreshes (through the short-TTL cache) from the marketplace.
func (s *DirectoryService) ListOffers(ctx context.Context) (*models.OfferListing, error) {
	if cached := s.cachedListing(ctx); cached != nil {
		return cached, nil
	}

	offers, err := s.fetchOffers(ctx)
	if err != nil || len(offers) == 0 {
		if err != nil {
			s.log.Warn("marketplace fetch failed, serving fallback offers", "url", s.url, "error", err)
		} else {
			s.log.Warn("marketplace returned no offers, serving fallback offers", "url", s.url)
		}
		return &models.OfferListing{Offers: s.fallback, Degraded: true}, nil
	}

	listing := &models.OfferListing{Offers: offers, Degraded: false}
	s.storeListing(ctx, listing)
	return listing, nil
}

// BestOffer selects the cheapest usable offer: positive capacity, at least
// one billing plan, minimum average price. Ties keep first-seen order.
// Fails with models.ErrNoOffersAvailable only when even the fallback set
// has nothing usable.
func (s *DirectoryService) BestOffer(ctx context.Context) (*models.ProviderOffer, *models.OfferListing, error) {
	listing, err := s.ListOffers(ctx)
	if err != nil {
		return nil, nil, err
	}

	var best *models.ProviderOffer
	for i := range listing.Offers {
		offer := &listing.Offers[i]
		if offer.AvailableCapacity == 0 || len(offer.Plans) == 0 {
			continue
		}
		if best == nil || offer.AvgPrice.LessThan(best.AvgPrice) {
			best = offer
		}
	}

	if best == nil {
		return nil, nil, models.ErrNoOffersAvailable
	}

	return best, listing, nil
}

// FindOffer returns the listed offer for a specific provider
func (s *DirectoryService) FindOffer(ctx context.Context, provider string) (*models.ProviderOffer, error) {
	listing, err := s.ListOffers(ctx)
	if err != nil {
		return nil, err
	}

	for i := range listing.Offers {
		if listing.Offers[i].Provider.String() == provider {
			return &listing.Offers[i], nil
		}
	}

	return nil, models.ErrNoOffersAvailable
}

func (s *DirectoryService) fetchOffers(ctx context.Context) ([]models.ProviderOffer, error) {
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build marketplace request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("marketplace fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("marketplace returned status %d: %s", resp.StatusCode, body)
	}

	var offers []models.ProviderOffer
	if err := json.NewDecoder(resp.Body).Decode(&offers); err != nil {
		return nil, fmt.Errorf("malformed marketplace response: %w", err)
	}

	return offers, nil
}

// cachedListing returns a previously fetched live listing, or nil.
// Degraded listings are never cached: the next call retries the index.
func (s *DirectoryService) cachedListing(ctx context.Context) *models.OfferListing {
	if s.cache == nil {
		return nil
	}

	data, ok, err := s.cache.Get(ctx, offerCacheKey)
	if err != nil || !ok {
		return nil
	}

	var listing models.OfferListing
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil
	}
	return &listing
}

func (s *DirectoryService) storeListing(ctx context.Context, listing *models.OfferListing) {
	if s.cache == nil {
		return
	}

	data, err := json.Marshal(listing)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, offerCacheKey, data, s.cacheTTL); err != nil {
		s.log.Debug("failed to cache offer listing", "error", err)
	}
}
