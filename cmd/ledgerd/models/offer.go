package models

import (
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/big"
)

// GiB is the pricing unit size for provider offers.
const GiB = uint64(1 << 30)

// BillingPlan is one (period, price) tier of a provider offer. Prices are
// fixed-point integers in the provider's native value unit.
type BillingPlan struct {
	ID            string  `json:"id"`
	PeriodSeconds uint64  `json:"periodSeconds"`
	Amount        big.Int `json:"amount"`
}

// BillingSchedule is an ordered sequence of billing plans. Index 0 is the
// primary tier. The broker requires at least one entry.
type BillingSchedule []BillingPlan

// Periods returns the period lengths in schedule order.
func (s BillingSchedule) Periods() []uint64 {
	out := make([]uint64, len(s))
	for i, p := range s {
		out[i] = p.PeriodSeconds
	}
	return out
}

// Prices returns the plan amounts in schedule order.
func (s BillingSchedule) Prices() []big.Int {
	out := make([]big.Int, len(s))
	for i, p := range s {
		out[i] = p.Amount
	}
	return out
}

// ProviderOffer is one marketplace listing: a provider, its average price
// per GiB per month, remaining capacity and billing plans.
type ProviderOffer struct {
	Provider          address.Address `json:"provider"`
	PeerID            string          `json:"peerId"`
	AvgPrice          big.Int         `json:"avgPrice"`
	AvailableCapacity uint64          `json:"availableCapacity"`
	Plans             BillingSchedule `json:"plans"`
}

// OfferListing is the result of a directory fetch. Degraded marks listings
// served from the built-in fallback set because the live marketplace was
// unreachable or returned nothing usable.
type OfferListing struct {
	Offers   []ProviderOffer `json:"offers"`
	Degraded bool            `json:"degraded"`
}

// Quote is a billing estimate for placing SizeBytes under an offer's
// primary plan for a number of months.
type Quote struct {
	Plan           BillingPlan `json:"plan"`
	SizeBytes      uint64      `json:"size_bytes"`
	DurationMonths uint64      `json:"duration_months"`
	Monthly        big.Int     `json:"monthly"`
	Total          big.Int     `json:"total"`
}
