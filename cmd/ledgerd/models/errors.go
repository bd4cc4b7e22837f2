package models

import "errors"

// Error taxonomy for ledger operations. Callers match with errors.Is.
var (
	// ErrInvalidOffer reports an offer with no billing plans.
	ErrInvalidOffer = errors.New("offer has no billing plans")

	// ErrNoOffersAvailable reports that neither the marketplace nor the
	// fallback set produced a usable offer.
	ErrNoOffersAvailable = errors.New("no storage offers available")

	// ErrAgreementRejected reports that the broker declined the agreement
	// (bad payment, unknown provider, invalid schedule). The record-creation
	// attempt aborts with no state change.
	ErrAgreementRejected = errors.New("storage agreement rejected")

	// ErrNotFound is the normal outcome of querying an unknown record id.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateRecord reports a derived-id collision. The existing record
	// is never overwritten.
	ErrDuplicateRecord = errors.New("duplicate record")
)
