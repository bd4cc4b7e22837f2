package service

import (
	"fmt"

	"github.com/attestly/ledger/cmd/ledgerd/models"
	"github.com/filecoin-project/go-state-types/big"
)

// EstimatorService computes billing quotes from provider offers.
// Pure computation, no I/O.
type EstimatorService struct{}

// NewEstimatorService creates a new estimator
func NewEstimatorService() *EstimatorService {
	return &EstimatorService{}
}

// Estimate quotes the cost of placing sizeBytes under offer's primary plan
// for durationMonths. It always uses plan index 0 and does not search the
// offer for a cheaper tier. durationMonths of 0 is treated as 1.
//
// monthly = planPrice * sizeBytes / GiB, computed multiply-first so sizes
// under one pricing unit still bill proportionally.
func (s *EstimatorService) Estimate(offer *models.ProviderOffer, sizeBytes uint64, durationMonths uint64) (*models.Quote, error) {
	if len(offer.Plans) == 0 {
		return nil, fmt.Errorf("provider %s: %w", offer.Provider, models.ErrInvalidOffer)
	}
	if durationMonths == 0 {
		durationMonths = 1
	}

	plan := offer.Plans[0]

	monthly := big.Div(
		big.Mul(plan.Amount, big.NewIntUnsigned(sizeBytes)),
		big.NewIntUnsigned(models.GiB),
	)
	total := big.Mul(monthly, big.NewIntUnsigned(durationMonths))

	return &models.Quote{
		Plan:           plan,
		SizeBytes:      sizeBytes,
		DurationMonths: durationMonths,
		Monthly:        monthly,
		Total:          total,
	}, nil
}
