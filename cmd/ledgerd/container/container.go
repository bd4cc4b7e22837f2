package container

import (
	"fmt"

	"github.com/attestly/ledger/cmd/ledgerd/repository"
	"github.com/attestly/ledger/cmd/ledgerd/service"
	"github.com/attestly/ledger/common/bootstrap"
	"github.com/attestly/ledger/common/ratelimit"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	// Components
	Components *bootstrap.Components

	// Repositories
	RecordRepo *repository.RecordRepository

	// Services
	EstimatorService *service.EstimatorService
	DirectoryService *service.DirectoryService
	Broker           *service.HTTPBroker
	LedgerService    *service.LedgerService

	// Rate limiting for the public query surface
	RateLimiter *ratelimit.RateLimiter
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	cfg := components.Config

	if components.Redis == nil {
		return nil, fmt.Errorf("redis is required for the ledger service")
	}

	// Initialize repositories
	recordRepo := repository.NewRecordRepository(components.DB)

	// Initialize services (bottom-up: dependencies first)
	estimator := service.NewEstimatorService()

	directory := service.NewDirectoryService(
		cfg.Marketplace.URL,
		cfg.Marketplace.FetchTimeout,
		cfg.Marketplace.CacheTTL,
		service.DefaultFallbackOffers(),
		components.Cache,
		components.Logger,
	)

	broker := service.NewHTTPBroker(cfg.Broker.Endpoint, cfg.Broker.Timeout, components.Logger)

	ledger := service.NewLedgerService(
		recordRepo,
		broker,
		components.Queue,
		cfg.Queue.RecordStream,
		cfg.Broker.PaymentToken,
		components.Logger,
	)

	rateLimiter := ratelimit.NewRateLimiter(components.Redis.GetUnderlying(), components.Logger)

	return &Container{
		Components:       components,
		RecordRepo:       recordRepo,
		EstimatorService: estimator,
		DirectoryService: directory,
		Broker:           broker,
		LedgerService:    ledger,
		RateLimiter:      rateLimiter,
	}, nil
}
