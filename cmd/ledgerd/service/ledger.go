package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/attestly/ledger/cmd/ledgerd/models"
	"github.com/attestly/ledger/common/contentkey"
	"github.com/attestly/ledger/common/logger"
	"github.com/attestly/ledger/common/queue"
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/big"
)

// RecordStore is the persistence boundary for the ledger. The production
// implementation is repository.RecordRepository.
type RecordStore interface {
	Insert(ctx context.Context, id models.RecordID, record *models.Record) error
	Get(ctx context.Context, id models.RecordID) (*models.Record, error)
	ListIDs(ctx context.Context) ([]models.RecordID, error)
	MaxCreatedAt(ctx context.Context) (int64, error)
}

// CreateRecordParams is the input to CreateRecord
type CreateRecordParams struct {
	ContentKey contentkey.Key
	Provider   address.Address
	SizeBytes  uint64
	Schedule   models.BillingSchedule
	Category   string
	Uploader   address.Address
	Value      big.Int
}

// LedgerService owns all persisted storage-record state: it derives record
// ids, stores records, maintains the creation-order index and emits the
// RecordCreated notification. Writes are serialized so each CreateRecord
// is atomic relative to every other ledger operation.
type LedgerService struct {
	store        RecordStore
	broker       AgreementBroker
	queue        queue.Queue
	recordStream string
	paymentToken string
	log          *logger.Logger

	mu     sync.Mutex
	lastTS int64
	seeded bool
}

// NewLedgerService creates the ledger
func NewLedgerService(store RecordStore, broker AgreementBroker, q queue.Queue, recordStream, paymentToken string, log *logger.Logger) *LedgerService {
	return &LedgerService{
		store:        store,
		broker:       broker,
		queue:        q,
		recordStream: recordStream,
		paymentToken: paymentToken,
		log:          log,
	}
}

// CreateRecord brokers a billed storage agreement and persists the
// immutable proof-of-agreement record. Either the agreement is created and
// the record persisted and indexed, or neither happens: the broker call
// runs first and any failure aborts before any state is touched.
//
// Retries are the caller's responsibility and get a fresh timestamp; a
// derived-id collision fails with models.ErrDuplicateRecord rather than
// overwriting.
func (s *LedgerService) CreateRecord(ctx context.Context, params CreateRecordParams) (models.RecordID, error) {
	var id models.RecordID

	if params.Uploader == address.Undef {
		return id, fmt.Errorf("uploader identity is required")
	}
	if len(params.Schedule) == 0 {
		return id, fmt.Errorf("%w: empty billing schedule", models.ErrAgreementRejected)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Broker first. Once submitted we wait for a definitive outcome; a
	// rejection leaves the ledger untouched.
	agreementID, err := s.broker.CreateAgreement(ctx, AgreementParams{
		ContentKey:   params.ContentKey,
		Provider:     params.Provider,
		SizeBytes:    params.SizeBytes,
		Schedule:     params.Schedule,
		PaymentToken: s.paymentToken,
		Value:        params.Value,
	})
	if err != nil {
		return id, fmt.Errorf("failed to create agreement: %w", err)
	}

	createdAt, err := s.nextTimestamp(ctx)
	if err != nil {
		return id, err
	}

	record := &models.Record{
		ContentKey:  params.ContentKey,
		AgreementID: agreementID,
		Uploader:    params.Uploader,
		CreatedAt:   createdAt,
		Category:    params.Category,
		SizeBytes:   params.SizeBytes,
		Pinned:      true,
	}
	id = record.ID()

	if err := s.store.Insert(ctx, id, record); err != nil {
		return models.RecordID{}, err
	}
	s.lastTS = createdAt

	s.publishCreated(ctx, id, record)

	s.log.Info("record created",
		"record_id", id.String(),
		"provider", params.Provider.String(),
		"uploader", params.Uploader.String(),
		"size_bytes", params.SizeBytes,
		"category", params.Category,
	)

	return id, nil
}

// GetRecord retrieves a record by id. models.ErrNotFound when absent.
func (s *LedgerService) GetRecord(ctx context.Context, id models.RecordID) (*models.Record, error) {
	return s.store.Get(ctx, id)
}

// ListRecordIDs returns the full creation-order index.
func (s *LedgerService) ListRecordIDs(ctx context.Context) ([]models.RecordID, error) {
	return s.store.ListIDs(ctx)
}

// nextTimestamp assigns a ledger timestamp that never repeats or moves
// backwards, even when the wall clock does. Seeded from the store once so
// restarts keep progressing.
func (s *LedgerService) nextTimestamp(ctx context.Context) (int64, error) {
	if !s.seeded {
		max, err := s.store.MaxCreatedAt(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to seed ledger clock: %w", err)
		}
		s.lastTS = max
		s.seeded = true
	}

	ts := time.Now().Unix()
	if ts <= s.lastTS {
		ts = s.lastTS + 1
	}
	return ts, nil
}

// publishCreated emits the RecordCreated notification. The record is
// already durable at this point; a publish failure is logged, not rolled
// back, and the verifier catches up from the query surface.
func (s *LedgerService) publishCreated(ctx context.Context, id models.RecordID, record *models.Record) {
	event := models.RecordCreated{
		RecordID:    id,
		ContentKey:  record.ContentKey,
		AgreementID: record.AgreementID,
		Uploader:    record.Uploader,
		Category:    record.Category,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.log.Error("failed to encode record created event", "record_id", id.String(), "error", err)
		return
	}

	if err := s.queue.Publish(ctx, s.recordStream, id.String(), payload); err != nil {
		s.log.Error("failed to publish record created event", "record_id", id.String(), "error", err)
	}
}
