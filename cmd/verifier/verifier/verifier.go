package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/attestly/ledger/cmd/ledgerd/models"
	"github.com/attestly/ledger/common/clients"
	"github.com/attestly/ledger/common/logger"
	"github.com/attestly/ledger/common/queue"
)

// Verifier consumes RecordCreated notifications and independently checks
// each one against the ledger's public query surface: the record must be
// fetchable, its derived id must match its contents, and the event fields
// must match the stored record. Anyone can run one; it needs no database
// access and no trust in the notification itself.
type Verifier struct {
	queue  queue.Queue
	ledger *clients.LedgerClient
	stream string
	log    *logger.Logger

	verified   atomic.Int64
	mismatches atomic.Int64
}

// New creates a verifier consuming the given record stream
func New(q queue.Queue, ledger *clients.LedgerClient, stream string, log *logger.Logger) *Verifier {
	return &Verifier{
		queue:  q,
		ledger: ledger,
		stream: stream,
		log:    log,
	}
}

// Start subscribes to the record stream. Returns once the subscription is
// established; consumption runs until ctx is cancelled.
func (v *Verifier) Start(ctx context.Context) error {
	return v.queue.Subscribe(ctx, v.stream, v.handleEvent)
}

// Stats returns how many records have been verified and how many failed
func (v *Verifier) Stats() (verified, mismatches int64) {
	return v.verified.Load(), v.mismatches.Load()
}

func (v *Verifier) handleEvent(ctx context.Context, key string, payload []byte) error {
	var event models.RecordCreated
	if err := json.Unmarshal(payload, &event); err != nil {
		v.log.Error("invalid record event", "key", key, "error", err)
		return nil // Malformed events are not retryable
	}

	if err := v.verify(ctx, &event); err != nil {
		v.mismatches.Add(1)
		v.log.Error("record verification failed",
			"record_id", event.RecordID.String(),
			"uploader", event.Uploader.String(),
			"error", err,
		)
		return nil
	}

	v.verified.Add(1)
	v.log.Info("record verified",
		"record_id", event.RecordID.String(),
		"uploader", event.Uploader.String(),
		"total_verified", v.verified.Load(),
	)
	return nil
}

// verify fetches the record and checks the event against it
func (v *Verifier) verify(ctx context.Context, event *models.RecordCreated) error {
	record, err := v.ledger.GetRecord(ctx, event.RecordID)
	if errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("announced record does not exist")
	}
	if err != nil {
		return fmt.Errorf("failed to fetch record: %w", err)
	}

	// The id must be derivable from the record's own contents
	derived := models.DeriveRecordID(record.ContentKey, record.Uploader, record.CreatedAt)
	if derived != event.RecordID {
		return fmt.Errorf("record id does not match contents: derived %s", derived)
	}

	if record.ContentKey != event.ContentKey {
		return fmt.Errorf("content key mismatch: stored %s", record.ContentKey)
	}
	if record.AgreementID != event.AgreementID {
		return fmt.Errorf("agreement id mismatch: stored %s", record.AgreementID)
	}
	if record.Uploader != event.Uploader {
		return fmt.Errorf("uploader mismatch: stored %s", record.Uploader)
	}
	if record.Category != event.Category {
		return fmt.Errorf("category mismatch: stored %q", record.Category)
	}

	return nil
}
