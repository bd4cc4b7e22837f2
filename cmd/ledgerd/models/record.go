package models

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/attestly/ledger/common/contentkey"
	"github.com/filecoin-project/go-address"
)

// RecordID is the hash-derived key under which a record is stored.
type RecordID [32]byte

// AgreementID is the opaque handle returned by the agreement broker.
// The ledger never parses it.
type AgreementID [32]byte

// Record is the ledger's immutable proof-of-agreement entry.
// Records are created exactly once and never mutated or removed.
// Maps to: storage_record table
type Record struct {
	ContentKey  contentkey.Key  `db:"content_key" json:"content_key"`
	AgreementID AgreementID     `db:"agreement_id" json:"agreement_id"`
	Uploader    address.Address `db:"uploader" json:"uploader"`

	// Ledger-assigned, monotonic with ledger progression.
	// Not trusted as wall-clock time.
	CreatedAt int64 `db:"created_at" json:"created_at"`

	// Free-form classification, not validated against an enum.
	Category  string `db:"category" json:"category"`
	SizeBytes uint64 `db:"size_bytes" json:"size_bytes"`

	// Set true at creation. No transition clears it.
	Pinned bool `db:"pinned" json:"pinned"`
}

// DeriveRecordID computes the record key from the fields that identify a
// placement: sha256(contentKey || uploader || createdAt).
func DeriveRecordID(key contentkey.Key, uploader address.Address, createdAt int64) RecordID {
	h := sha256.New()
	h.Write(key[:])
	h.Write(uploader.Bytes())

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(createdAt))
	h.Write(ts[:])

	var id RecordID
	copy(id[:], h.Sum(nil))
	return id
}

// ID returns the derived record id for r.
func (r *Record) ID() RecordID {
	return DeriveRecordID(r.ContentKey, r.Uploader, r.CreatedAt)
}

func (id RecordID) String() string {
	return hex.EncodeToString(id[:])
}

// ParseRecordID decodes a hex-encoded record id.
func ParseRecordID(s string) (RecordID, error) {
	var id RecordID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid record id: %w", err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("invalid record id length: %d", len(b))
	}
	copy(id[:], b)
	return id, nil
}

func (id RecordID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

func (id *RecordID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRecordID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (a AgreementID) String() string {
	return hex.EncodeToString(a[:])
}

// ParseAgreementID decodes a hex-encoded agreement id as returned by the
// broker boundary.
func ParseAgreementID(s string) (AgreementID, error) {
	var a AgreementID
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("invalid agreement id: %w", err)
	}
	if len(b) != len(a) {
		return a, fmt.Errorf("invalid agreement id length: %d", len(b))
	}
	copy(a[:], b)
	return a, nil
}

func (a AgreementID) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *AgreementID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAgreementID(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// RecordCreated is the notification emitted once a record has been
// persisted. It is published to the record stream and consumed by
// downstream verifiers.
type RecordCreated struct {
	RecordID    RecordID        `json:"record_id"`
	ContentKey  contentkey.Key  `json:"content_key"`
	AgreementID AgreementID     `json:"agreement_id"`
	Uploader    address.Address `json:"uploader"`
	Category    string          `json:"category"`
}
