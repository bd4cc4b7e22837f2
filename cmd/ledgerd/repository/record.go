package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/attestly/ledger/cmd/ledgerd/models"
	"github.com/attestly/ledger/common/db"
	"github.com/filecoin-project/go-address"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed schema.sql
var schema string

// InitSchema applies the ledger schema. Safe to run on every startup.
func InitSchema(database *db.DB) error {
	if _, err := database.Exec(context.Background(), schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// RecordRepository handles database operations for storage records.
// Records are insert-only: no update or delete method exists.
type RecordRepository struct {
	db *db.DB
}

// NewRecordRepository creates a new record repository
func NewRecordRepository(db *db.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Insert stores a new record under its derived id. A single row insert is
// atomic; the seq column appends the id to the creation-order index in the
// same statement. Returns models.ErrDuplicateRecord on id collision.
func (r *RecordRepository) Insert(ctx context.Context, id models.RecordID, record *models.Record) error {
	query := `
		INSERT INTO storage_record (record_id, content_key, agreement_id, uploader, created_at, category, size_bytes, pinned)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Exec(ctx, query,
		id[:],
		record.ContentKey[:],
		record.AgreementID[:],
		record.Uploader.String(),
		record.CreatedAt,
		record.Category,
		int64(record.SizeBytes),
		record.Pinned,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.ErrDuplicateRecord
		}
		return fmt.Errorf("failed to insert record: %w", err)
	}

	return nil
}

// Get retrieves a record by id. Returns models.ErrNotFound when absent.
func (r *RecordRepository) Get(ctx context.Context, id models.RecordID) (*models.Record, error) {
	query := `
		SELECT content_key, agreement_id, uploader, created_at, category, size_bytes, pinned
		FROM storage_record
		WHERE record_id = $1
	`

	var (
		contentKeyBytes  []byte
		agreementIDBytes []byte
		uploaderStr      string
		sizeBytes        int64
		record           models.Record
	)
	err := r.db.QueryRow(ctx, query, id[:]).Scan(
		&contentKeyBytes,
		&agreementIDBytes,
		&uploaderStr,
		&record.CreatedAt,
		&record.Category,
		&sizeBytes,
		&record.Pinned,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	copy(record.ContentKey[:], contentKeyBytes)
	copy(record.AgreementID[:], agreementIDBytes)
	record.SizeBytes = uint64(sizeBytes)

	uploader, err := address.NewFromString(uploaderStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored uploader: %w", err)
	}
	record.Uploader = uploader

	return &record, nil
}

// ListIDs returns every record id in creation order
func (r *RecordRepository) ListIDs(ctx context.Context) ([]models.RecordID, error) {
	query := `
		SELECT record_id
		FROM storage_record
		ORDER BY seq ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list record ids: %w", err)
	}
	defer rows.Close()

	var ids []models.RecordID
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan record id: %w", err)
		}
		var id models.RecordID
		copy(id[:], raw)
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating record ids: %w", err)
	}

	return ids, nil
}

// MaxCreatedAt returns the highest assigned record timestamp, or 0 when the
// ledger is empty. Used to re-seed the monotonic clock after a restart.
func (r *RecordRepository) MaxCreatedAt(ctx context.Context) (int64, error) {
	query := `SELECT COALESCE(MAX(created_at), 0) FROM storage_record`

	var max int64
	if err := r.db.QueryRow(ctx, query).Scan(&max); err != nil {
		return 0, fmt.Errorf("failed to get max created_at: %w", err)
	}

	return max, nil
}

// Count returns the number of persisted records
func (r *RecordRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM storage_record`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}
