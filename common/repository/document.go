package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/blockdoc/blockdoc/common/db"
	"github.com/blockdoc/blockdoc/common/models"
)

var (
	// ErrNotFound is returned when no document matches the lookup
	ErrNotFound = errors.New("document not found")

	// ErrDuplicateHash is returned when a document with the same content hash
	// already exists
	ErrDuplicateHash = errors.New("document with this content hash already exists")
)

const documentColumns = `
	id, filename, path, size, content_hash, chain_status,
	transaction_hash, superseded_tx_hash, confirmed_at, last_error,
	created_at, updated_at
`

// DocumentRepository handles database operations for documents
type DocumentRepository struct {
	db *db.DB
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(database *db.DB) *DocumentRepository {
	return &DocumentRepository{db: database}
}

// Create inserts a new document record. The content_hash unique constraint
// enforces the one-record-per-hash invariant; violations map to ErrDuplicateHash.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO document (id, filename, path, size, content_hash, chain_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	_, err := r.db.Exec(
		ctx,
		query,
		doc.ID,
		doc.Filename,
		doc.Path,
		doc.Size,
		doc.ContentHash,
		doc.ChainStatus,
		doc.CreatedAt,
		doc.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		// 23505: unique_violation
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateHash
		}
		return fmt.Errorf("failed to create document: %w", err)
	}

	return nil
}

// GetByID retrieves a document by its ID
func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM document WHERE id = $1`
	return r.queryOne(ctx, query, id)
}

// GetByIDForUpdate retrieves a document inside the given transaction with a
// row lock, serializing concurrent registration attempts on the same record
func (r *DocumentRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM document WHERE id = $1 FOR UPDATE`

	doc := &models.Document{}
	err := scanDocument(tx.QueryRow(ctx, query, id), doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document for update: %w", err)
	}
	return doc, nil
}

// ClaimForUpdate re-reads the row under a short-lived row lock, so the caller
// starts from a snapshot no concurrent writer is mid-update on. The row lock
// is released before returning: callers that go on to broadcast must hold the
// per-document registration lock for the whole attempt, and the writes below
// stay status-guarded.
func (r *DocumentRepository) ClaimForUpdate(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	doc, err := r.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim transaction: %w", err)
	}
	return doc, nil
}

// GetByHash retrieves a document by its content hash
func (r *DocumentRepository) GetByHash(ctx context.Context, contentHash string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM document WHERE content_hash = $1`
	return r.queryOne(ctx, query, contentHash)
}

// List retrieves documents ordered by creation time, newest first
func (r *DocumentRepository) List(ctx context.Context, limit int) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM document ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

// ListPendingWithTransaction retrieves pending documents that have a broadcast
// transaction awaiting confirmation
func (r *DocumentRepository) ListPendingWithTransaction(ctx context.Context) ([]*models.Document, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM document
		WHERE chain_status = $1 AND transaction_hash IS NOT NULL
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, models.ChainStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending documents: %w", err)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

// CountByStatus returns the number of documents in the given status
func (r *DocumentRepository) CountByStatus(ctx context.Context, status models.ChainStatus) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM document WHERE chain_status = $1`, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// SetTransaction records the broadcast transaction hash, leaving the record pending
func (r *DocumentRepository) SetTransaction(ctx context.Context, id uuid.UUID, txHash string) error {
	query := `
		UPDATE document
		SET transaction_hash = $2, updated_at = $3
		WHERE id = $1
	`
	return r.exec(ctx, query, id, txHash, time.Now().UTC())
}

// ClearTransaction abandons the current transaction so a replacement can be
// broadcast. The abandoned hash is kept in superseded_tx_hash.
func (r *DocumentRepository) ClearTransaction(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE document
		SET superseded_tx_hash = transaction_hash, transaction_hash = NULL, updated_at = $2
		WHERE id = $1 AND chain_status = $3
	`
	return r.exec(ctx, query, id, time.Now().UTC(), models.ChainStatusPending)
}

// SetConfirmed transitions a record to confirmed. The status guard keeps the
// transition monotonic: a confirmed record is never touched again.
func (r *DocumentRepository) SetConfirmed(ctx context.Context, id uuid.UUID, confirmedAt time.Time) error {
	query := `
		UPDATE document
		SET chain_status = $2, confirmed_at = $3, last_error = NULL, updated_at = $4
		WHERE id = $1 AND chain_status = $5
	`
	return r.exec(ctx, query, id, models.ChainStatusConfirmed, confirmedAt.UTC(), time.Now().UTC(), models.ChainStatusPending)
}

// SetFailed transitions a record to failed with a diagnostic. Confirmed
// records are never demoted.
func (r *DocumentRepository) SetFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE document
		SET chain_status = $2, last_error = $3, updated_at = $4
		WHERE id = $1 AND chain_status <> $5
	`
	return r.exec(ctx, query, id, models.ChainStatusFailed, reason, time.Now().UTC(), models.ChainStatusConfirmed)
}

// SetLastError records a per-attempt diagnostic without changing status
func (r *DocumentRepository) SetLastError(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE document
		SET last_error = $2, updated_at = $3
		WHERE id = $1
	`
	return r.exec(ctx, query, id, reason, time.Now().UTC())
}

// ResetToPending returns a failed record to pending for an operator-triggered
// re-registration. The current transaction hash, if any, is superseded.
func (r *DocumentRepository) ResetToPending(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE document
		SET chain_status = $2,
		    superseded_tx_hash = COALESCE(transaction_hash, superseded_tx_hash),
		    transaction_hash = NULL,
		    last_error = NULL,
		    updated_at = $3
		WHERE id = $1 AND chain_status <> $4
	`
	return r.exec(ctx, query, id, models.ChainStatusPending, time.Now().UTC(), models.ChainStatusConfirmed)
}

func (r *DocumentRepository) exec(ctx context.Context, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *DocumentRepository) queryOne(ctx context.Context, query string, arg any) (*models.Document, error) {
	doc := &models.Document{}
	err := scanDocument(r.db.QueryRow(ctx, query, arg), doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

func scanDocument(row pgx.Row, doc *models.Document) error {
	return row.Scan(
		&doc.ID,
		&doc.Filename,
		&doc.Path,
		&doc.Size,
		&doc.ContentHash,
		&doc.ChainStatus,
		&doc.TransactionHash,
		&doc.SupersededTxHash,
		&doc.ConfirmedAt,
		&doc.LastError,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
}

func collectDocuments(rows pgx.Rows) ([]*models.Document, error) {
	var docs []*models.Document
	for rows.Next() {
		doc := &models.Document{}
		if err := scanDocument(rows, doc); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}
	return docs, nil
}
