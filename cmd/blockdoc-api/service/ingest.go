package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/blockdoc/blockdoc/common/bootstrap"
	"github.com/blockdoc/blockdoc/common/hash"
	"github.com/blockdoc/blockdoc/common/models"
	"github.com/blockdoc/blockdoc/common/queue"
	"github.com/blockdoc/blockdoc/common/repository"
	"github.com/blockdoc/blockdoc/common/storage"
	"github.com/blockdoc/blockdoc/common/validation"
)

// ErrDuplicate is returned when the submitted content is already registered.
// The existing record travels alongside so callers can point at it.
var ErrDuplicate = errors.New("document already submitted")

// DuplicateError carries the pre-existing record for a duplicate submission
type DuplicateError struct {
	Existing *models.Document
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("document already submitted as %s", e.Existing.ID)
}

func (e *DuplicateError) Unwrap() error {
	return ErrDuplicate
}

// IngestService turns an uploaded file into a pending document record with a
// queued registration job
type IngestService struct {
	documents  *repository.DocumentRepository
	store      *storage.Store
	validator  *validation.UploadValidator
	hasher     *hash.Computer
	queue      *queue.Queue
	components *bootstrap.Components
}

// IngestOpts contains options for creating an IngestService
type IngestOpts struct {
	Documents  *repository.DocumentRepository
	Store      *storage.Store
	Validator  *validation.UploadValidator
	Hasher     *hash.Computer
	Queue      *queue.Queue
	Components *bootstrap.Components
}

// NewIngestService creates a new ingest service
func NewIngestService(opts *IngestOpts) *IngestService {
	return &IngestService{
		documents:  opts.Documents,
		store:      opts.Store,
		validator:  opts.Validator,
		hasher:     opts.Hasher,
		queue:      opts.Queue,
		components: opts.Components,
	}
}

// Submit validates, hashes, stores and records the uploaded file, then queues
// the registration job. Duplicate content is rejected before any chain
// interaction, returning the existing record via DuplicateError.
func (s *IngestService) Submit(ctx context.Context, file io.ReadSeeker, filename string, size int64) (*models.Document, error) {
	log := s.components.Logger

	if err := s.validator.Validate(file, filename, size); err != nil {
		return nil, err
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind upload: %w", err)
	}

	contentHash, err := s.hasher.SumHex(file)
	if err != nil {
		return nil, fmt.Errorf("hash upload: %w", err)
	}

	// Dedup before touching storage or the chain
	if existing, err := s.documents.GetByHash(ctx, contentHash); err == nil {
		log.Info("duplicate submission rejected", "content_hash", contentHash, "existing_id", existing.ID)
		return nil, &DuplicateError{Existing: existing}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("check for existing document: %w", err)
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind upload: %w", err)
	}

	path, storedSize, err := s.store.Save(file, filename)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	doc := &models.Document{
		ID:          uuid.New(),
		Filename:    filename,
		Path:        path,
		Size:        storedSize,
		ContentHash: contentHash,
		ChainStatus: models.ChainStatusPending,
	}

	if err := s.documents.Create(ctx, doc); err != nil {
		// Lost a create race: another request persisted the same hash first
		if cerr := s.store.Remove(path); cerr != nil {
			log.Warn("failed to remove orphaned file", "path", path, "error", cerr)
		}
		if errors.Is(err, repository.ErrDuplicateHash) {
			existing, gerr := s.documents.GetByHash(ctx, contentHash)
			if gerr != nil {
				return nil, fmt.Errorf("load existing document: %w", gerr)
			}
			return nil, &DuplicateError{Existing: existing}
		}
		return nil, err
	}

	if err := s.queue.Enqueue(ctx, doc.ID.String()); err != nil {
		// The record exists; an operator can re-queue it via the admin path
		log.Error("failed to enqueue registration", "document_id", doc.ID, "error", err)
		return doc, fmt.Errorf("enqueue registration: %w", err)
	}

	log.Info("document submitted",
		"document_id", doc.ID,
		"filename", filename,
		"size", storedSize,
		"content_hash", contentHash,
	)
	return doc, nil
}
