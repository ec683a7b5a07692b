package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/blockdoc/blockdoc/common/anchor"
	"github.com/blockdoc/blockdoc/common/logger"
	"github.com/blockdoc/blockdoc/common/models"
	"github.com/blockdoc/blockdoc/common/queue"
	"github.com/blockdoc/blockdoc/common/redis"
	"github.com/blockdoc/blockdoc/common/repository"
	"github.com/blockdoc/blockdoc/common/server"
)

// registerLockTTL caps how long a crashed worker can hold a document's
// registration lock. Must outlive one full attempt: broadcast plus the
// confirmation poll burst.
const registerLockTTL = 2 * time.Minute

// documentStore is the slice of the repository the job handler needs
type documentStore interface {
	ClaimForUpdate(ctx context.Context, id uuid.UUID) (*models.Document, error)
	SetFailed(ctx context.Context, id uuid.UUID, reason string) error
}

type registrar interface {
	Register(ctx context.Context, doc *models.Document, attempt int) error
}

type locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// Worker drives blockchain registration: it consumes queued documents,
// submits their transactions and sweeps pending transactions for
// confirmations.
type Worker struct {
	queue         *queue.Queue
	documents     documentStore
	registrar     registrar
	poller        *anchor.Poller
	locks         locker
	log           *logger.Logger
	sweepInterval time.Duration
	healthPort    int
}

// Opts configures a Worker
type Opts struct {
	Queue         *queue.Queue
	Documents     *repository.DocumentRepository
	Registrar     *anchor.Registrar
	Poller        *anchor.Poller
	Locks         *redis.Client
	Logger        *logger.Logger
	SweepInterval time.Duration
	HealthPort    int
}

// New creates a new anchor worker
func New(opts *Opts) *Worker {
	w := &Worker{
		queue:         opts.Queue,
		documents:     opts.Documents,
		registrar:     opts.Registrar,
		poller:        opts.Poller,
		locks:         opts.Locks,
		log:           opts.Logger,
		sweepInterval: opts.SweepInterval,
		healthPort:    opts.HealthPort,
	}
	w.queue.OnExhausted(w.markExhausted)
	return w
}

// Run blocks until the context is cancelled or a component fails. It runs the
// queue consumer, the confirmation sweep and a health endpoint side by side.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := w.queue.Consume(ctx, w.handleJob)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		return w.runSweep(ctx)
	})

	g.Go(func() error {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", server.HealthHandler())
		return server.New("anchor-worker health", w.healthPort, mux, w.log).Run(ctx)
	})

	return g.Wait()
}

// handleJob registers one document. The job only carries the document id;
// current state is re-read from the database on every attempt.
func (w *Worker) handleJob(ctx context.Context, job *queue.Job) error {
	id, err := uuid.Parse(job.DocumentID)
	if err != nil {
		w.log.Error("job carries malformed document id", "job_id", job.ID, "document_id", job.DocumentID)
		return queue.ErrDrop
	}

	// One registration attempt per document at a time, across all workers.
	// Two concurrent attempts for the same record would both pass the
	// no-transaction check and burn two nonces on one digest.
	lockKey := "register:lock:" + job.DocumentID
	locked, err := w.locks.AcquireLock(ctx, lockKey, registerLockTTL)
	if err != nil {
		return fmt.Errorf("acquire registration lock %s: %w", id, err)
	}
	if !locked {
		return fmt.Errorf("document %s locked by another worker", id)
	}
	defer func() {
		if err := w.locks.ReleaseLock(context.WithoutCancel(ctx), lockKey); err != nil {
			w.log.Error("failed to release registration lock", "document_id", id, "error", err)
		}
	}()

	doc, err := w.documents.ClaimForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			w.log.Warn("queued document no longer exists", "document_id", id)
			return queue.ErrDrop
		}
		return fmt.Errorf("load document %s: %w", id, err)
	}

	err = w.registrar.Register(ctx, doc, job.Attempt)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, anchor.ErrPermanentFailure):
		w.log.WithDocumentID(id.String()).Error("registration failed permanently", "error", err)
		return queue.ErrDrop
	case errors.Is(err, anchor.ErrAwaitingConfirmation):
		w.log.WithDocumentID(id.String()).Info("registration awaiting confirmation", "attempt", job.Attempt)
		return err
	default:
		return err
	}
}

// markExhausted transitions a record to failed once its retry budget is spent
// on transient errors. A record still waiting on a broadcast transaction is
// left pending: the confirmation sweep keeps polling it.
func (w *Worker) markExhausted(ctx context.Context, job *queue.Job, cause error) {
	if errors.Is(cause, anchor.ErrAwaitingConfirmation) {
		w.log.Warn("retry budget spent awaiting confirmation, sweep takes over",
			"document_id", job.DocumentID, "attempts", job.Attempt)
		return
	}

	id, err := uuid.Parse(job.DocumentID)
	if err != nil {
		return
	}

	reason := fmt.Sprintf("registration attempts exhausted after %d tries: %v", job.Attempt, cause)
	if err := w.documents.SetFailed(context.WithoutCancel(ctx), id, reason); err != nil {
		w.log.Error("failed to mark exhausted document", "document_id", id, "error", err)
		return
	}
	w.log.WithDocumentID(id.String()).Error("registration abandoned", "attempts", job.Attempt, "error", cause)
}

// runSweep periodically re-checks all pending documents that already have a
// transaction, so confirmations are picked up even when the submit-time poll
// burst missed them.
func (w *Worker) runSweep(ctx context.Context) error {
	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.poller.Sweep(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				w.log.Error("confirmation sweep failed", "error", err)
			}
		}
	}
}
