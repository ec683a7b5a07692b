package anchor

import (
	"context"
	"fmt"
	"time"

	"github.com/blockdoc/blockdoc/common/logger"
	"github.com/blockdoc/blockdoc/common/models"
)

// Poller advances pending records by re-querying their transaction receipts.
// Checking redundantly is always safe: a record only moves forward.
type Poller struct {
	rpc   RPC
	store Store
	log   *logger.Logger

	// Best-effort synchronous burst after a broadcast
	pollCount int
	pollDelay time.Duration

	// Records pending longer than this raise a warning but are never
	// auto-failed; congested chains can legitimately take this long
	stalePendingAfter time.Duration
}

// PollerOpts contains options for creating a Poller
type PollerOpts struct {
	RPC               RPC
	Store             Store
	Logger            *logger.Logger
	PollCount         int
	PollDelay         time.Duration
	StalePendingAfter time.Duration
}

// NewPoller creates a confirmation poller
func NewPoller(opts *PollerOpts) *Poller {
	return &Poller{
		rpc:               opts.RPC,
		store:             opts.Store,
		log:               opts.Logger,
		pollCount:         opts.PollCount,
		pollDelay:         opts.PollDelay,
		stalePendingAfter: opts.StalePendingAfter,
	}
}

// CheckConfirmation fetches the receipt for the record's transaction and
// advances the record. Returns true once the record is confirmed. A missing
// receipt means not yet mined: no mutation, false.
func (p *Poller) CheckConfirmation(ctx context.Context, doc *models.Document) (bool, error) {
	if !doc.HasTransaction() {
		return false, nil
	}

	txHash := *doc.TransactionHash
	receipt, err := p.rpc.TransactionReceipt(ctx, txHash)
	if err != nil {
		return false, fmt.Errorf("fetch receipt for %s: %w", txHash, err)
	}

	if receipt == nil {
		if p.stalePendingAfter > 0 && time.Since(doc.CreatedAt) > p.stalePendingAfter {
			p.log.Warn("transaction pending beyond threshold",
				"document_id", doc.ID,
				"tx_hash", txHash,
				"pending_for", time.Since(doc.CreatedAt).Round(time.Minute),
			)
		}
		return false, nil
	}

	if receipt.Succeeded() {
		confirmedAt := time.Now().UTC()
		if err := p.store.SetConfirmed(ctx, doc.ID, confirmedAt); err != nil {
			return false, fmt.Errorf("mark document confirmed: %w", err)
		}
		doc.ChainStatus = models.ChainStatusConfirmed
		doc.ConfirmedAt = &confirmedAt

		p.log.Info("document confirmed on chain",
			"document_id", doc.ID,
			"tx_hash", txHash,
			"block", receipt.BlockNumber,
		)
		return true, nil
	}

	reason := fmt.Sprintf("transaction %s reverted on chain (status %d)", txHash, receipt.Status)
	if err := p.store.SetFailed(ctx, doc.ID, reason); err != nil {
		return false, fmt.Errorf("mark document failed: %w", err)
	}
	doc.ChainStatus = models.ChainStatusFailed
	doc.LastError = &reason

	p.log.Error("document transaction reverted", "document_id", doc.ID, "tx_hash", txHash)
	return false, nil
}

// AwaitConfirmation polls a bounded number of times right after a broadcast.
// Best effort only: most transactions confirm via the recurring sweep.
func (p *Poller) AwaitConfirmation(ctx context.Context, doc *models.Document) bool {
	for i := 0; i < p.pollCount; i++ {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(p.pollDelay):
		}

		confirmed, err := p.CheckConfirmation(ctx, doc)
		if err != nil {
			p.log.Warn("confirmation poll failed", "document_id", doc.ID, "error", err)
			continue
		}
		if confirmed || doc.ChainStatus == models.ChainStatusFailed {
			return confirmed
		}
	}
	return false
}

// Sweep checks every pending record that has a broadcast transaction
func (p *Poller) Sweep(ctx context.Context) error {
	docs, err := p.store.ListPendingWithTransaction(ctx)
	if err != nil {
		return fmt.Errorf("list pending documents: %w", err)
	}

	if len(docs) == 0 {
		return nil
	}

	p.log.Info("confirmation sweep", "pending", len(docs))

	for _, doc := range docs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := p.CheckConfirmation(ctx, doc); err != nil {
			p.log.Warn("sweep check failed", "document_id", doc.ID, "error", err)
		}
	}
	return nil
}
