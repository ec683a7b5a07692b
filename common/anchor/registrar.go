package anchor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/blockdoc/blockdoc/common/cache"
	"github.com/blockdoc/blockdoc/common/chain"
	"github.com/blockdoc/blockdoc/common/logger"
	"github.com/blockdoc/blockdoc/common/models"
)

const gasPriceCacheKey = "chain:gas_price"

// Registrar is the registration state machine. One call to Register performs
// one attempt to move a pending record toward a broadcast transaction; the
// caller owns the retry schedule.
type Registrar struct {
	rpc    RPC
	store  Store
	codec  Codec
	signer TxSigner
	poller *Poller
	log    *logger.Logger

	gasLimit uint64

	// fixedGasPrice pins the gas price; nil queries the node per attempt
	fixedGasPrice *big.Int
	gasCache      cache.Cache
	gasCacheTTL   time.Duration

	// nonceCeiling guards against a misbehaving node returning a garbage
	// pending nonce
	nonceCeiling *big.Int
}

// RegistrarOpts contains options for creating a Registrar
type RegistrarOpts struct {
	RPC           RPC
	Store         Store
	Codec         Codec
	Signer        TxSigner
	Poller        *Poller
	Logger        *logger.Logger
	GasLimit      uint64
	FixedGasPrice *big.Int
	GasCache      cache.Cache
	GasCacheTTL   time.Duration
	NonceCeiling  uint64
}

// NewRegistrar creates a registrar with explicit dependencies
func NewRegistrar(opts *RegistrarOpts) *Registrar {
	return &Registrar{
		rpc:           opts.RPC,
		store:         opts.Store,
		codec:         opts.Codec,
		signer:        opts.Signer,
		poller:        opts.Poller,
		log:           opts.Logger,
		gasLimit:      opts.GasLimit,
		fixedGasPrice: opts.FixedGasPrice,
		gasCache:      opts.GasCache,
		gasCacheTTL:   opts.GasCacheTTL,
		nonceCeiling:  new(big.Int).SetUint64(opts.NonceCeiling),
	}
}

// Register performs one registration attempt for the record. attempt is the
// caller's 1-based retry counter; it decides whether an unconfirmed broadcast
// transaction is still waited on or replaced.
//
// Error contract: nil means done for now (confirmed, broadcast, or a no-op);
// ErrAwaitingConfirmation and transient chain failures mean try again later;
// errors wrapping ErrPermanentFailure mean the record is failed and must not
// be retried.
func (r *Registrar) Register(ctx context.Context, doc *models.Document, attempt int) error {
	log := r.log.WithDocumentID(doc.ID.String())

	// Idempotent re-entry: only pending records are worked on
	if doc.ChainStatus != models.ChainStatusPending {
		log.Info("register skipped, record not pending", "status", doc.ChainStatus)
		return nil
	}

	// A transaction already exists: confirm it before considering a resend
	if doc.HasTransaction() {
		return r.handleExistingTransaction(ctx, doc, attempt, log)
	}

	gasPrice, err := r.gasPrice(ctx)
	if err != nil {
		return r.transient(ctx, doc, fmt.Errorf("query gas price: %w", err))
	}

	// Balance guard: broadcasting with insufficient funds is a guaranteed
	// on-chain rejection and a wasted nonce
	balance, err := r.rpc.Balance(ctx, r.signer.Address())
	if err != nil {
		return r.transient(ctx, doc, fmt.Errorf("query balance: %w", err))
	}

	cost := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(r.gasLimit))
	if balance.Cmp(cost) < 0 {
		reason := fmt.Sprintf("insufficient funds: balance %s wei < estimated cost %s wei", balance, cost)
		return r.permanent(ctx, doc, reason, log)
	}

	nonce, err := r.accountNonce(ctx, log)
	if err != nil {
		return r.transient(ctx, doc, fmt.Errorf("query nonce: %w", err))
	}

	digest, err := chain.DocumentDigest(doc.ContentHash)
	if err != nil {
		return r.permanent(ctx, doc, fmt.Sprintf("derive chain digest: %v", err), log)
	}

	data, err := r.codec.PackRegister(digest)
	if err != nil {
		return r.permanent(ctx, doc, fmt.Sprintf("encode contract call: %v", err), log)
	}

	raw, localHash, err := r.signer.SignTx(nonce, gasPrice, r.gasLimit, r.codec.ContractAddress(), nil, data)
	if err != nil {
		return r.permanent(ctx, doc, fmt.Sprintf("sign transaction: %v", err), log)
	}

	txHash, err := r.rpc.SendRawTransaction(ctx, raw)
	if err != nil {
		return r.handleSubmitError(ctx, doc, err, log)
	}

	if txHash != localHash.Hex() {
		// The node is authoritative; a mismatch would point at a signing bug
		log.Warn("node returned unexpected transaction hash", "local", localHash.Hex(), "remote", txHash)
	}

	if err := r.store.SetTransaction(ctx, doc.ID, txHash); err != nil {
		serr := fmt.Sprintf("record transaction hash: %v", err)
		r.fail(ctx, doc, serr)
		return fmt.Errorf("%s (tx %s broadcast)", serr, txHash)
	}
	doc.TransactionHash = &txHash

	log.Info("registration transaction broadcast",
		"tx_hash", txHash,
		"nonce", nonce,
		"gas_price", gasPrice,
		"attempt", attempt,
	)

	// Best-effort immediate confirmation; the recurring sweep covers the rest
	r.poller.AwaitConfirmation(ctx, doc)
	return nil
}

// handleExistingTransaction decides what to do with a record whose broadcast
// transaction has not confirmed yet: wait on early attempts, replace the
// transaction once waiting has been given a fair chance (stuck, most likely
// underpriced gas).
func (r *Registrar) handleExistingTransaction(ctx context.Context, doc *models.Document, attempt int, log *logger.Logger) error {
	confirmed, err := r.poller.CheckConfirmation(ctx, doc)
	if err != nil {
		return fmt.Errorf("check confirmation: %w", err)
	}
	if confirmed {
		return nil
	}
	if doc.ChainStatus == models.ChainStatusFailed {
		// Receipt arrived with a revert; the poller already failed the record
		return fmt.Errorf("transaction %s reverted: %w", *doc.TransactionHash, ErrPermanentFailure)
	}

	if attempt <= 1 {
		log.Info("transaction unconfirmed, deferring", "tx_hash", *doc.TransactionHash, "attempt", attempt)
		return ErrAwaitingConfirmation
	}

	// Capture the hash first; the store may share the record and nil the
	// field as part of ClearTransaction.
	superseded := *doc.TransactionHash
	log.Warn("abandoning stuck transaction", "tx_hash", superseded, "attempt", attempt)
	if err := r.store.ClearTransaction(ctx, doc.ID); err != nil {
		return fmt.Errorf("clear stuck transaction: %w", err)
	}
	doc.SupersededTxHash = &superseded
	doc.TransactionHash = nil

	return r.Register(ctx, doc, attempt)
}

// accountNonce queries the pending-inclusive nonce, falling back to the
// latest-only selector when the answer fails the sanity ceiling
func (r *Registrar) accountNonce(ctx context.Context, log *logger.Logger) (uint64, error) {
	nonce, err := r.rpc.Nonce(ctx, r.signer.Address(), chain.NoncePending)
	if err != nil {
		return 0, err
	}

	if nonce.Cmp(r.nonceCeiling) > 0 {
		log.Warn("pending nonce failed sanity check, re-querying latest", "pending_nonce", nonce)
		nonce, err = r.rpc.Nonce(ctx, r.signer.Address(), chain.NonceLatest)
		if err != nil {
			return 0, err
		}
	}

	if !nonce.IsUint64() {
		return 0, fmt.Errorf("nonce %s out of range", nonce)
	}
	return nonce.Uint64(), nil
}

// gasPrice resolves the gas price per the configured policy: pinned value,
// or queried from the node through a short-lived cache
func (r *Registrar) gasPrice(ctx context.Context) (*big.Int, error) {
	if r.fixedGasPrice != nil {
		return r.fixedGasPrice, nil
	}

	if r.gasCache != nil {
		if cached, ok, _ := r.gasCache.Get(ctx, gasPriceCacheKey); ok {
			if price, valid := new(big.Int).SetString(string(cached), 10); valid {
				return price, nil
			}
		}
	}

	price, err := r.rpc.GasPrice(ctx)
	if err != nil {
		return nil, err
	}

	if r.gasCache != nil && r.gasCacheTTL > 0 {
		_ = r.gasCache.Set(ctx, gasPriceCacheKey, []byte(price.String()), r.gasCacheTTL)
	}
	return price, nil
}

// handleSubmitError maps a broadcast failure onto the error taxonomy. A node
// rejection is deterministic and fails the record with the node's message
// verbatim. A transport failure is ambiguous: the transaction may have landed
// anyway, so it is logged loudly and left retryable.
func (r *Registrar) handleSubmitError(ctx context.Context, doc *models.Document, err error, log *logger.Logger) error {
	var chainErr *chain.ChainError
	if errors.As(err, &chainErr) && chainErr.IsRPCError() {
		return r.permanent(ctx, doc, fmt.Sprintf("node rejected transaction: %s", chainErr.Message), log)
	}

	// At-least-once broadcast hazard: if the node accepted the transaction
	// before the failure, a blind resend with a fresh nonce would produce two
	// valid transactions. The retry path re-checks via the pending nonce.
	log.Error("transaction submission outcome ambiguous, transaction may have been broadcast",
		"error", err,
	)
	return r.transient(ctx, doc, fmt.Errorf("submit transaction: %w", err))
}

// transient records the diagnostic and surfaces the error for the caller's
// backoff policy; the record stays pending
func (r *Registrar) transient(ctx context.Context, doc *models.Document, err error) error {
	if serr := r.store.SetLastError(ctx, doc.ID, err.Error()); serr != nil {
		r.log.Error("failed to record attempt error", "document_id", doc.ID, "error", serr)
	}
	return err
}

// permanent fails the record and returns an error wrapping ErrPermanentFailure
func (r *Registrar) permanent(ctx context.Context, doc *models.Document, reason string, log *logger.Logger) error {
	log.Error("registration failed permanently", "reason", reason)
	r.fail(ctx, doc, reason)
	return fmt.Errorf("%s: %w", reason, ErrPermanentFailure)
}

func (r *Registrar) fail(ctx context.Context, doc *models.Document, reason string) {
	if err := r.store.SetFailed(ctx, doc.ID, reason); err != nil {
		r.log.Error("failed to mark document failed", "document_id", doc.ID, "error", err)
		return
	}
	doc.ChainStatus = models.ChainStatusFailed
	doc.LastError = &reason
}

// EstimatedCost returns gasPrice*gasLimit under the current policy, for
// operator diagnostics
func (r *Registrar) EstimatedCost(ctx context.Context) (*big.Int, error) {
	price, err := r.gasPrice(ctx)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Mul(price, new(big.Int).SetUint64(r.gasLimit)), nil
}
