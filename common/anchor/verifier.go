package anchor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/blockdoc/blockdoc/common/chain"
	"github.com/blockdoc/blockdoc/common/logger"
	"github.com/blockdoc/blockdoc/common/models"
	"github.com/blockdoc/blockdoc/common/repository"
)

// Verification statuses returned to callers
const (
	StatusVerified            = "verified"
	StatusVerifiedWithWarning = "verified_with_warning"
	StatusNeverRegistered     = "never_registered"
	StatusPendingConfirmation = "pending_confirmation"
	StatusRegistrationFailed  = "registration_failed"
	StatusVerificationFailed  = "verification_failed"
)

// Outcome is the structured result of a verification
type Outcome struct {
	Verified    bool   `json:"verified"`
	Status      string `json:"status"`
	ContentHash string `json:"content_hash"`

	// Chain-reported registration time, present when verified
	Timestamp *time.Time `json:"timestamp,omitempty"`

	// Local enrichment, present when a local record exists
	TransactionHash *string `json:"transaction_hash,omitempty"`
	Network         string  `json:"network,omitempty"`

	// Set on the contract-state/transaction-state inconsistency path
	Warning string `json:"warning,omitempty"`
}

// Verifier answers "is this content anchored on chain". The contract is
// authoritative; the local record only refines negative answers.
type Verifier struct {
	rpc     RPC
	store   Store
	codec   Codec
	network string
	log     *logger.Logger
}

// NewVerifier creates a verifier
func NewVerifier(rpc RPC, store Store, codec Codec, network string, log *logger.Logger) *Verifier {
	return &Verifier{
		rpc:     rpc,
		store:   store,
		codec:   codec,
		network: network,
		log:     log,
	}
}

// Verify checks the content hash against the contract and reconciles the
// answer with local record state
func (v *Verifier) Verify(ctx context.Context, contentHash string) (*Outcome, error) {
	digest, err := chain.DocumentDigest(contentHash)
	if err != nil {
		return nil, fmt.Errorf("derive chain digest: %w", err)
	}

	data, err := v.codec.PackVerify(digest)
	if err != nil {
		return nil, fmt.Errorf("encode verify call: %w", err)
	}

	output, err := v.rpc.Call(ctx, v.codec.ContractAddress(), data)
	if err != nil {
		return nil, fmt.Errorf("contract call: %w", err)
	}

	exists, timestamp, err := v.codec.UnpackVerify(output)
	if err != nil {
		return nil, fmt.Errorf("decode verify result: %w", err)
	}

	doc, err := v.store.GetByHash(ctx, contentHash)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("look up local record: %w", err)
	}

	if exists {
		return v.verifiedOutcome(contentHash, timestampToTime(timestamp), doc, ""), nil
	}

	return v.negativeOutcome(ctx, contentHash, doc)
}

// negativeOutcome refines a chain-reported non-existence using local state
func (v *Verifier) negativeOutcome(ctx context.Context, contentHash string, doc *models.Document) (*Outcome, error) {
	outcome := &Outcome{
		Verified:    false,
		ContentHash: contentHash,
	}

	if doc == nil {
		outcome.Status = StatusNeverRegistered
		return outcome, nil
	}

	outcome.TransactionHash = doc.TransactionHash
	outcome.Network = v.network

	switch doc.ChainStatus {
	case models.ChainStatusPending:
		outcome.Status = StatusPendingConfirmation
		return outcome, nil

	case models.ChainStatusFailed:
		outcome.Status = StatusRegistrationFailed
		return outcome, nil

	case models.ChainStatusConfirmed:
		// Contract says no, local record says confirmed. Fall back to the
		// stored transaction's receipt before concluding anything.
		return v.reconcileInconsistency(ctx, contentHash, doc)

	default:
		outcome.Status = StatusVerificationFailed
		return outcome, nil
	}
}

// reconcileInconsistency handles a locally-confirmed record the contract does
// not report. A successful receipt means the registration transaction did
// land, so possession is still attested, with a warning for operator
// attention. Anything else is a verification failure distinct from "never
// registered".
func (v *Verifier) reconcileInconsistency(ctx context.Context, contentHash string, doc *models.Document) (*Outcome, error) {
	v.log.Warn("contract state disagrees with confirmed record",
		"document_id", doc.ID,
		"content_hash", contentHash,
	)

	if doc.HasTransaction() {
		receipt, err := v.rpc.TransactionReceipt(ctx, *doc.TransactionHash)
		if err != nil {
			return nil, fmt.Errorf("fallback receipt check: %w", err)
		}

		if receipt != nil && receipt.Succeeded() {
			warning := "contract state does not report this document, but its registration transaction succeeded on chain"
			return v.verifiedOutcome(contentHash, doc.ConfirmedAt, doc, warning), nil
		}
	}

	return &Outcome{
		Verified:        false,
		Status:          StatusVerificationFailed,
		ContentHash:     contentHash,
		TransactionHash: doc.TransactionHash,
		Network:         v.network,
	}, nil
}

func (v *Verifier) verifiedOutcome(contentHash string, timestamp *time.Time, doc *models.Document, warning string) *Outcome {
	outcome := &Outcome{
		Verified:    true,
		Status:      StatusVerified,
		ContentHash: contentHash,
		Timestamp:   timestamp,
		Network:     v.network,
	}

	if warning != "" {
		outcome.Status = StatusVerifiedWithWarning
		outcome.Warning = warning
	}

	if doc != nil {
		outcome.TransactionHash = doc.TransactionHash
	}

	return outcome
}

// ChainTimestamp queries getDocumentTimestamp for a content hash, for
// operator diagnostics
func (v *Verifier) ChainTimestamp(ctx context.Context, contentHash string) (*time.Time, error) {
	digest, err := chain.DocumentDigest(contentHash)
	if err != nil {
		return nil, fmt.Errorf("derive chain digest: %w", err)
	}

	data, err := v.codec.PackGetTimestamp(digest)
	if err != nil {
		return nil, fmt.Errorf("encode timestamp call: %w", err)
	}

	output, err := v.rpc.Call(ctx, v.codec.ContractAddress(), data)
	if err != nil {
		return nil, fmt.Errorf("contract call: %w", err)
	}

	timestamp, err := v.codec.UnpackGetTimestamp(output)
	if err != nil {
		return nil, fmt.Errorf("decode timestamp result: %w", err)
	}

	return timestampToTime(timestamp), nil
}

// timestampToTime converts a chain-reported unix timestamp; zero means unset
func timestampToTime(ts *big.Int) *time.Time {
	if ts == nil {
		return nil
	}
	seconds := ts.Int64()
	if seconds == 0 {
		return nil
	}
	t := time.Unix(seconds, 0).UTC()
	return &t
}
