// Package anchor drives a document from "hash computed" to "confirmed on
// chain": the registration state machine, the confirmation poller, and the
// read-only verification path. All chain and store access goes through the
// narrow interfaces below, injected at construction.
package anchor

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/blockdoc/blockdoc/common/chain"
	"github.com/blockdoc/blockdoc/common/models"
)

// ErrAwaitingConfirmation is returned by Register when a broadcast
// transaction exists but is not yet mined; the caller should check again
// later instead of resubmitting.
var ErrAwaitingConfirmation = errors.New("anchor: transaction awaiting confirmation")

// ErrPermanentFailure wraps failures that will recur given identical input.
// Callers must not retry; the record has been transitioned to failed and
// operator intervention is the only recovery path.
var ErrPermanentFailure = errors.New("anchor: permanent registration failure")

// RPC is the node surface the pipeline consumes
type RPC interface {
	Nonce(ctx context.Context, address common.Address, selector chain.NonceSelector) (*big.Int, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	Balance(ctx context.Context, address common.Address) (*big.Int, error)
	SendRawTransaction(ctx context.Context, signed []byte) (string, error)
	TransactionReceipt(ctx context.Context, txHash string) (*chain.Receipt, error)
	Call(ctx context.Context, contract common.Address, data []byte) ([]byte, error)
}

// Store is the record store surface the pipeline mutates records through
type Store interface {
	GetByHash(ctx context.Context, contentHash string) (*models.Document, error)
	ListPendingWithTransaction(ctx context.Context) ([]*models.Document, error)
	SetTransaction(ctx context.Context, id uuid.UUID, txHash string) error
	ClearTransaction(ctx context.Context, id uuid.UUID) error
	SetConfirmed(ctx context.Context, id uuid.UUID, confirmedAt time.Time) error
	SetFailed(ctx context.Context, id uuid.UUID, reason string) error
	SetLastError(ctx context.Context, id uuid.UUID, reason string) error
}

// TxSigner produces broadcast-ready signed transactions
type TxSigner interface {
	Address() common.Address
	SignTx(nonce uint64, gasPrice *big.Int, gasLimit uint64, to common.Address, value *big.Int, data []byte) ([]byte, common.Hash, error)
}

// Codec encodes and decodes contract calls
type Codec interface {
	ContractAddress() common.Address
	PackRegister(digest [32]byte) ([]byte, error)
	PackVerify(digest [32]byte) ([]byte, error)
	UnpackVerify(output []byte) (bool, *big.Int, error)
	PackGetTimestamp(digest [32]byte) ([]byte, error)
	UnpackGetTimestamp(output []byte) (*big.Int, error)
}
