package anchor

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/blockdoc/blockdoc/common/chain"
	"github.com/blockdoc/blockdoc/common/logger"
	"github.com/blockdoc/blockdoc/common/models"
	"github.com/blockdoc/blockdoc/common/repository"
)

// shared test doubles for the registration pipeline

const (
	testContract   = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
)

func testLogger() *logger.Logger {
	return logger.New("error", "text")
}

func testContentHash(content string) string {
	sum := sha512.Sum512([]byte(content))
	return hex.EncodeToString(sum[:])
}

func pendingDocument(content string) *models.Document {
	now := time.Now().UTC()
	return &models.Document{
		ID:          uuid.New(),
		Filename:    "test.pdf",
		Path:        "/tmp/test.pdf",
		Size:        1024,
		ContentHash: testContentHash(content),
		ChainStatus: models.ChainStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// fakeRPC is a canned-answer node. Per-method errors simulate transport and
// rejection failures; receipts are keyed by transaction hash.
type fakeRPC struct {
	pendingNonce *big.Int
	latestNonce  *big.Int
	nonceErr     error

	gasPrice    *big.Int
	gasPriceErr error

	balance    *big.Int
	balanceErr error

	sendResult string
	sendErr    error
	sendCalls  int

	receipts   map[string]*chain.Receipt
	receiptErr error

	callOutput []byte
	callErr    error
}

func (f *fakeRPC) Nonce(ctx context.Context, address common.Address, selector chain.NonceSelector) (*big.Int, error) {
	if f.nonceErr != nil {
		return nil, f.nonceErr
	}
	if selector == chain.NonceLatest && f.latestNonce != nil {
		return new(big.Int).Set(f.latestNonce), nil
	}
	return new(big.Int).Set(f.pendingNonce), nil
}

func (f *fakeRPC) GasPrice(ctx context.Context) (*big.Int, error) {
	if f.gasPriceErr != nil {
		return nil, f.gasPriceErr
	}
	return new(big.Int).Set(f.gasPrice), nil
}

func (f *fakeRPC) Balance(ctx context.Context, address common.Address) (*big.Int, error) {
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	return new(big.Int).Set(f.balance), nil
}

func (f *fakeRPC) SendRawTransaction(ctx context.Context, signed []byte) (string, error) {
	f.sendCalls++
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return f.sendResult, nil
}

func (f *fakeRPC) TransactionReceipt(ctx context.Context, txHash string) (*chain.Receipt, error) {
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	return f.receipts[txHash], nil
}

func (f *fakeRPC) Call(ctx context.Context, contract common.Address, data []byte) ([]byte, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	return f.callOutput, nil
}

// fakeStore keeps documents in memory and applies the same status-transition
// guards as the SQL layer
type fakeStore struct {
	docs map[uuid.UUID]*models.Document

	setTransactionErr error
	clearCalls        int
	lastErrors        []string
}

func newFakeStore(docs ...*models.Document) *fakeStore {
	s := &fakeStore{docs: make(map[uuid.UUID]*models.Document)}
	for _, d := range docs {
		s.docs[d.ID] = d
	}
	return s
}

func (s *fakeStore) GetByHash(ctx context.Context, contentHash string) (*models.Document, error) {
	for _, d := range s.docs {
		if d.ContentHash == contentHash {
			return d, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *fakeStore) ListPendingWithTransaction(ctx context.Context) ([]*models.Document, error) {
	var out []*models.Document
	for _, d := range s.docs {
		if d.ChainStatus == models.ChainStatusPending && d.HasTransaction() {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *fakeStore) SetTransaction(ctx context.Context, id uuid.UUID, txHash string) error {
	if s.setTransactionErr != nil {
		return s.setTransactionErr
	}
	d, ok := s.docs[id]
	if !ok {
		return repository.ErrNotFound
	}
	d.TransactionHash = &txHash
	return nil
}

func (s *fakeStore) ClearTransaction(ctx context.Context, id uuid.UUID) error {
	d, ok := s.docs[id]
	if !ok || d.ChainStatus != models.ChainStatusPending {
		return repository.ErrNotFound
	}
	s.clearCalls++
	d.SupersededTxHash = d.TransactionHash
	d.TransactionHash = nil
	return nil
}

func (s *fakeStore) SetConfirmed(ctx context.Context, id uuid.UUID, confirmedAt time.Time) error {
	d, ok := s.docs[id]
	if !ok || d.ChainStatus != models.ChainStatusPending {
		return repository.ErrNotFound
	}
	d.ChainStatus = models.ChainStatusConfirmed
	d.ConfirmedAt = &confirmedAt
	return nil
}

func (s *fakeStore) SetFailed(ctx context.Context, id uuid.UUID, reason string) error {
	d, ok := s.docs[id]
	if !ok || d.ChainStatus == models.ChainStatusConfirmed {
		return repository.ErrNotFound
	}
	d.ChainStatus = models.ChainStatusFailed
	d.LastError = &reason
	return nil
}

func (s *fakeStore) SetLastError(ctx context.Context, id uuid.UUID, reason string) error {
	d, ok := s.docs[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.lastErrors = append(s.lastErrors, reason)
	d.LastError = &reason
	return nil
}
