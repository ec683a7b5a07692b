package anchor

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockdoc/blockdoc/common/chain"
	"github.com/blockdoc/blockdoc/common/models"
)

func newTestPoller(rpc *fakeRPC, store *fakeStore) *Poller {
	return NewPoller(&PollerOpts{
		RPC:               rpc,
		Store:             store,
		Logger:            testLogger(),
		PollCount:         2,
		PollDelay:         time.Millisecond,
		StalePendingAfter: time.Hour,
	})
}

func docWithTransaction(content, txHash string) *models.Document {
	doc := pendingDocument(content)
	doc.TransactionHash = &txHash
	return doc
}

func TestCheckConfirmation_NoTransaction(t *testing.T) {
	doc := pendingDocument("a")
	p := newTestPoller(&fakeRPC{}, newFakeStore(doc))

	confirmed, err := p.CheckConfirmation(context.Background(), doc)
	require.NoError(t, err)
	assert.False(t, confirmed)
	assert.Equal(t, models.ChainStatusPending, doc.ChainStatus)
}

func TestCheckConfirmation_NotMined(t *testing.T) {
	doc := docWithTransaction("a", "0x1")
	p := newTestPoller(&fakeRPC{receipts: map[string]*chain.Receipt{}}, newFakeStore(doc))

	confirmed, err := p.CheckConfirmation(context.Background(), doc)
	require.NoError(t, err)
	assert.False(t, confirmed)
	assert.Equal(t, models.ChainStatusPending, doc.ChainStatus)
}

func TestCheckConfirmation_Success(t *testing.T) {
	doc := docWithTransaction("a", "0x1")
	rpc := &fakeRPC{receipts: map[string]*chain.Receipt{"0x1": successReceipt("0x1")}}
	p := newTestPoller(rpc, newFakeStore(doc))

	confirmed, err := p.CheckConfirmation(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, confirmed)
	assert.Equal(t, models.ChainStatusConfirmed, doc.ChainStatus)
	require.NotNil(t, doc.ConfirmedAt)
	assert.WithinDuration(t, time.Now().UTC(), *doc.ConfirmedAt, time.Minute)
}

func TestCheckConfirmation_Reverted(t *testing.T) {
	doc := docWithTransaction("a", "0x1")
	rpc := &fakeRPC{receipts: map[string]*chain.Receipt{"0x1": {
		TransactionHash: "0x1",
		BlockNumber:     big.NewInt(5),
		GasUsed:         big.NewInt(100000),
		Status:          0,
	}}}
	p := newTestPoller(rpc, newFakeStore(doc))

	confirmed, err := p.CheckConfirmation(context.Background(), doc)
	require.NoError(t, err)
	assert.False(t, confirmed)
	assert.Equal(t, models.ChainStatusFailed, doc.ChainStatus)
	require.NotNil(t, doc.LastError)
	assert.Contains(t, *doc.LastError, "reverted")
}

func TestCheckConfirmation_ReceiptFetchError(t *testing.T) {
	doc := docWithTransaction("a", "0x1")
	p := newTestPoller(&fakeRPC{receiptErr: errors.New("node down")}, newFakeStore(doc))

	_, err := p.CheckConfirmation(context.Background(), doc)
	require.Error(t, err)
	assert.Equal(t, models.ChainStatusPending, doc.ChainStatus, "fetch failures must not mutate the record")
}

func TestAwaitConfirmation_StopsOnFailure(t *testing.T) {
	doc := docWithTransaction("a", "0x1")
	rpc := &fakeRPC{receipts: map[string]*chain.Receipt{"0x1": {
		TransactionHash: "0x1",
		BlockNumber:     big.NewInt(5),
		GasUsed:         big.NewInt(100000),
		Status:          0,
	}}}
	p := newTestPoller(rpc, newFakeStore(doc))

	assert.False(t, p.AwaitConfirmation(context.Background(), doc))
	assert.Equal(t, models.ChainStatusFailed, doc.ChainStatus)
}

func TestAwaitConfirmation_ContextCancelled(t *testing.T) {
	doc := docWithTransaction("a", "0x1")
	p := newTestPoller(&fakeRPC{receipts: map[string]*chain.Receipt{}}, newFakeStore(doc))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, p.AwaitConfirmation(ctx, doc))
}

func TestSweep(t *testing.T) {
	mined := docWithTransaction("mined", "0xmined")
	waiting := docWithTransaction("waiting", "0xwaiting")
	noTx := pendingDocument("no-tx")
	store := newFakeStore(mined, waiting, noTx)
	rpc := &fakeRPC{receipts: map[string]*chain.Receipt{"0xmined": successReceipt("0xmined")}}

	p := newTestPoller(rpc, store)
	require.NoError(t, p.Sweep(context.Background()))

	assert.Equal(t, models.ChainStatusConfirmed, mined.ChainStatus)
	assert.Equal(t, models.ChainStatusPending, waiting.ChainStatus)
	assert.Equal(t, models.ChainStatusPending, noTx.ChainStatus)
}
