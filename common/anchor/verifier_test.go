package anchor

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockdoc/blockdoc/common/chain"
	"github.com/blockdoc/blockdoc/common/models"
)

func newTestVerifier(t *testing.T, rpc *fakeRPC, store *fakeStore) *Verifier {
	t.Helper()
	codec, err := chain.NewCodec(testContract)
	require.NoError(t, err)
	return NewVerifier(rpc, store, codec, "sepolia", testLogger())
}

// verifyOutput builds ABI return data for verifyDocument(bytes32)
func verifyOutput(exists bool, timestamp int64) []byte {
	out := make([]byte, 64)
	if exists {
		out[31] = 1
	}
	big.NewInt(timestamp).FillBytes(out[32:64])
	return out
}

func TestVerify_Registered(t *testing.T) {
	registeredAt := int64(1735689600)
	rpc := &fakeRPC{callOutput: verifyOutput(true, registeredAt)}
	v := newTestVerifier(t, rpc, newFakeStore())

	outcome, err := v.Verify(context.Background(), testContentHash("agreement"))
	require.NoError(t, err)

	assert.True(t, outcome.Verified)
	assert.Equal(t, StatusVerified, outcome.Status)
	assert.Equal(t, "sepolia", outcome.Network)
	require.NotNil(t, outcome.Timestamp)
	assert.Equal(t, time.Unix(registeredAt, 0).UTC(), *outcome.Timestamp)
	assert.Nil(t, outcome.TransactionHash)
}

func TestVerify_RegisteredWithLocalRecord(t *testing.T) {
	doc := docWithTransaction("agreement", "0xabc")
	doc.ChainStatus = models.ChainStatusConfirmed
	rpc := &fakeRPC{callOutput: verifyOutput(true, 1735689600)}
	v := newTestVerifier(t, rpc, newFakeStore(doc))

	outcome, err := v.Verify(context.Background(), doc.ContentHash)
	require.NoError(t, err)

	assert.True(t, outcome.Verified)
	require.NotNil(t, outcome.TransactionHash)
	assert.Equal(t, "0xabc", *outcome.TransactionHash)
}

func TestVerify_NeverRegistered(t *testing.T) {
	rpc := &fakeRPC{callOutput: verifyOutput(false, 0)}
	v := newTestVerifier(t, rpc, newFakeStore())

	outcome, err := v.Verify(context.Background(), testContentHash("unknown"))
	require.NoError(t, err)

	assert.False(t, outcome.Verified)
	assert.Equal(t, StatusNeverRegistered, outcome.Status)
	assert.Nil(t, outcome.Timestamp)
}

func TestVerify_PendingConfirmation(t *testing.T) {
	doc := docWithTransaction("in-flight", "0xpending")
	rpc := &fakeRPC{callOutput: verifyOutput(false, 0)}
	v := newTestVerifier(t, rpc, newFakeStore(doc))

	outcome, err := v.Verify(context.Background(), doc.ContentHash)
	require.NoError(t, err)

	assert.False(t, outcome.Verified)
	assert.Equal(t, StatusPendingConfirmation, outcome.Status)
	require.NotNil(t, outcome.TransactionHash)
	assert.Equal(t, "0xpending", *outcome.TransactionHash)
}

func TestVerify_RegistrationFailed(t *testing.T) {
	doc := pendingDocument("broken")
	doc.ChainStatus = models.ChainStatusFailed
	rpc := &fakeRPC{callOutput: verifyOutput(false, 0)}
	v := newTestVerifier(t, rpc, newFakeStore(doc))

	outcome, err := v.Verify(context.Background(), doc.ContentHash)
	require.NoError(t, err)

	assert.False(t, outcome.Verified)
	assert.Equal(t, StatusRegistrationFailed, outcome.Status)
}

func TestVerify_InconsistencyWithSuccessfulReceipt(t *testing.T) {
	doc := docWithTransaction("landed", "0xlanded")
	doc.ChainStatus = models.ChainStatusConfirmed
	confirmedAt := time.Now().UTC().Add(-time.Hour)
	doc.ConfirmedAt = &confirmedAt

	rpc := &fakeRPC{
		callOutput: verifyOutput(false, 0),
		receipts:   map[string]*chain.Receipt{"0xlanded": successReceipt("0xlanded")},
	}
	v := newTestVerifier(t, rpc, newFakeStore(doc))

	outcome, err := v.Verify(context.Background(), doc.ContentHash)
	require.NoError(t, err)

	assert.True(t, outcome.Verified)
	assert.Equal(t, StatusVerifiedWithWarning, outcome.Status)
	assert.NotEmpty(t, outcome.Warning)
	require.NotNil(t, outcome.Timestamp)
	assert.Equal(t, confirmedAt, *outcome.Timestamp)
}

func TestVerify_InconsistencyWithoutReceipt(t *testing.T) {
	doc := docWithTransaction("vanished", "0xgone")
	doc.ChainStatus = models.ChainStatusConfirmed

	rpc := &fakeRPC{
		callOutput: verifyOutput(false, 0),
		receipts:   map[string]*chain.Receipt{},
	}
	v := newTestVerifier(t, rpc, newFakeStore(doc))

	outcome, err := v.Verify(context.Background(), doc.ContentHash)
	require.NoError(t, err)

	assert.False(t, outcome.Verified)
	assert.Equal(t, StatusVerificationFailed, outcome.Status)
}

func TestVerify_MalformedContentHash(t *testing.T) {
	v := newTestVerifier(t, &fakeRPC{}, newFakeStore())

	_, err := v.Verify(context.Background(), "not-a-hash")
	assert.Error(t, err)
}

func TestChainTimestamp(t *testing.T) {
	out := make([]byte, 32)
	big.NewInt(1700000000).FillBytes(out)
	v := newTestVerifier(t, &fakeRPC{callOutput: out}, newFakeStore())

	ts, err := v.ChainTimestamp(context.Background(), testContentHash("doc"))
	require.NoError(t, err)
	require.NotNil(t, ts)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), *ts)
}

func TestChainTimestamp_Unset(t *testing.T) {
	v := newTestVerifier(t, &fakeRPC{callOutput: make([]byte, 32)}, newFakeStore())

	ts, err := v.ChainTimestamp(context.Background(), testContentHash("doc"))
	require.NoError(t, err)
	assert.Nil(t, ts)
}
