package chain

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// NonceSelector picks which account state the node answers nonce queries from
type NonceSelector string

const (
	// NonceLatest counts only mined transactions
	NonceLatest NonceSelector = "latest"

	// NoncePending also counts transactions sitting in the node's mempool,
	// so concurrent in-flight sends from the same account are accounted for
	NoncePending NonceSelector = "pending"
)

// rpcRequest is the JSON-RPC 2.0 request envelope
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      uint64 `json:"id"`
}

// rpcResponse is the JSON-RPC 2.0 response envelope. Result stays raw until
// the caller knows its shape.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError is the remote error object inside a JSON-RPC response
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// receiptWire is the receipt as it arrives on the wire: every numeric field a
// hex-quantity string. Parsing into typed values happens in toReceipt.
type receiptWire struct {
	TransactionHash string `json:"transactionHash"`
	BlockNumber     string `json:"blockNumber"`
	BlockHash       string `json:"blockHash"`
	GasUsed         string `json:"gasUsed"`
	Status          string `json:"status"`
}

// Receipt is the typed outcome of a mined transaction
type Receipt struct {
	TransactionHash string
	BlockNumber     *big.Int
	BlockHash       string
	GasUsed         *big.Int
	Status          uint64
}

// Succeeded reports whether the mined transaction executed without reverting
func (r *Receipt) Succeeded() bool {
	return r.Status == 1
}

func (w *receiptWire) toReceipt() (*Receipt, error) {
	blockNumber, err := hexutil.DecodeBig(w.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("parse receipt blockNumber %q: %w", w.BlockNumber, err)
	}

	gasUsed, err := hexutil.DecodeBig(w.GasUsed)
	if err != nil {
		return nil, fmt.Errorf("parse receipt gasUsed %q: %w", w.GasUsed, err)
	}

	status, err := hexutil.DecodeUint64(w.Status)
	if err != nil {
		return nil, fmt.Errorf("parse receipt status %q: %w", w.Status, err)
	}

	return &Receipt{
		TransactionHash: w.TransactionHash,
		BlockNumber:     blockNumber,
		BlockHash:       w.BlockHash,
		GasUsed:         gasUsed,
		Status:          status,
	}, nil
}

// callParams is the parameter object for eth_call
type callParams struct {
	To   string `json:"to"`
	Data string `json:"data"`
}
