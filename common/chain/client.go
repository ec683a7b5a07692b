// Package chain speaks to an Ethereum-compatible node over JSON-RPC and holds
// the contract codec and transaction signer for the document registry.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/blockdoc/blockdoc/common/logger"
)

// Client is a thin typed JSON-RPC client for the node. It is stateless aside
// from connection configuration: every call is blocking, bounded by the
// configured timeout, and never retried internally.
type Client struct {
	endpoint string
	http     *http.Client
	timeout  time.Duration
	log      *logger.Logger
	nextID   atomic.Uint64
}

// NewClient creates a new node client
func NewClient(endpoint string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
		timeout:  timeout,
		log:      log,
	}
}

// Nonce returns the account's transaction count under the given selector
func (c *Client) Nonce(ctx context.Context, address common.Address, selector NonceSelector) (*big.Int, error) {
	var result string
	if err := c.call(ctx, "eth_getTransactionCount", []any{address.Hex(), string(selector)}, &result); err != nil {
		return nil, err
	}
	return c.parseQuantity("eth_getTransactionCount", result)
}

// GasPrice returns the node's current gas price in wei
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	var result string
	if err := c.call(ctx, "eth_gasPrice", []any{}, &result); err != nil {
		return nil, err
	}
	return c.parseQuantity("eth_gasPrice", result)
}

// Balance returns the account balance in wei
func (c *Client) Balance(ctx context.Context, address common.Address) (*big.Int, error) {
	var result string
	if err := c.call(ctx, "eth_getBalance", []any{address.Hex(), "latest"}, &result); err != nil {
		return nil, err
	}
	return c.parseQuantity("eth_getBalance", result)
}

// SendRawTransaction broadcasts a signed transaction and returns its hash
func (c *Client) SendRawTransaction(ctx context.Context, signed []byte) (string, error) {
	var result string
	if err := c.call(ctx, "eth_sendRawTransaction", []any{hexutil.Encode(signed)}, &result); err != nil {
		return "", err
	}
	return result, nil
}

// TransactionReceipt fetches the receipt for a transaction. A nil receipt
// with nil error means the transaction is not yet mined.
func (c *Client) TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	var wire *receiptWire
	if err := c.call(ctx, "eth_getTransactionReceipt", []any{txHash}, &wire); err != nil {
		return nil, err
	}
	if wire == nil {
		return nil, nil
	}

	receipt, err := wire.toReceipt()
	if err != nil {
		return nil, newTransportError("eth_getTransactionReceipt", err)
	}
	return receipt, nil
}

// Call executes a read-only contract call and returns the raw return data
func (c *Client) Call(ctx context.Context, contract common.Address, data []byte) ([]byte, error) {
	params := callParams{
		To:   contract.Hex(),
		Data: hexutil.Encode(data),
	}

	var result string
	if err := c.call(ctx, "eth_call", []any{params, "latest"}, &result); err != nil {
		return nil, err
	}

	out, err := hexutil.Decode(result)
	if err != nil {
		return nil, newTransportError("eth_call", fmt.Errorf("parse return data %q: %w", result, err))
	}
	return out, nil
}

// call performs one JSON-RPC round trip, decoding the result into out.
// A JSON null result leaves out at its zero value.
func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return newTransportError(method, fmt.Errorf("marshal request: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return newTransportError(method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return newTransportError(method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return newTransportError(method, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return newTransportError(method, fmt.Errorf("unexpected HTTP status %d: %s", resp.StatusCode, body))
	}

	var envelope rpcResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return newTransportError(method, fmt.Errorf("malformed response envelope: %w", err))
	}

	if envelope.Error != nil {
		c.log.Warn("rpc error", "method", method, "code", envelope.Error.Code, "message", envelope.Error.Message)
		return newRPCError(method, envelope.Error.Code, envelope.Error.Message)
	}

	c.log.Debug("rpc call", "method", method, "duration", time.Since(start))

	if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}

	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return newTransportError(method, fmt.Errorf("decode result: %w", err))
	}
	return nil
}

// parseQuantity parses a hex-quantity string into a big integer. Wei amounts
// can exceed 64 bits over the account's lifetime, so everything numeric goes
// through big.Int.
func (c *Client) parseQuantity(method, value string) (*big.Int, error) {
	n, err := hexutil.DecodeBig(value)
	if err != nil {
		return nil, newTransportError(method, fmt.Errorf("parse quantity %q: %w", value, err))
	}
	return n, nil
}
