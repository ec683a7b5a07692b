package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/blockdoc/blockdoc/common/hash"
)

// documentVerificationABI is the fixed ABI of the deployed DocumentVerification
// contract. It must match the on-chain contract exactly; it is parsed once at
// startup and any defect is a fatal configuration error.
const documentVerificationABI = `[
	{"type":"function","name":"registerDocument","stateMutability":"nonpayable","inputs":[{"name":"documentHash","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"verifyDocument","stateMutability":"view","inputs":[{"name":"documentHash","type":"bytes32"}],"outputs":[{"name":"exists","type":"bool"},{"name":"timestamp","type":"uint256"}]},
	{"type":"function","name":"getDocumentTimestamp","stateMutability":"view","inputs":[{"name":"documentHash","type":"bytes32"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"event","name":"DocumentRegistered","anonymous":false,"inputs":[{"name":"documentHash","type":"bytes32","indexed":true},{"name":"timestamp","type":"uint256","indexed":false}]}
]`

// DocumentDigest derives the 32-byte on-chain digest from a hex content hash.
//
// The content hash is SHA-512 (64 bytes); the contract parameter is bytes32,
// so the wide digest is narrowed with keccak-256 over the raw digest bytes.
// Registration and verification both pass through this one function: the
// derivation must never diverge between the two paths or verification breaks
// silently.
func DocumentDigest(contentHash string) ([32]byte, error) {
	var digest [32]byte

	raw, err := hash.DecodeHex(contentHash)
	if err != nil {
		return digest, err
	}

	copy(digest[:], crypto.Keccak256(raw))
	return digest, nil
}

// Codec encodes and decodes calls against the DocumentVerification contract
type Codec struct {
	abi      abi.ABI
	contract common.Address
}

// NewCodec parses the contract ABI and binds it to the deployed address
func NewCodec(contractAddress string) (*Codec, error) {
	if !common.IsHexAddress(contractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", contractAddress)
	}

	parsed, err := abi.JSON(strings.NewReader(documentVerificationABI))
	if err != nil {
		return nil, fmt.Errorf("parse contract ABI: %w", err)
	}

	return &Codec{
		abi:      parsed,
		contract: common.HexToAddress(contractAddress),
	}, nil
}

// ContractAddress returns the deployed contract address
func (c *Codec) ContractAddress() common.Address {
	return c.contract
}

// PackRegister encodes a registerDocument(bytes32) call
func (c *Codec) PackRegister(digest [32]byte) ([]byte, error) {
	data, err := c.abi.Pack("registerDocument", digest)
	if err != nil {
		return nil, fmt.Errorf("pack registerDocument: %w", err)
	}
	return data, nil
}

// PackVerify encodes a verifyDocument(bytes32) call
func (c *Codec) PackVerify(digest [32]byte) ([]byte, error) {
	data, err := c.abi.Pack("verifyDocument", digest)
	if err != nil {
		return nil, fmt.Errorf("pack verifyDocument: %w", err)
	}
	return data, nil
}

// UnpackVerify decodes verifyDocument return data into (exists, timestamp)
func (c *Codec) UnpackVerify(output []byte) (bool, *big.Int, error) {
	values, err := c.abi.Unpack("verifyDocument", output)
	if err != nil {
		return false, nil, fmt.Errorf("unpack verifyDocument: %w", err)
	}
	if len(values) != 2 {
		return false, nil, fmt.Errorf("unpack verifyDocument: want 2 values, got %d", len(values))
	}

	exists, ok := values[0].(bool)
	if !ok {
		return false, nil, fmt.Errorf("unpack verifyDocument: exists is %T, want bool", values[0])
	}

	timestamp, ok := values[1].(*big.Int)
	if !ok {
		return false, nil, fmt.Errorf("unpack verifyDocument: timestamp is %T, want *big.Int", values[1])
	}

	return exists, timestamp, nil
}

// PackGetTimestamp encodes a getDocumentTimestamp(bytes32) call
func (c *Codec) PackGetTimestamp(digest [32]byte) ([]byte, error) {
	data, err := c.abi.Pack("getDocumentTimestamp", digest)
	if err != nil {
		return nil, fmt.Errorf("pack getDocumentTimestamp: %w", err)
	}
	return data, nil
}

// UnpackGetTimestamp decodes getDocumentTimestamp return data
func (c *Codec) UnpackGetTimestamp(output []byte) (*big.Int, error) {
	values, err := c.abi.Unpack("getDocumentTimestamp", output)
	if err != nil {
		return nil, fmt.Errorf("unpack getDocumentTimestamp: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unpack getDocumentTimestamp: want 1 value, got %d", len(values))
	}

	timestamp, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack getDocumentTimestamp: timestamp is %T, want *big.Int", values[0])
	}
	return timestamp, nil
}
