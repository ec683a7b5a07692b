package chain

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer produces signed legacy transactions with EIP-155 replay protection.
// Signing is a pure function of its inputs: no I/O, no internal state beyond
// the key material and chain id loaded at construction.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	signer  types.Signer
}

// NewSigner parses the hex private key and binds it to the chain id.
// Invalid key material is a fatal configuration error surfaced at startup.
func NewSigner(privateKeyHex string, chainID int64) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse sender private key: %w", err)
	}

	if chainID <= 0 {
		return nil, fmt.Errorf("invalid chain id %d", chainID)
	}

	id := big.NewInt(chainID)
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: id,
		signer:  types.NewEIP155Signer(id),
	}, nil
}

// Address returns the sender address derived from the key
func (s *Signer) Address() common.Address {
	return s.address
}

// ChainID returns the replay-protection chain id
func (s *Signer) ChainID() *big.Int {
	return s.chainID
}

// SignTx builds and signs a legacy transaction, returning the RLP-serialized
// broadcast bytes and the transaction hash
func (s *Signer) SignTx(nonce uint64, gasPrice *big.Int, gasLimit uint64, to common.Address, value *big.Int, data []byte) ([]byte, common.Hash, error) {
	if value == nil {
		value = new(big.Int)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    value,
		Data:     data,
	})

	signed, err := types.SignTx(tx, s.signer, s.key)
	if err != nil {
		return nil, common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, common.Hash{}, fmt.Errorf("serialize transaction: %w", err)
	}

	return raw, signed.Hash(), nil
}
