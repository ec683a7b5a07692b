// Package hash computes the content digest that identifies a document.
//
// The digest is SHA-512 over the raw file bytes, hex encoded. Input is
// consumed in fixed-size chunks so memory stays bounded regardless of file
// size, and the result is independent of how the input is chunked.
package hash

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
)

// chunkSize is the read granularity for streaming input
const chunkSize = 8 * 1024

// DigestSize is the raw digest length in bytes
const DigestSize = sha512.Size

// Computer streams bytes into a SHA-512 digest
type Computer struct{}

// NewComputer creates a new hash computer
func NewComputer() *Computer {
	return &Computer{}
}

// Sum consumes the reader fully and returns the raw 64-byte digest
func (c *Computer) Sum(r io.Reader) ([]byte, error) {
	h := sha512.New()
	buf := make([]byte, chunkSize)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			// hash.Hash writes never fail
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read document stream: %w", err)
		}
	}

	return h.Sum(nil), nil
}

// SumHex consumes the reader fully and returns the hex-encoded digest,
// the canonical content hash format stored with each record
func (c *Computer) SumHex(r io.Reader) (string, error) {
	sum, err := c.Sum(r)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}

// DecodeHex parses a hex content hash back into raw digest bytes
func DecodeHex(contentHash string) ([]byte, error) {
	raw, err := hex.DecodeString(contentHash)
	if err != nil {
		return nil, fmt.Errorf("decode content hash: %w", err)
	}
	if len(raw) != DigestSize {
		return nil, fmt.Errorf("content hash must be %d bytes, got %d", DigestSize, len(raw))
	}
	return raw, nil
}
