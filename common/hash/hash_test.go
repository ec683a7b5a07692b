package hash

import (
	"bytes"
	"crypto/sha512"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumHex_MatchesReferenceDigest(t *testing.T) {
	content := []byte("signed agreement, final revision")
	want := sha512.Sum512(content)

	got, err := NewComputer().SumHex(bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(want[:]), got)
}

func TestSum_IndependentOfChunking(t *testing.T) {
	// Larger than one read buffer so the streaming path is exercised
	content := bytes.Repeat([]byte("blockdoc"), 5000)

	c := NewComputer()
	whole, err := c.SumHex(bytes.NewReader(content))
	require.NoError(t, err)

	// iotest-style one-byte reader forces maximal fragmentation
	fragmented, err := c.SumHex(oneByteReader{bytes.NewReader(content)})
	require.NoError(t, err)

	assert.Equal(t, whole, fragmented)
}

func TestSum_EmptyInput(t *testing.T) {
	sum, err := NewComputer().Sum(strings.NewReader(""))
	require.NoError(t, err)
	assert.Len(t, sum, DigestSize)
}

func TestDecodeHex(t *testing.T) {
	content := []byte("x")
	hashed, err := NewComputer().SumHex(bytes.NewReader(content))
	require.NoError(t, err)

	raw, err := DecodeHex(hashed)
	require.NoError(t, err)
	assert.Len(t, raw, DigestSize)

	_, err = DecodeHex("not hex at all")
	assert.Error(t, err)

	_, err = DecodeHex("deadbeef")
	assert.Error(t, err, "short digests must be rejected")
}

type oneByteReader struct {
	r *bytes.Reader
}

func (o oneByteReader) Read(p []byte) (int, error) {
	if len(p) > 1 {
		p = p[:1]
	}
	return o.r.Read(p)
}
