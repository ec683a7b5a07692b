package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockdoc/blockdoc/common/config"
	"github.com/blockdoc/blockdoc/common/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	base := t.TempDir()
	store, err := NewStore(&config.StorageConfig{
		DocumentDir:  filepath.Join(base, "documents"),
		UploadTmpDir: filepath.Join(base, "uploads"),
	}, logger.New("error", "text"))
	require.NoError(t, err)
	return store
}

func TestSaveOpenRemove(t *testing.T) {
	store := newTestStore(t)

	path, size, err := store.Save(strings.NewReader("pdf bytes"), "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, int64(9), size)
	assert.Equal(t, ".pdf", filepath.Ext(path))

	f, err := store.Open(path)
	require.NoError(t, err)
	content, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "pdf bytes", string(content))

	require.NoError(t, store.Remove(path))
	_, err = store.Open(path)
	assert.Error(t, err)
}

func TestChunkedUpload_Assembly(t *testing.T) {
	store := newTestStore(t)

	session, err := store.InitUpload("big.pdf", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, session.TotalChunks)

	// Write out of order; assembly must follow chunk indexes
	require.NoError(t, store.WriteChunk(session.ID, 2, strings.NewReader("gamma")))
	require.NoError(t, store.WriteChunk(session.ID, 0, strings.NewReader("alpha")))
	require.NoError(t, store.WriteChunk(session.ID, 1, strings.NewReader("beta")))

	f, loaded, err := store.CompleteUpload(session.ID)
	require.NoError(t, err)
	assert.Equal(t, "big.pdf", loaded.Filename)

	content, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "alphabetagamma", string(content))

	// The assembled reader is seekable so it can be hashed then re-read
	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)

	require.NoError(t, f.Close())

	// Closing discards the session
	_, err = store.Session(session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestChunkedUpload_MissingChunk(t *testing.T) {
	store := newTestStore(t)

	session, err := store.InitUpload("partial.pdf", 2)
	require.NoError(t, err)
	require.NoError(t, store.WriteChunk(session.ID, 0, strings.NewReader("only half")))

	_, _, err = store.CompleteUpload(session.ID)
	assert.ErrorIs(t, err, ErrIncompleteUpload)

	// Incomplete completion must not destroy the session
	_, err = store.Session(session.ID)
	require.NoError(t, err)
}

func TestChunkedUpload_IndexOutOfRange(t *testing.T) {
	store := newTestStore(t)

	session, err := store.InitUpload("doc.pdf", 2)
	require.NoError(t, err)

	assert.Error(t, store.WriteChunk(session.ID, 2, strings.NewReader("x")))
	assert.Error(t, store.WriteChunk(session.ID, -1, strings.NewReader("x")))
}

func TestChunkedUpload_UnknownSession(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Session("no-such-session")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	err = store.WriteChunk("no-such-session", 0, strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, _, err = store.CompleteUpload("no-such-session")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDiscardUpload(t *testing.T) {
	store := newTestStore(t)

	session, err := store.InitUpload("doc.pdf", 1)
	require.NoError(t, err)
	require.NoError(t, store.DiscardUpload(session.ID))

	_, err = store.Session(session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Discarding twice is harmless
	require.NoError(t, store.DiscardUpload(session.ID))
}

func TestNewStore_CreatesDirectories(t *testing.T) {
	base := t.TempDir()
	docDir := filepath.Join(base, "a", "b", "documents")

	_, err := NewStore(&config.StorageConfig{
		DocumentDir:  docDir,
		UploadTmpDir: filepath.Join(base, "uploads"),
	}, logger.New("error", "text"))
	require.NoError(t, err)

	info, err := os.Stat(docDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
