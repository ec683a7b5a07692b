// Package storage keeps uploaded document bytes on local disk and assembles
// chunked uploads.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/blockdoc/blockdoc/common/config"
	"github.com/blockdoc/blockdoc/common/logger"
)

var (
	// ErrSessionNotFound is returned for unknown upload session ids
	ErrSessionNotFound = errors.New("upload session not found")

	// ErrIncompleteUpload is returned when completion is requested before
	// every chunk has arrived
	ErrIncompleteUpload = errors.New("upload session is missing chunks")
)

// Store persists document files on local disk
type Store struct {
	documentDir  string
	uploadTmpDir string
	log          *logger.Logger
}

// UploadSession tracks one chunked upload in progress
type UploadSession struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	TotalChunks int       `json:"total_chunks"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewStore creates the store, ensuring both directories exist
func NewStore(cfg *config.StorageConfig, log *logger.Logger) (*Store, error) {
	for _, dir := range []string{cfg.DocumentDir, cfg.UploadTmpDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory %s: %w", dir, err)
		}
	}

	return &Store{
		documentDir:  cfg.DocumentDir,
		uploadTmpDir: cfg.UploadTmpDir,
		log:          log,
	}, nil
}

// Save streams the reader into the document store and returns the stored
// path (relative to the store root) and the byte count
func (s *Store) Save(r io.Reader, originalFilename string) (string, int64, error) {
	name := uuid.NewString() + filepath.Ext(originalFilename)
	full := filepath.Join(s.documentDir, name)

	f, err := os.Create(full)
	if err != nil {
		return "", 0, fmt.Errorf("create document file: %w", err)
	}

	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(full)
		return "", 0, fmt.Errorf("write document file: %w", err)
	}

	s.log.Debug("document stored", "path", name, "size", size)
	return name, size, nil
}

// Open returns a streamed reader over a stored document
func (s *Store) Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.documentDir, path))
	if err != nil {
		return nil, fmt.Errorf("open document file: %w", err)
	}
	return f, nil
}

// Remove deletes a stored document
func (s *Store) Remove(path string) error {
	if err := os.Remove(filepath.Join(s.documentDir, path)); err != nil {
		return fmt.Errorf("remove document file: %w", err)
	}
	return nil
}

// InitUpload opens a new chunked upload session
func (s *Store) InitUpload(filename string, totalChunks int) (*UploadSession, error) {
	if totalChunks < 1 {
		return nil, fmt.Errorf("total chunks must be >= 1, got %d", totalChunks)
	}

	session := &UploadSession{
		ID:          uuid.NewString(),
		Filename:    filename,
		TotalChunks: totalChunks,
		CreatedAt:   time.Now().UTC(),
	}

	dir := s.sessionDir(session.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload session dir: %w", err)
	}

	meta, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("marshal session metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "session.json"), meta, 0o644); err != nil {
		return nil, fmt.Errorf("write session metadata: %w", err)
	}

	s.log.Info("upload session opened", "session_id", session.ID, "filename", filename, "chunks", totalChunks)
	return session, nil
}

// Session loads an upload session by id
func (s *Store) Session(id string) (*UploadSession, error) {
	meta, err := os.ReadFile(filepath.Join(s.sessionDir(id), "session.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("read session metadata: %w", err)
	}

	var session UploadSession
	if err := json.Unmarshal(meta, &session); err != nil {
		return nil, fmt.Errorf("parse session metadata: %w", err)
	}
	return &session, nil
}

// WriteChunk stores one chunk of an upload session
func (s *Store) WriteChunk(id string, index int, r io.Reader) error {
	session, err := s.Session(id)
	if err != nil {
		return err
	}
	if index < 0 || index >= session.TotalChunks {
		return fmt.Errorf("chunk index %d out of range [0,%d)", index, session.TotalChunks)
	}

	full := filepath.Join(s.sessionDir(id), chunkName(index))
	f, err := os.Create(full)
	if err != nil {
		return fmt.Errorf("create chunk file: %w", err)
	}

	_, err = io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(full)
		return fmt.Errorf("write chunk file: %w", err)
	}
	return nil
}

// CompleteUpload reassembles the chunks in order and returns a reader over
// the assembled file plus the original filename. The session is removed once
// the reader is closed.
func (s *Store) CompleteUpload(id string) (io.ReadSeekCloser, *UploadSession, error) {
	session, err := s.Session(id)
	if err != nil {
		return nil, nil, err
	}

	dir := s.sessionDir(id)
	assembled := filepath.Join(dir, "assembled")

	out, err := os.Create(assembled)
	if err != nil {
		return nil, nil, fmt.Errorf("create assembled file: %w", err)
	}

	for i := 0; i < session.TotalChunks; i++ {
		chunk, err := os.Open(filepath.Join(dir, chunkName(i)))
		if err != nil {
			out.Close()
			if os.IsNotExist(err) {
				return nil, nil, fmt.Errorf("%w: chunk %d", ErrIncompleteUpload, i)
			}
			return nil, nil, fmt.Errorf("open chunk %d: %w", i, err)
		}

		_, err = io.Copy(out, chunk)
		chunk.Close()
		if err != nil {
			out.Close()
			return nil, nil, fmt.Errorf("assemble chunk %d: %w", i, err)
		}
	}

	if err := out.Close(); err != nil {
		return nil, nil, fmt.Errorf("finish assembled file: %w", err)
	}

	f, err := os.Open(assembled)
	if err != nil {
		return nil, nil, fmt.Errorf("open assembled file: %w", err)
	}

	return &sessionReader{File: f, store: s, sessionID: id}, session, nil
}

// DiscardUpload removes an upload session and its chunks
func (s *Store) DiscardUpload(id string) error {
	if err := os.RemoveAll(s.sessionDir(id)); err != nil {
		return fmt.Errorf("discard upload session: %w", err)
	}
	return nil
}

func (s *Store) sessionDir(id string) string {
	return filepath.Join(s.uploadTmpDir, id)
}

func chunkName(index int) string {
	return "chunk-" + strconv.Itoa(index)
}

// sessionReader cleans up the upload session when the assembled file is closed
type sessionReader struct {
	*os.File
	store     *Store
	sessionID string
}

func (r *sessionReader) Close() error {
	err := r.File.Close()
	if derr := r.store.DiscardUpload(r.sessionID); derr != nil {
		r.store.log.Warn("failed to discard upload session", "session_id", r.sessionID, "error", derr)
	}
	return err
}
