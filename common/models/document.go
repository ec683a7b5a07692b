package models

import (
	"time"

	"github.com/google/uuid"
)

// ChainStatus represents the blockchain registration state of a document
type ChainStatus string

const (
	ChainStatusPending   ChainStatus = "pending"
	ChainStatusConfirmed ChainStatus = "confirmed"
	ChainStatusFailed    ChainStatus = "failed"
)

// Document represents a registered document
// Maps to: document table
type Document struct {
	ID uuid.UUID `db:"id" json:"id"`

	// Original client filename
	Filename string `db:"filename" json:"filename"`

	// Path of the stored file, relative to the document store root
	Path string `db:"path" json:"-"`

	// File size in bytes
	Size int64 `db:"size" json:"size"`

	// Hex-encoded SHA-512 of the file bytes. Unique: the dedup key.
	ContentHash string `db:"content_hash" json:"content_hash"`

	ChainStatus ChainStatus `db:"chain_status" json:"chain_status"`

	// Hash of the broadcast transaction; nil until first broadcast, cleared
	// when a stuck transaction is replaced
	TransactionHash *string `db:"transaction_hash" json:"transaction_hash,omitempty"`

	// Last transaction hash abandoned by stuck-transaction replacement,
	// kept for the audit trail
	SupersededTxHash *string `db:"superseded_tx_hash" json:"superseded_tx_hash,omitempty"`

	// Set exactly when ChainStatus becomes confirmed
	ConfirmedAt *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`

	// Diagnostic from the most recent failure
	LastError *string `db:"last_error" json:"last_error,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// HasTransaction reports whether a transaction has been broadcast for this record
func (d *Document) HasTransaction() bool {
	return d.TransactionHash != nil && *d.TransactionHash != ""
}
