package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/blockdoc/blockdoc/common/db"
)

// EnsureSchema creates the document table and its indexes if they do not
// exist. Statements are idempotent so every service can run this at startup.
func EnsureSchema(database *db.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS document (
			id UUID PRIMARY KEY,
			filename TEXT NOT NULL,
			path TEXT NOT NULL,
			size BIGINT NOT NULL,
			content_hash TEXT NOT NULL,
			chain_status TEXT NOT NULL DEFAULT 'pending',
			transaction_hash TEXT,
			superseded_tx_hash TEXT,
			confirmed_at TIMESTAMPTZ,
			last_error TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS document_content_hash_key ON document (content_hash)`,
		`CREATE INDEX IF NOT EXISTS document_chain_status_idx ON document (chain_status)`,
		`CREATE INDEX IF NOT EXISTS document_pending_tx_idx ON document (chain_status) WHERE transaction_hash IS NOT NULL`,
	}

	for _, stmt := range statements {
		if _, err := database.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
