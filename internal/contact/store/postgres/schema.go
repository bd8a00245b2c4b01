package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// The unique index is partial: soft-deleted rows fall out of it, so a pair
// can be re-observed after deletion. NULLs are distinct under Postgres
// defaults, which permits transient duplicate primaries sharing a phone;
// the next merge collapses them.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS contacts (
		id              BIGSERIAL PRIMARY KEY,
		email           TEXT,
		phone_number    TEXT,
		linked_id       BIGINT REFERENCES contacts(id),
		link_precedence TEXT NOT NULL CHECK (link_precedence IN ('primary', 'secondary')),
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		deleted_at      TIMESTAMPTZ,
		CHECK (email IS NOT NULL OR phone_number IS NOT NULL)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts (email)`,
	`CREATE INDEX IF NOT EXISTS idx_contacts_phone_number ON contacts (phone_number)`,
	`CREATE INDEX IF NOT EXISTS idx_contacts_linked_id ON contacts (linked_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_contacts_email_phone_linked
		ON contacts (email, phone_number, linked_id)
		WHERE deleted_at IS NULL`,
	`CREATE TABLE IF NOT EXISTS audit_outbox (
		id           UUID PRIMARY KEY,
		action       TEXT NOT NULL,
		primary_id   BIGINT NOT NULL,
		payload      JSONB NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		published_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_outbox_unpublished
		ON audit_outbox (created_at)
		WHERE published_at IS NULL`,
}

// EnsureSchema creates the tables and indexes if they do not exist. Safe to
// run on every startup.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
