// Package contact defines the store contract the reconciler speaks. It is
// interface-driven so the postgres store and the in-memory store are
// interchangeable and the domain logic stays hermetically testable.
package contact

import (
	"context"

	"linkage/internal/domain"
)

// Tx is the set of operations available inside one transaction. All reads
// exclude soft-deleted rows and return rows ordered by created_at ascending,
// ties broken by ascending id.
type Tx interface {
	// FindLiveMatching returns contacts whose email or phone equals the
	// given values. A nil field drops its disjunct; matching on absent is
	// never performed.
	FindLiveMatching(ctx context.Context, email, phone *string) ([]domain.Contact, error)

	// FindLiveByIDs returns the live contacts with the given ids.
	FindLiveByIDs(ctx context.Context, ids []int64) ([]domain.Contact, error)

	// FindLiveGroup returns the primary plus all live secondaries whose
	// linked_id references it.
	FindLiveGroup(ctx context.Context, primaryID int64) ([]domain.Contact, error)

	// InsertContact inserts a row and returns it with store-assigned id and
	// timestamps. Fails with sentinel.ErrUniqueConflict when the
	// (email, phone, linked_id) index rejects it.
	InsertContact(ctx context.Context, email, phone *string, linkedID *int64, precedence domain.Precedence) (domain.Contact, error)

	// Demote flips a primary to a secondary of linkedID. Fails with
	// sentinel.ErrInvalidState when the target row is not live.
	Demote(ctx context.Context, id, linkedID int64) error

	// RelinkChildren repoints every live secondary of fromLinkedID at
	// toLinkedID and returns the number of rows updated.
	RelinkChildren(ctx context.Context, fromLinkedID, toLinkedID int64) (int64, error)
}

// Store opens serializable transactions against the contact graph. RunInTx
// commits when fn returns nil and rolls back otherwise; it never retries —
// retry policy belongs to the reconciler.
type Store interface {
	RunInTx(ctx context.Context, fn func(tx Tx) error) error

	// Ping is the liveness probe used by health checks; a trivial
	// round-trip query outside any transaction.
	Ping(ctx context.Context) error
}
