// Package audit records reconciliation outcomes. Events are appended to an
// outbox table in the same transaction as the graph mutation, so the trail
// can never disagree with the graph; a background worker drains the outbox
// to a pluggable publisher.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Action names what a committed reconciliation did to the graph.
type Action string

const (
	ActionCreatedPrimary    Action = "created_primary"
	ActionAttachedSecondary Action = "attached_secondary"
	ActionMergedGroups      Action = "merged_groups"
	ActionNoop              Action = "noop"
)

// Event is one committed reconciliation outcome.
type Event struct {
	ID          uuid.UUID
	Action      Action
	PrimaryID   int64
	SecondaryID *int64
	MergedIDs   []int64
	RequestID   string
	Timestamp   time.Time
}

// Store persists events. Append must honor an in-flight transaction in the
// context so the event commits atomically with the contact writes.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListUnpublished(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}
