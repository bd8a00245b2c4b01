package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	txcontext "linkage/pkg/platform/tx"
)

// PostgresStore writes events to the audit_outbox table. When the context
// carries an open transaction (a reconciliation in flight), Append uses it;
// the worker's reads and acks run on the plain handle.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON body stored alongside the indexed columns.
type outboxPayload struct {
	Action      string  `json:"action"`
	PrimaryID   int64   `json:"primaryId"`
	SecondaryID *int64  `json:"secondaryId,omitempty"`
	MergedIDs   []int64 `json:"mergedIds,omitempty"`
	RequestID   string  `json:"requestId,omitempty"`
	Timestamp   string  `json:"timestamp"`
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(outboxPayload{
		Action:      string(event.Action),
		PrimaryID:   event.PrimaryID,
		SecondaryID: event.SecondaryID,
		MergedIDs:   event.MergedIDs,
		RequestID:   event.RequestID,
		Timestamp:   event.Timestamp.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	query := `
		INSERT INTO audit_outbox (id, action, primary_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		event.ID,
		string(event.Action),
		event.PrimaryID,
		payload,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListUnpublished(ctx context.Context, limit int) ([]Event, error) {
	query := `
		SELECT id, action, primary_id, payload, created_at
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event   Event
			action  string
			payload []byte
		)
		if err := rows.Scan(&event.ID, &action, &event.PrimaryID, &payload, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		event.Action = Action(action)

		var body outboxPayload
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, fmt.Errorf("unmarshal outbox payload: %w", err)
		}
		event.SecondaryID = body.SecondaryID
		event.MergedIDs = body.MergedIDs
		event.RequestID = body.RequestID

		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return events, nil
}

func (s *PostgresStore) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	query := `
		UPDATE audit_outbox
		SET published_at = now()
		WHERE id = ANY($1::uuid[])
	`
	if _, err := s.db.ExecContext(ctx, query, pq.Array(raw)); err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}
