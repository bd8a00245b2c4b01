package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkage/pkg/requestcontext"
)

func TestRecorderFillsDefaults(t *testing.T) {
	store := NewMemoryStore()
	recorder := NewRecorder(store)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), at)
	ctx = requestcontext.WithRequestID(ctx, "req-42")

	require.NoError(t, recorder.Emit(ctx, Event{Action: ActionCreatedPrimary, PrimaryID: 1}))

	events := store.Events()
	require.Len(t, events, 1)
	assert.NotEqual(t, uuid.Nil, events[0].ID)
	assert.Equal(t, at, events[0].Timestamp)
	assert.Equal(t, "req-42", events[0].RequestID)
}

type capturingPublisher struct {
	batches [][]Event
	err     error
}

func (p *capturingPublisher) Publish(ctx context.Context, events []Event) error {
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, events)
	return nil
}

func TestDrainPublishesAndAcks(t *testing.T) {
	store := NewMemoryStore()
	recorder := NewRecorder(store)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, recorder.Emit(ctx, Event{Action: ActionNoop, PrimaryID: int64(i + 1)}))
	}

	publisher := &capturingPublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	worker := NewWorker(store, publisher, logger, time.Minute)

	require.NoError(t, worker.drain(ctx))
	require.Len(t, publisher.batches, 1)
	assert.Len(t, publisher.batches[0], 3)

	// Everything acked: a second sweep finds nothing.
	require.NoError(t, worker.drain(ctx))
	assert.Len(t, publisher.batches, 1)
}

func TestFailedPublishLeavesEventsForNextSweep(t *testing.T) {
	store := NewMemoryStore()
	recorder := NewRecorder(store)
	ctx := context.Background()
	require.NoError(t, recorder.Emit(ctx, Event{Action: ActionNoop, PrimaryID: 1}))

	publisher := &capturingPublisher{err: errors.New("broker down")}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	worker := NewWorker(store, publisher, logger, time.Minute)

	require.Error(t, worker.drain(ctx))

	publisher.err = nil
	require.NoError(t, worker.drain(ctx))
	require.Len(t, publisher.batches, 1)
	assert.Len(t, publisher.batches[0], 1)
}

func TestWorkerStopsOnContextCancel(t *testing.T) {
	store := NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	worker := NewWorker(store, &capturingPublisher{}, logger, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
