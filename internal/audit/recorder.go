package audit

import (
	"context"

	"github.com/google/uuid"

	"linkage/pkg/requestcontext"
)

// Recorder captures structured outcome events. It is append-only and goes
// through the Store so tests can swap sinks.
type Recorder struct {
	store Store
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Emit assigns id and timestamp defaults and appends the event. The
// timestamp comes from the request-scoped clock when one is present.
func (r *Recorder) Emit(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	return r.store.Append(ctx, event)
}
