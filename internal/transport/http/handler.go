// Package httptransport is the thin HTTP layer. It validates and normalizes
// the wire request, delegates to the reconcile service, and translates
// errors; no business logic lives here.
package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"linkage/internal/reconcile"
	dErrors "linkage/pkg/domain-errors"
	"linkage/pkg/requestcontext"
)

// maxBodyBytes bounds the identify request body.
const maxBodyBytes = 1 << 20

//go:generate mockgen -source=handler.go -destination=mocks/reconcile-mocks.go -package=mocks Service

// Service is the reconciliation engine the handler delegates to.
type Service interface {
	Reconcile(ctx context.Context, email, phone *string) (reconcile.ConsolidatedContact, error)
}

// Pinger is the store liveness probe backing /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	service Service
	store   Pinger
	logger  *slog.Logger
}

func New(service Service, store Pinger, logger *slog.Logger) *Handler {
	return &Handler{service: service, store: store, logger: logger}
}

// Register mounts the public routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/identify", h.handleIdentify)
	r.Get("/health", h.handleHealth)
}

func (h *Handler) handleIdentify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var req IdentifyRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid identify request body",
			"request_id", requestID,
			"error", err.Error(),
		)
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	// Trailing garbage after the JSON object is a malformed body too.
	if dec.More() {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	email, phone, err := req.normalize()
	if err != nil {
		h.logger.WarnContext(ctx, "identify request rejected",
			"request_id", requestID,
			"error", err.Error(),
		)
		writeError(w, err)
		return
	}

	consolidated, err := h.service.Reconcile(ctx, email, phone)
	if err != nil {
		if dErrors.Is(err, dErrors.CodeBadRequest) {
			writeError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "reconcile failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, IdentifyResponse{Contact: consolidated})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
