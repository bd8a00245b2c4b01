package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"linkage/internal/reconcile"
	dErrors "linkage/pkg/domain-errors"
)

// IdentifyResponse wraps the consolidated contact the way the public API
// exposes it.
type IdentifyResponse struct {
	Contact reconcile.ConsolidatedContact `json:"contact"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError centralizes domain error translation so every handler emits
// the same JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := string(dErrors.CodeInternal)
	message := "internal error"

	var de *dErrors.Error
	if errors.As(err, &de) {
		status = dErrors.ToHTTPStatus(de.Code)
		code = string(de.Code)
		message = de.Message
	}
	writeJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}
