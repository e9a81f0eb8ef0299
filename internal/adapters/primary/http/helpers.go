package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/lorrc/realtime-relay/internal/adapters/primary/http/middleware"
)

// GetRequestID retrieves the request ID placed in the context by the
// RequestID middleware.
func GetRequestID(ctx context.Context) string {
	return middleware.GetRequestID(ctx)
}

// WriteJSON is a helper to standardize JSON responses.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		return
	}
}
