package httpx

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/arcadis/entreprise-os/internal/adapters/aifunc"
)

// maxAssistantPayload bounds the request body forwarded to edge functions.
const maxAssistantPayload = 1 << 20

// AssistantHandlers proxies assistant requests to the hosted edge functions.
// Invoker is optional; when nil the endpoint answers 404.
type AssistantHandlers struct {
	Invoker *aifunc.Invoker
}

// Invoke forwards the request body to the named edge function and relays the
// JSON response.
// POST /api/assistant/{function}.
func (h *AssistantHandlers) Invoke(w http.ResponseWriter, r *http.Request) {
	if h.Invoker == nil {
		http.NotFound(w, r)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxAssistantPayload))
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_body",
			Err:     err,
		})
		return
	}

	result, err := h.Invoker.Invoke(r.Context(), r.PathValue("function"), json.RawMessage(payload))
	if err != nil {
		WriteAppError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result); err != nil {
		return
	}
}
