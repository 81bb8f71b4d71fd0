package httpx

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcadis/entreprise-os/internal/adapters/aifunc"
)

func newAssistantHandlers(t *testing.T, upstream http.HandlerFunc) *AssistantHandlers {
	t.Helper()
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	invoker, err := aifunc.NewInvoker(aifunc.Config{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Logger:  testLogger(),
	})
	require.NoError(t, err)
	return &AssistantHandlers{Invoker: invoker}
}

func TestAssistantInvoke_ProxiesRequestAndResponse(t *testing.T) {
	var gotPath string
	var gotBody []byte
	h := newAssistantHandlers(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"reply":"Bonjour, comment puis-je vous aider ?"}`))
	})

	r := httptest.NewRequest(http.MethodPost, "/api/assistant/chat",
		strings.NewReader(`{"message":"Bonjour"}`))
	r.SetPathValue("function", "chat")
	w := httptest.NewRecorder()
	h.Invoke(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/functions/v1/chat", gotPath)
	assert.JSONEq(t, `{"message":"Bonjour"}`, string(gotBody))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body["reply"], "Bonjour")
}

func TestAssistantInvoke_RejectsBadFunctionName(t *testing.T) {
	h := newAssistantHandlers(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be called")
	})

	r := httptest.NewRequest(http.MethodPost, "/api/assistant/bad", nil)
	r.SetPathValue("function", "../secrets")
	w := httptest.NewRecorder()
	h.Invoke(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAssistantInvoke_UpstreamFailureIs500(t *testing.T) {
	h := newAssistantHandlers(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	r := httptest.NewRequest(http.MethodPost, "/api/assistant/chat", nil)
	r.SetPathValue("function", "chat")
	w := httptest.NewRecorder()
	h.Invoke(w, r)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAssistantInvoke_WithoutInvokerIs404(t *testing.T) {
	h := &AssistantHandlers{}

	r := httptest.NewRequest(http.MethodPost, "/api/assistant/chat", nil)
	r.SetPathValue("function", "chat")
	w := httptest.NewRecorder()
	h.Invoke(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
