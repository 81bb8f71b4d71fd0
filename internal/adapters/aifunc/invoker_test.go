package aifunc

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/arcadis/entreprise-os/internal/errors"
)

func newTestInvoker(t *testing.T, handler http.HandlerFunc) *Invoker {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	inv, err := NewInvoker(Config{
		BaseURL: srv.URL,
		APIKey:  "anon-key",
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return inv
}

func TestNewInvoker_Validation(t *testing.T) {
	_, err := NewInvoker(Config{APIKey: "k"})
	require.Error(t, err)
	_, err = NewInvoker(Config{BaseURL: "http://localhost"})
	require.Error(t, err)
}

func TestInvoke_Success(t *testing.T) {
	inv := newTestInvoker(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/functions/v1/assistant-chat", r.URL.Path)
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"message":"bonjour"}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"reply":"Bonjour, comment puis-je aider ?"}`))
	})

	raw, err := inv.Invoke(context.Background(), "assistant-chat", json.RawMessage(`{"message":"bonjour"}`))
	require.NoError(t, err)

	var out map[string]string
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "Bonjour, comment puis-je aider ?", out["reply"])
}

func TestInvoke_EmptyPayloadDefaultsToObject(t *testing.T) {
	inv := newTestInvoker(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{}`, string(body))
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := inv.Invoke(context.Background(), "assistant-chat", nil)
	require.NoError(t, err)
}

func TestInvoke_RejectsBadFunctionName(t *testing.T) {
	inv := newTestInvoker(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request must not reach the server")
	})

	for _, name := range []string{"", "../secrets", "Name With Spaces", "UPPER"} {
		_, err := inv.Invoke(context.Background(), name, nil)
		require.Error(t, err, "name %q", name)
		assert.True(t, apperrors.IsValidation(err))
	}
}

func TestInvoke_UpstreamError(t *testing.T) {
	inv := newTestInvoker(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"model unavailable"}`))
	})

	_, err := inv.Invoke(context.Background(), "assistant-chat", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsInternal(err))
	assert.Contains(t, err.Error(), "502")
}

func TestExtract(t *testing.T) {
	doc := json.RawMessage(`{
		"choices": [
			{"message": {"content": "premier"}},
			{"message": {"content": "second"}}
		]
	}`)

	out, err := Extract(doc, "choices[0].message.content")
	require.NoError(t, err)
	assert.Equal(t, "premier", out)

	out, err = Extract(doc, "choices[].message.content")
	require.NoError(t, err)
	assert.Equal(t, []any{"premier", "second"}, out)
}

func TestExtract_InvalidExpression(t *testing.T) {
	_, err := Extract(json.RawMessage(`{}`), "choices[")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "expression", apperrors.GetField(err))
}

func TestExtract_MissingPathYieldsNil(t *testing.T) {
	out, err := Extract(json.RawMessage(`{"a":1}`), "b.c")
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestInvokeAndExtract(t *testing.T) {
	inv := newTestInvoker(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"reply":{"text":"voilà"}}`))
	})

	out, err := inv.InvokeAndExtract(context.Background(), "assistant-chat", nil, "reply.text")
	require.NoError(t, err)
	assert.Equal(t, "voilà", out)
}
