package aifunc

// Package aifunc calls the hosted edge functions backing the AI assistant
// and extracts fields from their JSON responses with JMESPath expressions.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	apperrors "github.com/arcadis/entreprise-os/internal/errors"
)

// function names are path segments; keep them tight
var reFunctionName = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Config controls the invoker.
type Config struct {
	// BaseURL is the edge function host, e.g. https://project.example.co.
	BaseURL string
	// APIKey is sent as both apikey and bearer token.
	APIKey string
	// Timeout bounds each invocation. Default 30s.
	Timeout time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Invoker calls named edge functions over HTTP.
type Invoker struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

// NewInvoker validates cfg and builds an Invoker.
func NewInvoker(cfg Config) (*Invoker, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("aifunc: BaseURL is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("aifunc: APIKey is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    httpClient,
		logger:  logger,
	}, nil
}

// Invoke POSTs payload to the named function and returns the raw JSON
// response body.
func (i *Invoker) Invoke(ctx context.Context, name string, payload json.RawMessage) (json.RawMessage, error) {
	if !reFunctionName.MatchString(name) {
		return nil, apperrors.ValidationField("function", "invalid function name")
	}
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		i.baseURL+"/functions/v1/"+name, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", i.apiKey)
	req.Header.Set("Authorization", "Bearer "+i.apiKey)

	start := time.Now()
	resp, err := i.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("invoke function %s: %w", name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read function %s response: %w", name, err)
	}

	i.logger.DebugContext(ctx, "function invoked",
		"function", name, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.Wrapf(
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
			apperrors.ErrCodeInternal,
			"function %s failed", name)
	}
	return body, nil
}

// InvokeAndExtract invokes the function and applies a JMESPath expression to
// the decoded response.
func (i *Invoker) InvokeAndExtract(ctx context.Context, name string, payload json.RawMessage, expr string) (any, error) {
	raw, err := i.Invoke(ctx, name, payload)
	if err != nil {
		return nil, err
	}
	return Extract(raw, expr)
}

// Extract applies a JMESPath expression to a raw JSON document.
func Extract(doc json.RawMessage, expr string) (any, error) {
	if _, err := jmespath.Compile(expr); err != nil {
		return nil, apperrors.ValidationField("expression", "invalid JMESPath expression")
	}
	var data any
	if err := json.Unmarshal(doc, &data); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	out, err := jmespath.Search(expr, data)
	if err != nil {
		return nil, fmt.Errorf("evaluate expression: %w", err)
	}
	return out, nil
}
