// Package agent talks to the external AI agents. Each endpoint has its own
// URL, timeout and reply convention; callers only pick the endpoint by name.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"startup-hub/config"
	"startup-hub/constants"
	"startup-hub/metrics"
)

// Endpoint names.
const (
	Chat        = "chat"
	Description = "description"
	Analysis    = "analysis"
)

const maxBodyBytes = 8 << 20

// Endpoint describes one agent and how to read its replies.
type Endpoint struct {
	Name    string
	URL     string
	Timeout time.Duration
	// ResponseKeys are tried in order on a JSON object reply.
	ResponseKeys []string
	// Fallback is returned when no key matches; empty means ErrNoReply.
	Fallback string
	// Raw endpoints return the body verbatim.
	Raw bool
}

// Asker is what services depend on.
type Asker interface {
	Ask(ctx context.Context, endpoint string, payload any) (string, error)
}

// ErrNoReply means the agent answered with JSON that holds none of the
// expected keys, or an empty value.
var ErrNoReply = errors.New("AI agent returned an empty response")

// ErrReplyTooLarge means the reply body exceeded the read limit. It is not
// retried: the agent would answer the same way again.
var ErrReplyTooLarge = fmt.Errorf("AI agent reply exceeds %d bytes", maxBodyBytes)

// TransportError covers network failures, timeouts and non-2xx statuses.
type TransportError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s agent returned status %d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s agent request failed: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError means the reply body was not the JSON object the endpoint expects.
type ParseError struct {
	Endpoint string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s agent reply is not valid JSON: %v", e.Endpoint, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsTransport reports whether err came from the network or an HTTP status.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsParse reports whether err is a malformed reply.
func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// Client is the single HTTP client for every agent endpoint.
type Client struct {
	httpClient *http.Client
	endpoints  map[string]Endpoint
	logger     zerolog.Logger
	metrics    *metrics.Recorder
}

var _ Asker = (*Client)(nil)

// Endpoints builds the three endpoint definitions from configuration.
func Endpoints(cfg config.AgentsConfig) []Endpoint {
	return []Endpoint{
		{
			Name:         Chat,
			URL:          cfg.Chat.URL,
			Timeout:      cfg.Chat.Timeout,
			ResponseKeys: []string{"response", "answer"},
			Fallback:     constants.ChatReplyFallback,
		},
		{
			Name:         Description,
			URL:          cfg.Description.URL,
			Timeout:      cfg.Description.Timeout,
			ResponseKeys: []string{"response"},
		},
		{
			Name:    Analysis,
			URL:     cfg.Analysis.URL,
			Timeout: cfg.Analysis.Timeout,
			Raw:     true,
		},
	}
}

// NewClient registers the given endpoints. httpClient may be nil.
func NewClient(httpClient *http.Client, logger zerolog.Logger, rec *metrics.Recorder, endpoints ...Endpoint) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	c := &Client{
		httpClient: httpClient,
		endpoints:  make(map[string]Endpoint, len(endpoints)),
		logger:     logger,
		metrics:    rec,
	}
	for _, ep := range endpoints {
		c.endpoints[ep.Name] = ep
	}
	return c
}

// Endpoint returns the definition registered under name.
func (c *Client) Endpoint(name string) (Endpoint, bool) {
	ep, ok := c.endpoints[name]
	return ep, ok
}

// Ask posts payload as JSON to the named endpoint and extracts the reply text.
func (c *Client) Ask(ctx context.Context, name string, payload any) (string, error) {
	ep, ok := c.endpoints[name]
	if !ok {
		return "", fmt.Errorf("agent endpoint %q is not configured", name)
	}

	start := time.Now()
	body, err := c.post(ctx, ep, payload)
	outcome := "ok"
	var reply string
	if err == nil {
		reply, err = extract(ep, body)
	}
	switch {
	case err == nil:
	case IsTransport(err):
		outcome = "transport_error"
	case IsParse(err):
		outcome = "parse_error"
	case errors.Is(err, ErrNoReply):
		outcome = "empty_reply"
	default:
		outcome = "error"
	}
	elapsed := time.Since(start)
	c.metrics.ObserveAgentCall(ep.Name, outcome, elapsed)

	evt := c.logger.Debug()
	if err != nil {
		evt = c.logger.Warn().Err(err)
	}
	evt.Str("endpoint", ep.Name).Str("outcome", outcome).Dur("elapsed", elapsed).Msg("agent call")
	return reply, err
}

func (c *Client) post(ctx context.Context, ep Endpoint, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", ep.Name, err)
	}

	if ep.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ep.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(raw))
	if err != nil {
		return nil, &TransportError{Endpoint: ep.Name, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Endpoint: ep.Name, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, &TransportError{Endpoint: ep.Name, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return nil, &TransportError{
			Endpoint:   ep.Name,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s: %s", resp.Status, snippet),
		}
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("%s reply: %w", ep.Name, ErrReplyTooLarge)
	}
	return body, nil
}

func extract(ep Endpoint, body []byte) (string, error) {
	if ep.Raw {
		return string(body), nil
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return "", &ParseError{Endpoint: ep.Name, Err: err}
	}
	if text, ok := ReplyText(obj, ep.ResponseKeys); ok {
		return text, nil
	}
	if ep.Fallback != "" {
		return ep.Fallback, nil
	}
	return "", ErrNoReply
}

// ReplyText returns the first non-empty value among keys. Non-string values
// are re-encoded as JSON.
func ReplyText(obj map[string]any, keys []string) (string, bool) {
	for _, k := range keys {
		v, ok := obj[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if t == "" {
				continue
			}
			return t, true
		default:
			raw, err := json.Marshal(t)
			if err != nil {
				continue
			}
			return string(raw), true
		}
	}
	return "", false
}
