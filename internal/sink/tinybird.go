// Package sink delivers event payloads to the Tinybird events API.
package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const defaultRequestTimeout = 10 * time.Second

var (
	// ErrEmptyEndpoint is returned when no delivery endpoint is configured.
	ErrEmptyEndpoint = errors.New("delivery endpoint must not be empty")

	// ErrEmptyToken is returned when no primary bearer token is configured.
	ErrEmptyToken = errors.New("delivery token must not be empty")

	// ErrUnexpectedStatus is returned when the endpoint answers with a non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// Tinybird posts event payloads as JSON to a single ingestion endpoint with
// bearer token authentication. When a secondary token is configured, every
// payload is posted a second time with that token.
type Tinybird struct {
	endpoint       string
	token          string
	secondaryToken string
	client         *http.Client
	log            *slog.Logger
}

// Option configures a Tinybird sink.
type Option func(*Tinybird) error

// WithSecondaryToken enables the second delivery with another bearer token.
func WithSecondaryToken(token string) Option {
	return func(t *Tinybird) error {
		t.secondaryToken = token
		return nil
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(t *Tinybird) error {
		if client == nil {
			return errors.New("http client must not be nil")
		}
		t.client = client
		return nil
	}
}

// WithLogger sets the logger for per-delivery debug logging.
func WithLogger(log *slog.Logger) Option {
	return func(t *Tinybird) error {
		t.log = log
		return nil
	}
}

// NewTinybird creates a sink for the given endpoint and primary token.
func NewTinybird(endpoint, token string, options ...Option) (*Tinybird, error) {
	if endpoint == "" {
		return nil, ErrEmptyEndpoint
	}
	if token == "" {
		return nil, ErrEmptyToken
	}

	sink := &Tinybird{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: defaultRequestTimeout},
		log:      slog.Default(),
	}

	for _, option := range options {
		if err := option(sink); err != nil {
			return nil, err
		}
	}

	return sink, nil
}

// Deliver posts the payload with the primary token and, when configured, once
// more with the secondary token. The first failed post aborts the delivery.
func (t *Tinybird) Deliver(ctx context.Context, payload []byte) error {
	if err := t.post(ctx, payload, t.token); err != nil {
		return fmt.Errorf("primary delivery: %w", err)
	}

	if t.secondaryToken != "" {
		if err := t.post(ctx, payload, t.secondaryToken); err != nil {
			return fmt.Errorf("secondary delivery: %w", err)
		}
	}

	return nil
}

func (t *Tinybird) post(ctx context.Context, payload []byte, token string) error {
	requestID := uuid.NewString()

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+token)
	request.Header.Set("X-Request-Id", requestID)

	response, err := t.client.Do(request)
	if err != nil {
		return fmt.Errorf("posting event: %w", err)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, response.Body)
		_ = response.Body.Close()
	}()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, response.StatusCode)
	}

	t.log.Debug("event delivered", "request_id", requestID, "status", response.StatusCode)

	return nil
}
