package sink_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecommsim/datagen/internal/sink"
)

// recordedRequest captures what the ingestion endpoint received.
type recordedRequest struct {
	authorization string
	contentType   string
	requestID     string
	body          string
}

// fakeEndpoint is an httptest server standing in for the Tinybird events API.
type fakeEndpoint struct {
	server *httptest.Server

	mu       sync.Mutex
	status   int
	requests []recordedRequest
}

func newFakeEndpoint(t *testing.T, status int) *fakeEndpoint {
	t.Helper()

	endpoint := &fakeEndpoint{status: status}
	endpoint.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		endpoint.mu.Lock()
		endpoint.requests = append(endpoint.requests, recordedRequest{
			authorization: r.Header.Get("Authorization"),
			contentType:   r.Header.Get("Content-Type"),
			requestID:     r.Header.Get("X-Request-Id"),
			body:          string(body),
		})
		endpoint.mu.Unlock()

		w.WriteHeader(endpoint.status)
	}))
	t.Cleanup(endpoint.server.Close)

	return endpoint
}

func (e *fakeEndpoint) received() []recordedRequest {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]recordedRequest(nil), e.requests...)
}

func Test_NewTinybird_ValidatesConfiguration(t *testing.T) {
	_, err := sink.NewTinybird("", "token")
	assert.ErrorIs(t, err, sink.ErrEmptyEndpoint)

	_, err = sink.NewTinybird("https://api.example.com/v0/events", "")
	assert.ErrorIs(t, err, sink.ErrEmptyToken)

	_, err = sink.NewTinybird("https://api.example.com/v0/events", "token", sink.WithHTTPClient(nil))
	assert.Error(t, err)
}

func Test_Deliver_PostsWithBearerToken(t *testing.T) {
	endpoint := newFakeEndpoint(t, http.StatusAccepted)

	tinybird, err := sink.NewTinybird(endpoint.server.URL, "primary-token")
	require.NoError(t, err)

	err = tinybird.Deliver(context.Background(), []byte(`{"action":"view"}`))
	require.NoError(t, err)

	requests := endpoint.received()
	require.Len(t, requests, 1)
	assert.Equal(t, "Bearer primary-token", requests[0].authorization)
	assert.Equal(t, "application/json", requests[0].contentType)
	assert.Equal(t, `{"action":"view"}`, requests[0].body)

	_, err = uuid.Parse(requests[0].requestID)
	assert.NoError(t, err, "X-Request-Id must be a valid UUID")
}

func Test_Deliver_PostsTwiceWithSecondaryToken(t *testing.T) {
	endpoint := newFakeEndpoint(t, http.StatusOK)

	tinybird, err := sink.NewTinybird(endpoint.server.URL, "primary-token",
		sink.WithSecondaryToken("secondary-token"))
	require.NoError(t, err)

	err = tinybird.Deliver(context.Background(), []byte(`{"action":"cart"}`))
	require.NoError(t, err)

	requests := endpoint.received()
	require.Len(t, requests, 2)
	assert.Equal(t, "Bearer primary-token", requests[0].authorization)
	assert.Equal(t, "Bearer secondary-token", requests[1].authorization)
	assert.Equal(t, requests[0].body, requests[1].body, "both posts carry the identical payload")
	assert.NotEqual(t, requests[0].requestID, requests[1].requestID)
}

func Test_Deliver_FailsOnNonSuccessStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{name: "unauthorized", status: http.StatusUnauthorized},
		{name: "rate_limited", status: http.StatusTooManyRequests},
		{name: "server_error", status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			endpoint := newFakeEndpoint(t, tt.status)

			tinybird, err := sink.NewTinybird(endpoint.server.URL, "primary-token")
			require.NoError(t, err)

			err = tinybird.Deliver(context.Background(), []byte(`{}`))
			assert.ErrorIs(t, err, sink.ErrUnexpectedStatus)
		})
	}
}

func Test_Deliver_SecondaryFailureSurfacesAfterPrimarySuccess(t *testing.T) {
	var calls int
	var mu sync.Mutex

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		current := calls
		mu.Unlock()

		if current == 1 {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	tinybird, err := sink.NewTinybird(server.URL, "primary-token",
		sink.WithSecondaryToken("secondary-token"))
	require.NoError(t, err)

	err = tinybird.Deliver(context.Background(), []byte(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, sink.ErrUnexpectedStatus)
	assert.Contains(t, err.Error(), "secondary delivery")
}

func Test_Deliver_HonorsContextCancellation(t *testing.T) {
	endpoint := newFakeEndpoint(t, http.StatusOK)

	tinybird, err := sink.NewTinybird(endpoint.server.URL, "primary-token")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = tinybird.Deliver(ctx, []byte(`{}`))
	assert.ErrorIs(t, err, context.Canceled)
}
