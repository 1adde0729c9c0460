package source

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"meme-aggregator/internal/retry"
)

func testLogger(t *testing.T) *log.Logger {
	t.Helper()
	return log.New(testWriter{t}, "", 0)
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestClient_RetriesRateLimitedCalls(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer server.Close()

	c := newClient("test", server.URL, 100, testLogger(t))
	c.policy = retry.Policy{MaxRetries: 2, BaseDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond}

	got, err := run(context.Background(), c, func() (string, error) {
		var resp map[string]string
		if err := c.getJSON(context.Background(), "/", nil, &resp); err != nil {
			return "", err
		}
		return resp["status"], nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", got)
	require.Equal(t, int32(2), calls.Load())
}

func TestClient_NonRetryableStatusFailsImmediately(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c := newClient("test", server.URL, 100, testLogger(t))
	c.policy = retry.Policy{MaxRetries: 3, BaseDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond}

	_, err := run(context.Background(), c, func() (struct{}, error) {
		var resp struct{}
		return resp, c.getJSON(context.Background(), "/", nil, &resp)
	})
	require.Error(t, err)
	require.Equal(t, int32(1), calls.Load(), "400 must not consume retries")

	var statusErr *retry.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadRequest, statusErr.Code)
}
