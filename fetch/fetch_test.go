package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testOptions() Options {
	return Options{
		Timeout:    time.Second,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
	}
}

func TestFetcher_ClientErrorIsAttemptedOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"wallet not found"}`))
	}))
	defer srv.Close()

	f := NewFetcher(zaptest.NewLogger(t), srv.Client())
	_, err := f.Get(context.Background(), srv.URL, testOptions())
	require.Error(t, err)

	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.Status)
	assert.Equal(t, "wallet not found", fe.Message)
	assert.Equal(t, uint(1), fe.Attempts)
	assert.ErrorIs(t, err, ErrClientError)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetcher_ServerErrorIsRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	opts := testOptions()
	f := NewFetcher(zaptest.NewLogger(t), srv.Client())
	_, err := f.Get(context.Background(), srv.URL, opts)
	require.Error(t, err)

	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 0, fe.Status, "exhausted retries report status 0")
	assert.Contains(t, fe.Message, "502")
	assert.ErrorIs(t, err, ErrServerError)
	assert.Equal(t, int32(1+opts.MaxRetries), hits.Load())
	assert.Equal(t, uint(1+opts.MaxRetries), fe.Attempts)
}

func TestFetcher_RecoversAfterTransientFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"isVerified":true}`))
	}))
	defer srv.Close()

	f := NewFetcher(zaptest.NewLogger(t), srv.Client())
	resp, err := f.Get(context.Background(), srv.URL, testOptions())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		IsVerified bool `json:"isVerified"`
	}
	require.NoError(t, resp.Decode(&out))
	assert.True(t, out.IsVerified)
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetcher_TimeoutCountsAsRetryableFailure(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	opts := Options{
		Timeout:    20 * time.Millisecond,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	}
	f := NewFetcher(zaptest.NewLogger(t), srv.Client())
	_, err := f.Get(context.Background(), srv.URL, opts)
	require.Error(t, err)

	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 0, fe.Status)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, uint(3), fe.Attempts)
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetcher_PostBodyIsResentOnRetry(t *testing.T) {
	var (
		hits   atomic.Int32
		bodies = make(chan string, 4)
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies <- string(b)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := NewFetcher(zaptest.NewLogger(t), srv.Client())
	_, err := f.PostJSON(context.Background(), srv.URL, map[string]string{"wallet": "0xabc"}, testOptions())
	require.NoError(t, err)

	close(bodies)
	var got []string
	for b := range bodies {
		got = append(got, b)
	}
	assert.Equal(t, []string{`{"wallet":"0xabc"}`, `{"wallet":"0xabc"}`}, got)
}

func TestFetcher_CancelledContextStopsRetrying(t *testing.T) {
	var hits atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		cancel()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	opts := testOptions()
	opts.RetryDelay = 50 * time.Millisecond
	f := NewFetcher(zaptest.NewLogger(t), srv.Client())
	_, err := f.Get(ctx, srv.URL, opts)
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "bad wallet", message(400, []byte(`{"message":"bad wallet"}`)))
	assert.Equal(t, "plain text", message(400, []byte("plain text\n")))
	assert.Equal(t, "Bad Request", message(400, nil))
}

func TestFetcher_BackoffWithoutDelay(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewFetcher(zaptest.NewLogger(t), srv.Client())
	var err error
	require.NotPanics(t, func() {
		_, err = f.Get(context.Background(), srv.URL, Options{Timeout: time.Second, MaxRetries: 2, Backoff: true})
	})
	require.ErrorIs(t, err, ErrServerError)
	assert.Equal(t, int32(3), hits.Load())

	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, uint(3), fe.Attempts)
}
