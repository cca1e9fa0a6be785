package fetch

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newIPv4TestServer starts a test server bound to IPv4 loopback to avoid IPv6 listener issues.
func newIPv4TestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)

	server := httptest.NewUnstartedServer(handler)
	server.Listener = listener
	server.Start()

	t.Cleanup(server.Close)
	return server
}

func newTestFetcher(server *httptest.Server) *Fetcher {
	return New(
		WithHTTPClient(server.Client()),
		WithProbeClient(server.Client()),
		WithBackoffBase(time.Millisecond),
	)
}

func TestGetSuccess(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	server := newIPv4TestServer(t, mux)

	body, err := newTestFetcher(server).Get(context.Background(), server.URL+"/")
	require.NoError(t, err)
	require.Equal(t, `{"ok":true}`, string(body))
}

func TestGetRetriesOn503ThenSucceeds(t *testing.T) {
	var calls int
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 2 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("recovered"))
	})
	server := newIPv4TestServer(t, mux)

	body, err := newTestFetcher(server).Get(context.Background(), server.URL+"/")
	require.NoError(t, err)
	require.Equal(t, "recovered", string(body))
	require.Equal(t, 3, calls)
}

func TestGetDoesNotRetry404(t *testing.T) {
	var calls int
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "not found", http.StatusNotFound)
	})
	server := newIPv4TestServer(t, mux)

	_, err := newTestFetcher(server).Get(context.Background(), server.URL+"/")
	require.Error(t, err)
	require.Equal(t, 1, calls)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusNotFound, statusErr.Code)
	require.False(t, statusErr.Retryable())
}

func TestGetExhaustsRetriesOn503(t *testing.T) {
	var calls int
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})
	server := newIPv4TestServer(t, mux)

	_, err := newTestFetcher(server).Get(context.Background(), server.URL+"/")
	require.Error(t, err)
	require.Equal(t, 3, calls) // initial attempt + 2 retries

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.True(t, statusErr.Retryable())
}

func TestGetRetries429(t *testing.T) {
	var calls int
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	server := newIPv4TestServer(t, mux)

	body, err := newTestFetcher(server).Get(context.Background(), server.URL+"/")
	require.NoError(t, err)
	require.Equal(t, "ok", string(body))
	require.Equal(t, 2, calls)
}

func TestGetTransportErrorIsRetryable(t *testing.T) {
	server := newIPv4TestServer(t, http.NewServeMux())
	url := server.URL + "/"
	server.Close()

	_, err := New(WithBackoffBase(time.Millisecond), WithMaxRetries(1)).Get(context.Background(), url)
	require.Error(t, err)

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	require.True(t, IsRetryable(err))
}

func TestHeadReturnsStatusAndContentType(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/cover.jpg", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodHead, r.Method)
		w.Header().Set("Content-Type", "image/jpeg")
	})
	server := newIPv4TestServer(t, mux)

	probe, err := newTestFetcher(server).Head(context.Background(), server.URL+"/cover.jpg")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, probe.StatusCode)
	require.Equal(t, "image/jpeg", probe.ContentType)
}

func TestIsRetryableClassification(t *testing.T) {
	require.True(t, IsRetryable(&TransportError{URL: "u", Err: errors.New("timeout")}))
	require.True(t, IsRetryable(&StatusError{URL: "u", Code: 429}))
	require.True(t, IsRetryable(&StatusError{URL: "u", Code: 500}))
	require.True(t, IsRetryable(&StatusError{URL: "u", Code: 599}))
	require.False(t, IsRetryable(&StatusError{URL: "u", Code: 404}))
	require.False(t, IsRetryable(&StatusError{URL: "u", Code: 400}))
	require.False(t, IsRetryable(&DecodeError{Source: "catalog", Err: errors.New("bad json")}))
	require.False(t, IsRetryable(errors.New("plain error")))
}
