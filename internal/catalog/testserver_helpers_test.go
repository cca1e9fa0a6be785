package catalog

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bookdex/internal/fetch"
	"bookdex/internal/ratelimit"
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

func newTestFetcher(server *httptest.Server) *fetch.Fetcher {
	return fetch.New(
		fetch.WithHTTPClient(server.Client()),
		fetch.WithProbeClient(server.Client()),
		fetch.WithBackoffBase(time.Millisecond),
	)
}

// unthrottled returns a limiter tests can hammer without sleeping.
func unthrottled(name string) *ratelimit.Limiter {
	return ratelimit.New(name, 1000)
}
