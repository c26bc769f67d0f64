package katoni

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("unable to start test server listener: %v", err)
	}
	server := httptest.NewUnstartedServer(handler)
	server.Listener = ln
	server.Start()
	return server
}

func newTestClient(t *testing.T, params ConfigParams) *Client {
	t.Helper()
	client, err := NewClientWithParams(params)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func int64Ptr(v int64) *int64 { return &v }
