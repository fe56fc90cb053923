package producers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPClientProxy(t *testing.T) {
	client, err := NewHTTPClient(HTTPClientConfig{Proxy: "proxy.internal:3128"})
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, client.Timeout)

	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	req, err := http.NewRequest(http.MethodGet, "http://example.com", nil)
	require.NoError(t, err)
	proxyURL, err := transport.Proxy(req)
	require.NoError(t, err)
	assert.Equal(t, "http://proxy.internal:3128", proxyURL.String())

	_, err = NewHTTPClient(HTTPClientConfig{Proxy: "http://[::1"})
	assert.Error(t, err)
}

func TestDoJSONRejectsNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	var out map[string]any
	err := doJSON(context.Background(), server.Client(), request{url: server.URL}, &out)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}
