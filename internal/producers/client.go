package producers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnexpectedStatus marks a non-2xx response from a collaborator.
var ErrUnexpectedStatus = errors.New("producers: unexpected status")

// HTTPClientConfig configures the shared outbound client.
type HTTPClientConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	Proxy   string        `yaml:"proxy"`
}

// NewHTTPClient builds the outbound client used by every producer. An empty
// proxy falls back to the environment.
func NewHTTPClient(cfg HTTPClientConfig) (*http.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Proxy != "" {
		raw := cfg.Proxy
		if !strings.HasPrefix(raw, "http") {
			raw = "http://" + raw
		}
		proxyURL, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("producers: invalid proxy %q: %w", cfg.Proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	return &http.Client{Timeout: timeout, Transport: transport}, nil
}

type request struct {
	method  string
	url     string
	body    any
	headers map[string]string
	user    string
	pass    string
}

func doJSON(ctx context.Context, client *http.Client, req request, out any) error {
	raw, err := doRaw(ctx, client, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("producers: decode %s: %w", req.url, err)
	}
	return nil
}

func doRaw(ctx context.Context, client *http.Client, req request) ([]byte, error) {
	var reqBody io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(payload)
	}
	method := req.method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.url, reqBody)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for key, value := range req.headers {
		if strings.EqualFold(key, "Host") {
			httpReq.Host = value
			continue
		}
		httpReq.Header.Set(key, value)
	}
	if req.user != "" || req.pass != "" {
		httpReq.SetBasicAuth(req.user, req.pass)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s %s: %d", ErrUnexpectedStatus, method, req.url, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
