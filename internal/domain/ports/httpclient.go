package ports

import (
	"net"
	"net/http"
	"time"
)

// HTTPClient abstracts HTTP operations for testability
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPClientConfig holds configuration for the upstream streaming client
type HTTPClientConfig struct {
	DialTimeout           time.Duration
	ResponseHeaderTimeout time.Duration
	UserAgent             string
}

// StreamingHTTPClient is an HTTPClient suited to long-lived responses.
// It never applies an overall request timeout; only connection setup is bounded.
type StreamingHTTPClient struct {
	client *http.Client
	config HTTPClientConfig
}

// NewStreamingHTTPClient creates a client for server-sent event streams
func NewStreamingHTTPClient(config HTTPClientConfig) HTTPClient {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
		MaxIdleConns:          4,
		IdleConnTimeout:       90 * time.Second,
		// Compressed event streams buffer until the gzip block fills
		DisableCompression: true,
	}

	return &StreamingHTTPClient{
		client: &http.Client{Transport: transport},
		config: config,
	}
}

// Do executes an HTTP request
func (c *StreamingHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if c.config.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	return c.client.Do(req)
}
