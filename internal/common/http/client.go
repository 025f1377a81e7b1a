// internal/common/http/client.go
package http

import (
	"net/http"
	"time"
)

// Client is the outbound HTTP client shared by the Supabase admin API
// and the webhook dispatcher. Both talk to the same few hosts over and
// over, so the transport keeps idle connections warm instead of
// redialing on every request.
type Client struct {
	httpClient *http.Client
}

// NewClient returns a client whose requests are cut off after timeout.
// Per-request deadlines still apply through the request context.
func NewClient(timeout time.Duration) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 8

	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// Do executes the request on the shared transport.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}
