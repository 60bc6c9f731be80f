package llm

import (
	"net/http"
	"time"
)

type options struct {
	baseURL string
	client  *http.Client
}

// Option customises a provider's transport.
type Option func(*options)

// WithBaseURL points the provider at a different endpoint (a proxy or a test server).
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithHTTPClient replaces the provider's HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

func applyOptions(defaultURL string, opts []Option) options {
	o := options{
		baseURL: defaultURL,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
