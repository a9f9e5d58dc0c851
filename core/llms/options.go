package llms

import (
	"net/http"
	"time"
)

const DefaultTimeout = 20 * time.Second

// ClientOptions configure a hosted classification backend.
type ClientOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

type ClientOption func(*ClientOptions)

func WithAPIKey(apiKey string) ClientOption {
	return func(o *ClientOptions) { o.APIKey = apiKey }
}

func WithModel(model string) ClientOption {
	return func(o *ClientOptions) { o.Model = model }
}

// WithBaseURL points the client at a compatible endpoint, mostly useful for
// tests and proxies.
func WithBaseURL(baseURL string) ClientOption {
	return func(o *ClientOptions) { o.BaseURL = baseURL }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(o *ClientOptions) { o.HTTPClient = client }
}

// NewClientOptions applies opts over defaults.
func NewClientOptions(defaults ClientOptions, opts ...ClientOption) ClientOptions {
	options := defaults
	for _, opt := range opts {
		opt(&options)
	}
	if options.HTTPClient == nil {
		options.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	return options
}
