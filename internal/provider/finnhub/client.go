package finnhub

import (
	"net/http"
	"net/url"
)

const baseURL = "https://finnhub.io/api/v1"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=finnhub_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// FinnhubAPIClient talks to the Finnhub REST API. Authentication is a
// token query parameter carried on every request; Finnhub has no header
// or body auth variant, so the client keeps no per-request header state.
type FinnhubAPIClient struct {
	baseURL    string
	httpClient HTTPClient
	// query holds parameters sent with every request (the auth token).
	query url.Values
}

// FinnhubAPIClientOption is a configuration option for the client.
type FinnhubAPIClientOption func(*FinnhubAPIClient)

// WithBaseURL points the client at a different API root. Used by tests
// and for proxying.
func WithBaseURL(baseURL string) FinnhubAPIClientOption {
	return func(c *FinnhubAPIClient) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(httpClient HTTPClient) FinnhubAPIClientOption {
	return func(c *FinnhubAPIClient) {
		c.httpClient = httpClient
	}
}

// NewFinnhubAPIClient builds a client for the given API token.
func NewFinnhubAPIClient(token string, options ...FinnhubAPIClientOption) (*FinnhubAPIClient, error) {
	c := &FinnhubAPIClient{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		query:      url.Values{},
	}
	if token != "" {
		// https://finnhub.io/docs/api/authentication
		c.query.Add("token", token)
	}
	for _, option := range options {
		option(c)
	}
	return c, nil
}
