package anthropic

import (
	"net/http"
	"time"
)

// Option configures a Provider.
type Option func(*Provider)

// WithAPIKey overrides the ANTHROPIC_API_KEY environment variable.
func WithAPIKey(apiKey string) Option {
	return func(p *Provider) { p.apiKey = apiKey }
}

// WithModel sets the model identifier sent on each request.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithEndpoint overrides the Messages API URL.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) { p.endpoint = endpoint }
}

// WithClient replaces the HTTP client.
func WithClient(client *http.Client) Option {
	return func(p *Provider) { p.client = client }
}

// WithVersion sets the anthropic-version header value.
func WithVersion(version string) Option {
	return func(p *Provider) { p.version = version }
}

// WithMaxTokens sets the default max_tokens for requests that do not
// specify one.
func WithMaxTokens(maxTokens int) Option {
	return func(p *Provider) { p.maxTokens = maxTokens }
}

// WithMaxRetries sets the total request attempt budget.
func WithMaxRetries(maxRetries int) Option {
	return func(p *Provider) { p.maxRetries = maxRetries }
}

// WithRetryBaseWait sets the backoff base wait between attempts.
func WithRetryBaseWait(wait time.Duration) Option {
	return func(p *Provider) { p.retryBaseWait = wait }
}
