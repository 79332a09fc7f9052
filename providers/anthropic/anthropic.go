// Package anthropic implements the llm.Model interface over the Anthropic
// Messages HTTP API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/driftwood-ai/convoy/llm"
	"github.com/driftwood-ai/convoy/providers"
	"github.com/driftwood-ai/convoy/retry"
)

var (
	DefaultModel         = "claude-sonnet-4-0"
	DefaultEndpoint      = "https://api.anthropic.com/v1/messages"
	DefaultMaxTokens     = 4096
	DefaultClient        = &http.Client{Timeout: 300 * time.Second}
	DefaultMaxRetries    = 6
	DefaultRetryBaseWait = 2 * time.Second
	DefaultVersion       = "2023-06-01"
)

var _ llm.Model = &Provider{}

type Provider struct {
	client        *http.Client
	apiKey        string
	endpoint      string
	model         string
	maxTokens     int
	maxRetries    int
	retryBaseWait time.Duration
	version       string
}

func New(opts ...Option) *Provider {
	p := &Provider{
		apiKey:        os.Getenv("ANTHROPIC_API_KEY"),
		endpoint:      DefaultEndpoint,
		client:        DefaultClient,
		model:         DefaultModel,
		maxTokens:     DefaultMaxTokens,
		maxRetries:    DefaultMaxRetries,
		retryBaseWait: DefaultRetryBaseWait,
		version:       DefaultVersion,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string {
	return p.model
}

func (p *Provider) Generate(ctx context.Context, messages []*llm.Message, opts ...llm.GenerateOption) (*llm.Response, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("anthropic api key is not set")
	}
	config := &llm.GenerateConfig{}
	config.Apply(opts)

	var request Request
	p.applyRequestConfig(&request, config)

	msgs, err := convertMessages(messages)
	if err != nil {
		return nil, err
	}
	request.Messages = msgs

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	var result Response
	err = retry.Do(ctx, func() error {
		req, err := p.createRequest(ctx, body)
		if err != nil {
			return err
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return fmt.Errorf("error making request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return providers.NewError(resp.StatusCode, string(body))
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("error decoding response: %w", err)
		}
		return nil
	}, retry.WithMaxRetries(p.maxRetries), retry.WithBaseWait(p.retryBaseWait))

	if err != nil {
		return nil, err
	}
	return convertResponse(&result)
}

func (p *Provider) applyRequestConfig(request *Request, config *llm.GenerateConfig) {
	if config.Model != "" {
		request.Model = config.Model
	} else {
		request.Model = p.model
	}
	if config.MaxTokens != nil {
		request.MaxTokens = config.MaxTokens
	} else {
		request.MaxTokens = &p.maxTokens
	}
	request.System = config.SystemPrompt
	request.Temperature = config.Temperature
	if len(config.Tools) > 0 {
		tools := make([]*ToolSpec, len(config.Tools))
		for i, tool := range config.Tools {
			tools[i] = &ToolSpec{
				Name:        tool.Name(),
				Description: tool.Description(),
				InputSchema: tool.Schema(),
			}
		}
		request.Tools = tools
	}
}

func (p *Provider) createRequest(ctx context.Context, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", p.apiKey)
	req.Header.Set("Anthropic-Version", p.version)
	return req, nil
}
