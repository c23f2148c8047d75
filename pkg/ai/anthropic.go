package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicModel     = "claude-haiku-4-5-20251001"
	defaultAnthropicMaxTokens = 2048
)

// AnthropicClient implements Client using the Anthropic messages API. Structured
// calls use the JSON output format instead of tool calling.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
	gate   *gate
	inst   instrument
}

// NewAnthropicClient creates an Anthropic-backed client.
func NewAnthropicClient(cfg Config) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}

	return &AnthropicClient{
		client: &client,
		model:  model,
		gate:   newGate(cfg.MaxConcurrency, cfg.Timeout),
		inst:   newInstrument(ProviderAnthropic, model, "", cfg.Logger),
	}, nil
}

func (c *AnthropicClient) Provider() string { return ProviderAnthropic }

func (c *AnthropicClient) Model() string { return c.model }

func (c *AnthropicClient) Complete(parent context.Context, req CompletionRequest) (text string, err error) {
	ctx, span, started := c.inst.start(parent, "complete")
	defer func() { c.inst.finish(span, started, "complete", err) }()

	callCtx, release, err := c.gate.enter(ctx)
	if err != nil {
		return "", &CallError{Provider: ProviderAnthropic, Err: err}
	}
	defer release()

	msg, err := c.client.Messages.New(callCtx, c.params(req))
	if err != nil {
		return "", mapAnthropicError(err)
	}
	return extractAnthropicText(msg)
}

func (c *AnthropicClient) CompleteStructured(parent context.Context, req StructuredRequest) (args map[string]interface{}, err error) {
	ctx, span, started := c.inst.start(parent, "structured")
	defer func() { c.inst.finish(span, started, "structured", err) }()

	callCtx, release, err := c.gate.enter(ctx)
	if err != nil {
		return nil, &CallError{Provider: ProviderAnthropic, Err: err}
	}
	defer release()

	params := c.params(req.CompletionRequest)
	if len(req.Parameters) > 0 {
		params.OutputConfig = anthropic.OutputConfigParam{
			Format: anthropic.JSONOutputFormatParam{Schema: req.Parameters},
		}
	}

	msg, err := c.client.Messages.New(callCtx, params)
	if err != nil {
		return nil, mapAnthropicError(err)
	}
	text, err := extractAnthropicText(msg)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, schemaMismatch("model returned plain text instead of calling %s: %s", req.SchemaName, preview(trimmed))
	}
	return decodeArguments(req, trimmed)
}

func (c *AnthropicClient) params(req CompletionRequest) anthropic.MessageNewParams {
	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{{
			Role:    anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(req.User)},
		}},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(req.Temperature))
	}
	return params
}

func extractAnthropicText(msg *anthropic.Message) (string, error) {
	for _, block := range msg.Content {
		if block.Type == "text" {
			return strings.TrimSpace(block.Text), nil
		}
	}
	return "", &CallError{Provider: ProviderAnthropic, Err: errors.New("no text content in response")}
}

func mapAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &CallError{Provider: ProviderAnthropic, StatusCode: apiErr.StatusCode, Err: err}
	}
	return &CallError{Provider: ProviderAnthropic, Err: err}
}
