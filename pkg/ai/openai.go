package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIClient implements Client against the OpenAI chat completion API.
type OpenAIClient struct {
	client   *openai.Client
	model    string
	protocol Protocol
	gate     *gate
	inst     instrument
}

// NewOpenAIClient builds an OpenAI-backed client using the configured protocol.
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.Protocol != ModernProtocol && cfg.Protocol != LegacyProtocol {
		return nil, fmt.Errorf("unsupported openai protocol %s", cfg.Protocol)
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client:   openai.NewClientWithConfig(config),
		model:    model,
		protocol: cfg.Protocol,
		gate:     newGate(cfg.MaxConcurrency, cfg.Timeout),
		inst:     newInstrument(ProviderOpenAI, model, cfg.Protocol.String(), cfg.Logger),
	}, nil
}

// Provider returns the provider name.
func (c *OpenAIClient) Provider() string { return ProviderOpenAI }

// Model returns the default model.
func (c *OpenAIClient) Model() string { return c.model }

// Protocol returns the calling convention fixed at construction.
func (c *OpenAIClient) Protocol() Protocol { return c.protocol }

// Complete requests a free-text completion.
func (c *OpenAIClient) Complete(parent context.Context, req CompletionRequest) (text string, err error) {
	ctx, span, started := c.inst.start(parent, "complete")
	defer func() { c.inst.finish(span, started, "complete", err) }()

	callCtx, release, err := c.gate.enter(ctx)
	if err != nil {
		return "", &CallError{Provider: ProviderOpenAI, Err: err}
	}
	defer release()

	resp, err := c.client.CreateChatCompletion(callCtx, c.baseRequest(req))
	if err != nil {
		return "", mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &CallError{Provider: ProviderOpenAI, Err: errors.New("no choices returned")}
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// CompleteStructured forces the model to call req.SchemaName and returns its arguments.
func (c *OpenAIClient) CompleteStructured(parent context.Context, req StructuredRequest) (args map[string]interface{}, err error) {
	ctx, span, started := c.inst.start(parent, "structured")
	defer func() { c.inst.finish(span, started, "structured", err) }()

	if req.SchemaName == "" {
		return nil, fmt.Errorf("structured request requires a schema name")
	}

	callCtx, release, err := c.gate.enter(ctx)
	if err != nil {
		return nil, &CallError{Provider: ProviderOpenAI, Err: err}
	}
	defer release()

	request := c.baseRequest(req.CompletionRequest)
	definition := openai.FunctionDefinition{
		Name:        req.SchemaName,
		Description: req.SchemaDescription,
		Parameters:  req.Parameters,
	}

	switch c.protocol {
	case ModernProtocol:
		request.Tools = []openai.Tool{{Type: openai.ToolTypeFunction, Function: &definition}}
		request.ToolChoice = openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: req.SchemaName},
		}
	case LegacyProtocol:
		request.Functions = []openai.FunctionDefinition{definition}
		request.FunctionCall = openai.FunctionCall{Name: req.SchemaName}
	}

	resp, err := c.client.CreateChatCompletion(callCtx, request)
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &CallError{Provider: ProviderOpenAI, Err: errors.New("no choices returned")}
	}

	raw, err := c.extractArguments(resp.Choices[0].Message, req.SchemaName)
	if err != nil {
		return nil, err
	}
	return decodeArguments(req, raw)
}

func (c *OpenAIClient) extractArguments(message openai.ChatCompletionMessage, name string) (string, error) {
	prose := strings.TrimSpace(message.Content)

	switch c.protocol {
	case ModernProtocol:
		if len(message.ToolCalls) == 0 {
			if prose != "" {
				return "", schemaMismatch("model returned plain text instead of calling %s: %s", name, preview(prose))
			}
			return "", schemaMismatch("no tool call in response")
		}
		call := message.ToolCalls[0]
		if call.Function.Name != name {
			return "", schemaMismatch("model called %q instead of %s", call.Function.Name, name)
		}
		return call.Function.Arguments, nil
	default:
		if message.FunctionCall == nil {
			if prose != "" {
				return "", schemaMismatch("model returned plain text instead of calling %s: %s", name, preview(prose))
			}
			return "", schemaMismatch("no function call in response")
		}
		if message.FunctionCall.Name != name {
			return "", schemaMismatch("model called %q instead of %s", message.FunctionCall.Name, name)
		}
		return message.FunctionCall.Arguments, nil
	}
}

func (c *OpenAIClient) baseRequest(req CompletionRequest) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = c.model
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.User})

	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
}

func mapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &CallError{Provider: ProviderOpenAI, StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &CallError{Provider: ProviderOpenAI, StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return &CallError{Provider: ProviderOpenAI, Err: err}
}

func preview(text string) string {
	const limit = 200
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
