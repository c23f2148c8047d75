package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiClient implements Client using the Google Gemini SDK. Structured calls
// request a JSON response constrained by a response schema.
type GeminiClient struct {
	client *genai.Client
	model  string
	gate   *gate
	inst   instrument
}

// NewGeminiClient creates a Gemini-backed client.
func NewGeminiClient(ctx context.Context, cfg Config) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}

	return &GeminiClient{
		client: client,
		model:  model,
		gate:   newGate(cfg.MaxConcurrency, cfg.Timeout),
		inst:   newInstrument(ProviderGemini, model, "", cfg.Logger),
	}, nil
}

func (c *GeminiClient) Provider() string { return ProviderGemini }

func (c *GeminiClient) Model() string { return c.model }

func (c *GeminiClient) Complete(parent context.Context, req CompletionRequest) (text string, err error) {
	ctx, span, started := c.inst.start(parent, "complete")
	defer func() { c.inst.finish(span, started, "complete", err) }()

	return c.generate(ctx, req, nil)
}

func (c *GeminiClient) CompleteStructured(parent context.Context, req StructuredRequest) (args map[string]interface{}, err error) {
	ctx, span, started := c.inst.start(parent, "structured")
	defer func() { c.inst.finish(span, started, "structured", err) }()

	var schema *genai.Schema
	if len(req.Parameters) > 0 {
		schema = buildGeminiSchema(req.Parameters)
	}
	text, err := c.generate(ctx, req.CompletionRequest, schema)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(text, "{") {
		return nil, schemaMismatch("model returned plain text instead of calling %s: %s", req.SchemaName, preview(text))
	}
	return decodeArguments(req, text)
}

func (c *GeminiClient) generate(ctx context.Context, req CompletionRequest, schema *genai.Schema) (string, error) {
	callCtx, release, err := c.gate.enter(ctx)
	if err != nil {
		return "", &CallError{Provider: ProviderGemini, Err: err}
	}
	defer release()

	model := req.Model
	if model == "" {
		model = c.model
	}

	config := &genai.GenerateContentConfig{}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		temp := req.Temperature
		config.Temperature = &temp
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = schema
	}

	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: req.User}}}}
	result, err := c.client.Models.GenerateContent(callCtx, model, contents, config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &CallError{Provider: ProviderGemini, StatusCode: apiErr.Code, Err: err}
		}
		return "", &CallError{Provider: ProviderGemini, Err: err}
	}

	return strings.TrimSpace(result.Text()), nil
}

// buildGeminiSchema converts a JSON schema definition into a genai.Schema.
func buildGeminiSchema(def map[string]interface{}) *genai.Schema {
	schema := &genai.Schema{}

	if t, ok := def["type"].(string); ok {
		schema.Type = mapGeminiType(t)
	}
	if desc, ok := def["description"].(string); ok {
		schema.Description = desc
	}
	if props, ok := def["properties"].(map[string]interface{}); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, value := range props {
			if propDef, ok := value.(map[string]interface{}); ok {
				schema.Properties[name] = buildGeminiSchema(propDef)
			}
		}
	}
	if required, ok := def["required"].([]interface{}); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	if enums, ok := def["enum"].([]interface{}); ok {
		for _, e := range enums {
			if s, ok := e.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	}
	if items, ok := def["items"].(map[string]interface{}); ok {
		schema.Items = buildGeminiSchema(items)
	}

	return schema
}

func mapGeminiType(t string) genai.Type {
	switch t {
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}
