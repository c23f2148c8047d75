package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Protocol is the calling convention used for structured calls. It is decided once
// when the client is built.
type Protocol int

const (
	// ModernProtocol forces a single named tool through tools/tool_choice.
	ModernProtocol Protocol = iota
	// LegacyProtocol forces a single named function through functions/function_call.
	LegacyProtocol
)

func (p Protocol) String() string {
	switch p {
	case ModernProtocol:
		return "modern"
	case LegacyProtocol:
		return "legacy"
	default:
		return fmt.Sprintf("protocol(%d)", int(p))
	}
}

// ParseProtocol maps a configuration value to a Protocol. Empty means modern.
func ParseProtocol(value string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "modern", "tools":
		return ModernProtocol, nil
	case "legacy", "functions":
		return LegacyProtocol, nil
	default:
		return 0, fmt.Errorf("unknown ai protocol %q", value)
	}
}

// CompletionRequest is a free-text completion call.
type CompletionRequest struct {
	System      string
	User        string
	Model       string
	Temperature float32
	MaxTokens   int
}

// StructuredRequest constrains the provider to call one named function whose
// arguments conform to Parameters (a JSON schema object).
type StructuredRequest struct {
	CompletionRequest
	SchemaName        string
	SchemaDescription string
	Parameters        map[string]interface{}
}

// Client hides the provider and its calling convention.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	CompleteStructured(ctx context.Context, req StructuredRequest) (map[string]interface{}, error)
	Provider() string
	Model() string
}

// Config selects and configures the generation provider.
type Config struct {
	Provider       string
	Protocol       Protocol
	APIKey         string
	Model          string
	BaseURL        string
	Timeout        time.Duration
	MaxConcurrency int
	Logger         zerolog.Logger
}

// NewClient builds the configured client. A missing API key yields a nil client
// and a nil error: callers treat the absent client as an unconfigured provider.
func NewClient(ctx context.Context, cfg Config) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, nil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}

	var (
		client Client
		err    error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOpenAI:
		client, err = NewOpenAIClient(cfg)
	case ProviderAnthropic:
		client, err = NewAnthropicClient(cfg)
	case ProviderGemini:
		client, err = NewGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

// gate bounds in-flight provider calls and applies the per-call timeout.
type gate struct {
	slots   chan struct{}
	timeout time.Duration
}

func newGate(maxConcurrency int, timeout time.Duration) *gate {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &gate{slots: make(chan struct{}, maxConcurrency), timeout: timeout}
}

func (g *gate) enter(ctx context.Context) (context.Context, func(), error) {
	select {
	case g.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if g.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
	}
	return callCtx, func() {
		cancel()
		<-g.slots
	}, nil
}
