// Package llm wraps langchaingo models behind the Model Gateway contract.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/pagewright/pagewright/internal/config"
	"github.com/pagewright/pagewright/internal/metrics"
	"github.com/pagewright/pagewright/internal/models"
)

// Gateway is the model capability the orchestrator depends on: an ordered
// message list in, raw text out. Implementations are stateless per call.
type Gateway interface {
	Invoke(ctx context.Context, messages []models.Message, opts *InvokeOptions) (string, error)
}

// InvokeOptions carries optional per-call hints.
type InvokeOptions struct {
	// SchemaHint is appended as a trailing system instruction describing
	// the structured output the caller expects.
	SchemaHint string
}

// GatewayError wraps any failure of the underlying model call, including
// timeouts. The router treats all gateway errors uniformly.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// ErrFatalAPI marks provider errors that retrying cannot fix (billing,
// quota, authentication). Callers may use errors.Is to stop retrying early.
var ErrFatalAPI = errors.New("fatal API error")

// fatalPatterns are substrings of provider error messages that indicate a
// non-retryable account-level failure.
var fatalPatterns = []string{
	"credit balance",
	"rate limit",
	"quota",
	"billing",
	"invalid api key",
	"authentication",
	"unauthorized",
	"401",
	"403",
}

func isFatalAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range fatalPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func wrapFatalError(err error) error {
	if err == nil {
		return nil
	}
	if isFatalAPIError(err) {
		return fmt.Errorf("%w: %v", ErrFatalAPI, err)
	}
	return err
}

// Model wraps a langchaingo LLM as a Gateway.
type Model struct {
	llm       llms.Model
	modelName string
	timeout   time.Duration
	metrics   *metrics.Collector
}

var _ Gateway = (*Model)(nil)

// NewModel creates an LLM gateway based on configuration.
// The metrics collector is optional.
func NewModel(ctx context.Context, cfg config.Config, mc *metrics.Collector) (*Model, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case config.ProviderBedrock:
		awsCfg, loadErr := awsconfig.LoadDefaultConfig(ctx)
		if loadErr != nil {
			return nil, fmt.Errorf("load aws config: %w", loadErr)
		}
		client := bedrockruntime.NewFromConfig(awsCfg)
		model, err = bedrock.New(
			bedrock.WithClient(client),
			bedrock.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return &Model{
		llm:       model,
		modelName: cfg.LLMModel,
		timeout:   cfg.GatewayTimeout,
		metrics:   mc,
	}, nil
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}

// Invoke sends the message list to the model and returns the raw text of
// the first choice. Every call carries the configured timeout; a timeout
// surfaces as a GatewayError like any other provider failure.
func (m *Model) Invoke(ctx context.Context, messages []models.Message, opts *InvokeOptions) (string, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	content := make([]llms.MessageContent, 0, len(messages)+1)
	for _, msg := range messages {
		content = append(content, llms.TextParts(chatMessageType(msg.Role), msg.Content))
	}
	if opts != nil && opts.SchemaHint != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, opts.SchemaHint))
	}

	start := time.Now()
	response, err := m.llm.GenerateContent(ctx, content)
	if m.metrics != nil {
		m.metrics.RecordTiming(metrics.OpGateway, time.Since(start))
	}
	if err != nil {
		return "", &GatewayError{Op: "invoke", Err: wrapFatalError(err)}
	}

	if len(response.Choices) == 0 {
		return "", &GatewayError{Op: "invoke", Err: errors.New("no response choices")}
	}

	return response.Choices[0].Content, nil
}

func chatMessageType(role models.Role) llms.ChatMessageType {
	switch role {
	case models.RoleSystem:
		return llms.ChatMessageTypeSystem
	case models.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
