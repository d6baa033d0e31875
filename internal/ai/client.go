// Package ai wraps the language model behind the one capability the loop
// needs: ordered turns in, text out, with retries, rate limiting, and a
// circuit breaker around the API.
package ai

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aspforge/aspforge/internal/cost"
	"github.com/aspforge/aspforge/internal/types"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Model tiering: encoding increments need the strong model; checker
// generation and summaries are simple enough for the cheap tier.
//
// Environment overrides:
// - ASPFORGE_MODEL_DEFAULT: override the default model
// - ASPFORGE_MODEL_SIMPLE: override the model for simple tasks
const (
	// ModelSonnet is the high-end model for encoding work.
	ModelSonnet = "claude-sonnet-4-5-20250929"

	// ModelHaiku is the cost-efficient model for checkers and digests.
	ModelHaiku = "claude-3-5-haiku-20241022"
)

// GetDefaultModel returns the default model, checking ASPFORGE_MODEL_DEFAULT first.
func GetDefaultModel() string {
	if model := os.Getenv("ASPFORGE_MODEL_DEFAULT"); model != "" {
		return model
	}
	return ModelSonnet
}

// GetSimpleTaskModel returns the model for simple tasks, checking ASPFORGE_MODEL_SIMPLE first.
func GetSimpleTaskModel() string {
	if model := os.Getenv("ASPFORGE_MODEL_SIMPLE"); model != "" {
		return model
	}
	return ModelHaiku
}

// Usage reports token consumption for one completion.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Total is the prompt+response token count, the signal the compaction
// policy watches.
func (u Usage) Total() int64 {
	return u.InputTokens + u.OutputTokens
}

// Completer is the model capability the rest of the system depends on.
// Tests substitute a fake.
type Completer interface {
	// Complete sends the ordered turns and returns the model's text.
	Complete(ctx context.Context, turns []types.Turn, opts CompleteOptions) (string, Usage, error)
}

// CompleteOptions tunes one completion.
type CompleteOptions struct {
	// Simple selects the cheap model tier.
	Simple bool

	// MaxTokens caps the response; 0 uses the default.
	MaxTokens int

	// Operation names the call for logs and retry diagnostics.
	Operation string
}

// Config holds client configuration.
type Config struct {
	APIKey      string      // Anthropic API key (if empty, reads ANTHROPIC_API_KEY)
	Model       string      // default model (empty: GetDefaultModel())
	SimpleModel string      // simple-task model (empty: GetSimpleTaskModel())
	Retry       RetryConfig // retry configuration (defaults if zero)
	RateLimit   rate.Limit  // model calls per second (0: no limiter)

	// Costs, when set, accumulates token spend and enforces the session
	// budget before each call.
	Costs *cost.Tracker
}

// Client is the Anthropic-backed Completer.
type Client struct {
	client         *anthropic.Client
	model          string
	simpleModel    string
	retry          RetryConfig
	circuitBreaker *CircuitBreaker
	concurrencySem *semaphore.Weighted
	limiter        *rate.Limiter
	costs          *cost.Tracker
}

var _ Completer = (*Client)(nil)

// NewClient creates a model client.
func NewClient(cfg *Config) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	model := cfg.Model
	if model == "" {
		model = GetDefaultModel()
	}
	simpleModel := cfg.SimpleModel
	if simpleModel == "" {
		simpleModel = GetSimpleTaskModel()
	}

	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	var circuitBreaker *CircuitBreaker
	if retry.CircuitBreakerEnabled {
		circuitBreaker = NewCircuitBreaker(retry.FailureThreshold, retry.SuccessThreshold, retry.OpenTimeout)
	}

	var concurrencySem *semaphore.Weighted
	if retry.MaxConcurrentCalls > 0 {
		concurrencySem = semaphore.NewWeighted(int64(retry.MaxConcurrentCalls))
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(cfg.RateLimit, 1)
	}

	return &Client{
		client:         &client,
		model:          model,
		simpleModel:    simpleModel,
		retry:          retry,
		circuitBreaker: circuitBreaker,
		concurrencySem: concurrencySem,
		limiter:        limiter,
		costs:          cfg.Costs,
	}, nil
}

// Complete implements Completer.
func (c *Client) Complete(ctx context.Context, turns []types.Turn, opts CompleteOptions) (string, Usage, error) {
	model := c.model
	if opts.Simple {
		model = c.simpleModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	operation := opts.Operation
	if operation == "" {
		operation = "completion"
	}

	messages, err := toMessageParams(turns)
	if err != nil {
		return "", Usage{}, err
	}

	if c.costs != nil {
		if err := c.costs.Allow(); err != nil {
			return "", Usage{}, fmt.Errorf("%s blocked: %w", operation, err)
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", Usage{}, fmt.Errorf("%s rate limit wait: %w", operation, err)
		}
	}

	startTime := time.Now()
	var response *anthropic.Message
	err = c.retryWithBackoff(ctx, operation, func(attemptCtx context.Context) error {
		resp, apiErr := c.client.Messages.New(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(model),
			MaxTokens: int64(maxTokens),
			Messages:  messages,
		})
		if apiErr != nil {
			return apiErr
		}
		response = resp
		return nil
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("anthropic API call failed: %w", err)
	}

	var text string
	for _, block := range response.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	usage := Usage{
		InputTokens:  response.Usage.InputTokens,
		OutputTokens: response.Usage.OutputTokens,
	}

	if c.costs != nil {
		c.costs.Record(model, operation, usage.InputTokens, usage.OutputTokens)
	}

	fmt.Printf("AI %s call: input=%d tokens, output=%d tokens, duration=%v\n",
		operation, usage.InputTokens, usage.OutputTokens, time.Since(startTime))

	return text, usage, nil
}

// toMessageParams converts store turns to API messages. System turns are
// folded into the first user message: the conversation store owns ordering,
// and the API requires the message list to start with a user role.
func toMessageParams(turns []types.Turn) ([]anthropic.MessageParam, error) {
	var messages []anthropic.MessageParam
	var pendingSystem string

	for _, t := range turns {
		switch t.Role {
		case types.RoleSystem:
			if pendingSystem != "" {
				pendingSystem += "\n\n"
			}
			pendingSystem += t.Content
		case types.RoleUser:
			content := t.Content
			if pendingSystem != "" {
				content = pendingSystem + "\n\n---\n\n" + content
				pendingSystem = ""
			}
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(content)))
		case types.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Content)))
		default:
			return nil, fmt.Errorf("invalid turn role: %s", t.Role)
		}
	}

	if pendingSystem != "" {
		// Trailing system content with no user turn to carry it.
		messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(pendingSystem)))
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("no turns to send")
	}
	return messages, nil
}
