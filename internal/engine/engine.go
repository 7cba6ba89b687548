// Package engine backs the chat pipeline's LLM operations with genkit:
// query classification, streamed answer synthesis, and follow-up question
// suggestions. It wraps the model backend with rate limiting, retries for
// transient failures, and a circuit breaker.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/alexkamer/recall/internal/chat"
	"github.com/alexkamer/recall/internal/log"
)

const maxSuggestions = 3

// Config wires an Engine.
type Config struct {
	Genkit    *genkit.Genkit
	ModelName string
	Logger    log.Logger

	// RequestsPerSecond throttles calls to the model backend. Zero disables
	// throttling.
	RequestsPerSecond float64
	Burst             int

	Retry   RetryConfig
	Breaker BreakerConfig
}

func (c *Config) validate() error {
	if c.Genkit == nil {
		return errors.New("engine: genkit instance is required")
	}
	return nil
}

// Engine implements the chat pipeline's completion boundary.
//
// Engine is safe for concurrent use by multiple goroutines.
type Engine struct {
	g         *genkit.Genkit
	modelName string
	logger    log.Logger
	limiter   *rate.Limiter
	retry     RetryConfig
	breaker   *breaker
}

// New creates an Engine from cfg.
func New(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	retry := cfg.Retry
	if retry.MaxRetries == 0 && retry.InitialInterval == 0 {
		retry = DefaultRetryConfig()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Engine{
		g:         cfg.Genkit,
		modelName: cfg.ModelName,
		logger:    logger,
		limiter:   limiter,
		retry:     retry,
		breaker:   newBreaker(cfg.Breaker),
	}, nil
}

type classification struct {
	QueryType  string `json:"queryType"`
	Complexity string `json:"complexity"`
}

// Classify determines the intent and complexity of a user message.
func (e *Engine) Classify(ctx context.Context, text string, history []chat.Exchange) (chat.QueryType, chat.Complexity, error) {
	if err := e.breaker.allow(); err != nil {
		return "", "", err
	}

	messages := historyMessages(history)
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(text)))

	resp, err := e.generateWithRetry(ctx, func(ctx context.Context) (*ai.ModelResponse, error) {
		return genkit.Generate(ctx, e.g, e.generateOpts(
			ai.WithSystem(classifySystemPrompt),
			ai.WithMessages(messages...),
		)...)
	})
	if err != nil {
		e.breaker.failure()
		return "", "", err
	}
	e.breaker.success()

	var c classification
	if err := json.Unmarshal([]byte(stripCodeFence(resp.Text())), &c); err != nil {
		return "", "", fmt.Errorf("parse classification: %w", err)
	}

	qt, cx := normalizeClassification(c)
	e.logger.Debug("classified query", "query_type", qt, "complexity", cx)
	return qt, cx, nil
}

// Synthesize generates the answer, streaming fragments through onChunk and
// returning the full text.
//
// Unlike classification, synthesis is never retried: a second attempt after
// a partial stream would replay text the client has already rendered.
func (e *Engine) Synthesize(ctx context.Context, req chat.SynthesisRequest, onChunk func(context.Context, string) error) (string, error) {
	if err := e.breaker.allow(); err != nil {
		return "", err
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	system := synthesisSystemPrompt
	if block := sourcesBlock(req.Chunks); block != "" {
		system += "\n\n" + block
	}

	messages := historyMessages(req.History)
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(req.UserText)))

	opts := e.generateOpts(
		ai.WithSystem(system),
		ai.WithMessages(messages...),
	)
	if onChunk != nil {
		opts = append(opts, ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			text := chunk.Text()
			if text == "" {
				return nil
			}
			return onChunk(ctx, text)
		}))
	}

	resp, err := genkit.Generate(ctx, e.g, opts...)
	if err != nil {
		e.breaker.failure()
		return "", fmt.Errorf("synthesize: %w", err)
	}
	e.breaker.success()

	return resp.Text(), nil
}

// Suggest proposes follow-up questions for a finished turn.
func (e *Engine) Suggest(ctx context.Context, userText, answer string) ([]string, error) {
	if err := e.breaker.allow(); err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf("Question:\n%s\n\nAnswer:\n%s", userText, answer)

	resp, err := e.generateWithRetry(ctx, func(ctx context.Context) (*ai.ModelResponse, error) {
		return genkit.Generate(ctx, e.g, e.generateOpts(
			ai.WithSystem(suggestSystemPrompt),
			ai.WithPrompt(prompt),
		)...)
	})
	if err != nil {
		e.breaker.failure()
		return nil, err
	}
	e.breaker.success()

	var questions []string
	if err := json.Unmarshal([]byte(stripCodeFence(resp.Text())), &questions); err != nil {
		return nil, fmt.Errorf("parse suggestions: %w", err)
	}
	if len(questions) > maxSuggestions {
		questions = questions[:maxSuggestions]
	}
	return questions, nil
}

// BreakerState exposes the breaker state for health reporting.
func (e *Engine) BreakerState() BreakerState {
	return e.breaker.currentState()
}

func (e *Engine) generateOpts(opts ...ai.GenerateOption) []ai.GenerateOption {
	if e.modelName != "" {
		opts = append(opts, ai.WithModelName(e.modelName))
	}
	return opts
}

// historyMessages converts stored exchanges to model messages.
func historyMessages(history []chat.Exchange) []*ai.Message {
	messages := make([]*ai.Message, 0, len(history)+1)
	for _, ex := range history {
		switch ex.Role {
		case "assistant":
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(ex.Text)))
		default:
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(ex.Text)))
		}
	}
	return messages
}

// normalizeClassification maps raw model output to the known enums,
// falling back to general/moderate for anything unexpected.
func normalizeClassification(c classification) (chat.QueryType, chat.Complexity) {
	qt := chat.QueryType(c.QueryType)
	switch qt {
	case chat.QueryFactual, chat.QueryProcedural, chat.QueryConversational,
		chat.QueryComputational, chat.QueryGeneral:
	default:
		qt = chat.QueryGeneral
	}

	cx := chat.Complexity(c.Complexity)
	switch cx {
	case chat.ComplexitySimple, chat.ComplexityModerate, chat.ComplexityComplex:
	default:
		cx = chat.ComplexityModerate
	}
	return qt, cx
}
