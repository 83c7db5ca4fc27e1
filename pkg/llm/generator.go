// Package llm generates cited answers through an OpenAI-compatible chat API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/fitfact-ai/fitfact/pkg/budget"
	"github.com/fitfact-ai/fitfact/pkg/models"
	"github.com/fitfact-ai/fitfact/pkg/tracker"
)

// apiName identifies the generation API in the call log and budget policies.
const apiName = "generation"

// ErrEmptyResponse is returned when the API answers without content.
var ErrEmptyResponse = errors.New("empty generation response")

// Config holds the generation provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// MinInterval throttles consecutive calls. Zero means one second.
	MinInterval time.Duration
	Logger      *zap.Logger
	Tracker     tracker.Tracker
	Enforcer    *budget.Enforcer
}

// Generator produces evidence-based answers from retrieved papers.
type Generator struct {
	client      *openai.Client
	model       string
	minInterval time.Duration
	logger      *zap.Logger
	tracker     tracker.Tracker
	enforcer    *budget.Enforcer

	mu       sync.Mutex
	lastCall time.Time
}

// New creates a Generator against an OpenAI-compatible endpoint.
func New(cfg Config) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Generator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		minInterval: cfg.MinInterval,
		logger:      cfg.Logger,
		tracker:     cfg.Tracker,
		enforcer:    cfg.Enforcer,
	}
}

// Generate answers a question from the given papers at the requested detail
// level. Returns the answer text and total tokens spent. Failures surface to
// the caller and are never cached.
func (g *Generator) Generate(ctx context.Context, question string, papers []models.Paper, detail models.DetailLevel) (string, int64, error) {
	if g.enforcer != nil {
		if err := g.enforcer.Check(ctx, apiName); err != nil {
			return "", 0, fmt.Errorf("generation: %w", err)
		}
	}

	g.throttle()

	req := openai.ChatCompletionRequest{
		Model:     g.model,
		MaxTokens: detail.MaxTokens(),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(question, papers, detail)},
		},
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, req)
	latency := time.Since(start)

	if err != nil {
		g.record(ctx, 0, 0, latency)
		return "", 0, parseAPIError(err)
	}

	tokens := int64(resp.Usage.TotalTokens)
	g.record(ctx, 200, tokens, latency)

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", tokens, ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, tokens, nil
}

func (g *Generator) throttle() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if wait := g.minInterval - time.Since(g.lastCall); wait > 0 {
		g.logger.Debug("rate limiting generation call", zap.Duration("wait", wait))
		time.Sleep(wait)
	}
	g.lastCall = time.Now()
}

func (g *Generator) record(ctx context.Context, status int, tokens int64, latency time.Duration) {
	if g.tracker == nil {
		return
	}
	err := g.tracker.Record(ctx, models.APICallRecord{
		APIName:    apiName,
		Endpoint:   "/chat/completions",
		StatusCode: status,
		LatencyMs:  latency.Milliseconds(),
		TokensUsed: tokens,
	})
	if err != nil {
		g.logger.Warn("api call log failed", zap.Error(err))
	}
}

// parseAPIError extracts a readable message from provider errors.
func parseAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("generation API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("generation API error %d: %w", reqErr.HTTPStatusCode, reqErr.Err)
	}
	return fmt.Errorf("generation request failed: %w", err)
}
