// Package inference asks a vision language model which option answers a
// question image and normalizes the reply.
package inference

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"mcqsolver/mcq"
)

const (
	BackendGenAI = "genai"
	BackendREST  = "rest"

	DefaultModel    = "gemini-2.0-flash"
	DefaultEndpoint = "https://generativelanguage.googleapis.com"
)

// Request is one question submission.
type Request struct {
	Prompt   string
	Image    []byte
	MIMEType string
}

// Model returns the raw text reply for a request. Errors are
// *mcq.InferenceError so the retry policy can classify them.
type Model interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
	Close() error
}

// Config selects and configures an engine.
type Config struct {
	Backend  string
	Model    string
	Endpoint string
	Timeout  time.Duration
	APIKey   string
}

// New builds the engine named by cfg.Backend.
func New(ctx context.Context, cfg Config, log *zap.Logger) (Model, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, mcq.ErrNoAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if log == nil {
		log = zap.NewNop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendGenAI:
		return NewGenAI(ctx, cfg, log)
	case BackendREST:
		return NewREST(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown inference backend %q", cfg.Backend)
	}
}

// Factory creates a model for an API key. Solve runs build one per run so a
// key supplied with the request takes effect immediately.
type Factory func(ctx context.Context, apiKey string) (Model, error)

// NewFactory returns a Factory producing engines from cfg with the key
// replaced.
func NewFactory(cfg Config, log *zap.Logger) Factory {
	return func(ctx context.Context, apiKey string) (Model, error) {
		c := cfg
		c.APIKey = apiKey
		return New(ctx, c, log)
	}
}

// Answer submits one question image and parses the reply.
func Answer(ctx context.Context, m Model, prompt string, image []byte, mime string) (mcq.Answer, error) {
	if mime == "" {
		mime = "image/png"
	}
	text, err := m.Generate(ctx, Request{Prompt: prompt, Image: image, MIMEType: mime})
	if err != nil {
		return 0, err
	}
	return ParseAnswer(text)
}
