// Package ai provides text-completion providers.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotConfigured = errors.New("ai: provider not configured")
	ErrEmptyResponse = errors.New("ai: empty completion")
)

type Request struct {
	System string
	Prompt string
}

type Response struct {
	Text string
}

// Completer performs one completion call. Callers bound it with a context deadline.
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

type Config struct {
	Provider string        `json:"provider"` // "openai" (default) | "gemini"
	BaseURL  string        `json:"base_url"`
	Model    string        `json:"model"`
	APIKey   string        `json:"api_key"`
	Timeout  time.Duration `json:"-"`
}

const (
	DefaultBaseURL     = "https://ai.gateway.lovable.dev/v1"
	DefaultModel       = "google/gemini-3-flash-preview"
	DefaultGeminiModel = "gemini-2.5-flash"
	DefaultTimeout     = 30 * time.Second
)

// New returns the configured provider.
func New(ctx context.Context, cfg Config) (Completer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai", "gateway":
		return NewOpenAI(cfg), nil
	case "gemini", "genai":
		return NewGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("ai: unknown provider %q", cfg.Provider)
	}
}
