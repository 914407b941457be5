package ai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Gemini calls the Gemini API directly.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Complete(ctx context.Context, req Request) (Response, error) {
	var conf *genai.GenerateContentConfig
	if strings.TrimSpace(req.System) != "" {
		conf = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		}
	}
	res, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), conf)
	if err != nil {
		return Response{}, fmt.Errorf("genai generate: %w", err)
	}
	text := res.Text()
	if strings.TrimSpace(text) == "" {
		return Response{}, ErrEmptyResponse
	}
	return Response{Text: text}, nil
}
