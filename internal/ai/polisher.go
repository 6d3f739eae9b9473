package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/KaramelBytes/insighto-cli/internal/logger"
	"github.com/KaramelBytes/insighto-cli/internal/utils"
)

var errProbeFailed = errors.New("availability probe failed")

// Polisher rewrites insight bullets through a Runtime.
type Polisher struct {
	Runtime     Runtime
	Model       string
	MaxTokens   int
	Temperature float64
}

// Polish probes the runtime when it supports probing, then sends prompt as a single user turn.
func (p *Polisher) Polish(ctx context.Context, prompt string) (string, error) {
	if pr, ok := p.Runtime.(Prober); ok && !pr.Available(ctx) {
		return "", &UnreachableError{Err: errProbeFailed}
	}
	logger.Debug("polishing insights", "model", p.Model, "prompt_tokens", utils.CountTokens(prompt))
	resp, err := p.Runtime.Generate(ctx, GenerateRequest{
		Model:       p.Model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("empty response from text generation service")
	}
	return text, nil
}
