// Package generate turns a resolved configuration plus context into generated
// text via a pluggable completion backend.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Backend is the external text-synthesis collaborator. Implementations report
// failure via their own error types; the generator never lets those cross its
// boundary.
type Backend interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error)
}

// GenerationError wraps any backend failure or invalid backend output. The
// orchestrator treats it as retryable with a bounded budget.
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("generation failed: %s", e.Reason)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Config bounds the generator output.
type Config struct {
	MaxTokens   int
	Temperature float32
	// MaxChars rejects backend responses longer than this.
	MaxChars int
}

func (c *Config) fillDefaults() {
	if c.MaxTokens <= 0 {
		c.MaxTokens = 512
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxChars <= 0 {
		c.MaxChars = 4096
	}
}

// Generator delegates synthesis to an injected backend.
type Generator struct {
	backend Backend
	cfg     Config
}

func NewGenerator(backend Backend, cfg Config) *Generator {
	cfg.fillDefaults()
	return &Generator{backend: backend, cfg: cfg}
}

// Generate builds the prompt and runs one completion. Any backend error,
// empty response, or over-length response comes back as *GenerationError.
func (g *Generator) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	prompt := BuildPrompt(req)

	slog.Debug("requesting completion", "scope", req.Scope, "prompt_chars", len(prompt))

	text, err := g.backend.Complete(ctx, prompt, g.cfg.MaxTokens, g.cfg.Temperature)
	if err != nil {
		return "", &GenerationError{Reason: "backend error", Err: err}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", &GenerationError{Reason: "empty response from backend"}
	}
	if len(text) > g.cfg.MaxChars {
		return "", &GenerationError{Reason: fmt.Sprintf("response length %d exceeds limit %d", len(text), g.cfg.MaxChars)}
	}

	return text, nil
}
