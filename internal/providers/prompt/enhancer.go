package prompt

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Enhancer rewrites a user's free-text editing instruction into a more
// detailed professional instruction, preserving intent. Enhancement is
// best-effort everywhere it is used: a failing enhancer never fails a job.
type Enhancer interface {
	Enhance(ctx context.Context, userPrompt string) (string, error)
}

const (
	geminiProviderName = "gemini"
	openAIProviderName = "openai"
	staticProviderName = "static"
)

// StaticEnhancer is the offline fallback used when no LLM provider is
// configured. It produces a deterministic expansion of the instruction with
// standard real-estate photography direction appended.
type StaticEnhancer struct{}

func NewStaticEnhancer() *StaticEnhancer {
	return &StaticEnhancer{}
}

func (s *StaticEnhancer) Enhance(ctx context.Context, userPrompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	trimmed := strings.TrimSpace(userPrompt)
	if trimmed == "" {
		return "", fmt.Errorf("%s: empty prompt", staticProviderName)
	}
	c := cases.Title(language.Und)
	heading := c.String(firstWords(trimmed, 6))
	return fmt.Sprintf(
		"%s. %s Render with soft natural lighting, a wide-angle perspective, and realistic material textures, keeping the result suitable for professional real estate marketing.",
		heading, trimmed,
	), nil
}

func firstWords(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}

var _ Enhancer = (*StaticEnhancer)(nil)
