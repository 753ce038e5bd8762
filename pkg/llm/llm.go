// Package llm defines the capability-typed language-model boundary. Pipeline
// logic depends only on Generator; providers (Gemini, local models, test
// fakes) plug in behind it.
package llm

import (
	"context"
	"strings"
)

// Generator produces text from a prompt. Output is treated as unreliable and
// validated by each caller before use.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// DocGenerator extends Generator with document-grounded generation, used by
// the vision-inference boundary to extract table regions from page content.
type DocGenerator interface {
	Generator
	GenerateWithDoc(ctx context.Context, prompt, mimeType string, data []byte) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// StripFences removes a Markdown code fence wrapping model output, with or
// without a language tag. Models wrap JSON and SQL this way routinely.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		first := strings.TrimSpace(s[:i])
		// Drop a language tag like "json" or "sql" on the fence line.
		if len(first) <= 10 && !strings.ContainsAny(first, " {}();") {
			s = s[i+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
