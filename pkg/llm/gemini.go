package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/FilingLensAI/filinglens-mvp/pkg/resilience"
)

// Gemini implements DocGenerator against the Google Generative AI API.
// Calls go through a circuit breaker and a request-rate limiter so a
// degraded upstream fails fast instead of stacking timeouts.
type Gemini struct {
	client  *genai.Client
	model   string
	breaker *resilience.Breaker
	limiter *rate.Limiter
}

// GeminiOpts configures the Gemini client.
type GeminiOpts struct {
	APIKey string
	Model  string
	// RequestsPerMinute bounds the call rate. Zero means 60.
	RequestsPerMinute int
}

// NewGemini creates a Gemini-backed generator.
func NewGemini(ctx context.Context, opts GeminiOpts) (*Gemini, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("llm: missing Gemini API key")
	}
	if opts.Model == "" {
		opts.Model = "gemini-1.5-flash"
	}
	rpm := opts.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("llm: gemini client: %w", err)
	}
	return &Gemini{
		client:  client,
		model:   opts.Model,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm/6+1),
	}, nil
}

// Close releases the underlying API client.
func (g *Gemini) Close() error { return g.client.Close() }

// Generate implements Generator.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	return g.call(ctx, genai.Text(prompt))
}

// GenerateWithDoc implements DocGenerator. The document bytes travel as an
// inline blob alongside the prompt.
func (g *Gemini) GenerateWithDoc(ctx context.Context, prompt, mimeType string, data []byte) (string, error) {
	return g.call(ctx, genai.Blob{MIMEType: mimeType, Data: data}, genai.Text(prompt))
}

func (g *Gemini) call(ctx context.Context, parts ...genai.Part) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}
	var out string
	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		resp, err := g.client.GenerativeModel(g.model).GenerateContent(ctx, parts...)
		if err != nil {
			return fmt.Errorf("llm: generate: %w", err)
		}
		out, err = firstText(resp)
		return err
	})
	return out, err
}

// firstText extracts the text parts of the first candidate.
func firstText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("llm: empty response")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("llm: no text parts in response")
	}
	return b.String(), nil
}
