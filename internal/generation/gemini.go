package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"iasmeen/internal/logging"

	"google.golang.org/genai"
)

// GeminiConfig configures GeminiGenerator.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Timeout     time.Duration // applied only when ctx has no deadline
	Temperature float32       // 0 keeps the model default
}

// Usage is the token accounting of a single call.
type Usage struct {
	Family           string
	Model            string
	PromptTokens     int
	CandidatesTokens int
	TotalTokens      int
}

// contentModels is the slice of *genai.Models this package uses.
type contentModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiGenerator implements Generator over the Gemini API.
type GeminiGenerator struct {
	models      contentModels
	model       string
	timeout     time.Duration
	temperature float32
}

// NewGeminiGenerator creates a Gemini-backed generator.
func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return newGeminiGenerator(client.Models, cfg), nil
}

func newGeminiGenerator(models contentModels, cfg GeminiConfig) *GeminiGenerator {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.5-flash"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &GeminiGenerator{
		models:      models,
		model:       model,
		timeout:     timeout,
		temperature: cfg.Temperature,
	}
}

// Model returns the configured model name.
func (g *GeminiGenerator) Model() string { return g.model }

// Generate sends the instruction with responseMimeType=application/json and
// the given response schema, and returns the trimmed response text.
func (g *GeminiGenerator) Generate(ctx context.Context, instruction string, schema *genai.Schema) (json.RawMessage, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	family := FamilyFrom(ctx)
	logging.APIDebug("[Gemini] Generate: family=%s model=%s instruction_len=%d", family, g.model, len(instruction))

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}
	if g.temperature > 0 {
		config.Temperature = genai.Ptr(g.temperature)
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(instruction), config)
	if err != nil {
		return nil, Fail(ctx, ReasonRequest, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return nil, Fail(ctx, ReasonEmpty, fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason))
		}
		return nil, Fail(ctx, ReasonEmpty, errors.New("no candidates returned"))
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, Fail(ctx, ReasonEmpty, errors.New("empty response text"))
	}

	if md := resp.UsageMetadata; md != nil {
		reportUsage(ctx, Usage{
			Family:           family,
			Model:            g.model,
			PromptTokens:     int(md.PromptTokenCount),
			CandidatesTokens: int(md.CandidatesTokenCount),
			TotalTokens:      int(md.TotalTokenCount),
		})
	}
	return json.RawMessage(text), nil
}
