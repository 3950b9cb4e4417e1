package extractor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/roomsage/onboarder/internal/config"
	"github.com/roomsage/onboarder/internal/logging"
	"github.com/roomsage/onboarder/internal/onboarding"
)

// AnthropicExtractor implements onboarding.Extractor against the Anthropic
// Messages API.
type AnthropicExtractor struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	logger      *zap.Logger
}

// NewAnthropicExtractor builds the extractor from configuration. The API key
// is required.
func NewAnthropicExtractor(cfg config.ExtractorConfig, logger *zap.Logger) (*AnthropicExtractor, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("extractor API key is required (set ONBOARDER_EXTRACTOR_API_KEY)")
	}
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &AnthropicExtractor{
		client:      anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:       model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		timeout:     timeout,
		logger:      logging.OrNop(logger),
	}, nil
}

// Extract runs one extraction call for a category. API transport failures
// and unparseable replies come back transient; an empty context is fatal.
func (e *AnthropicExtractor) Extract(
	ctx context.Context,
	category onboarding.Category,
	contextText string,
	hints onboarding.ExtractionHints,
) (onboarding.ExtractionResult, error) {
	if strings.TrimSpace(contextText) == "" {
		return onboarding.ExtractionResult{}, onboarding.Fatal("extract", errors.New("empty context"))
	}

	schema := SchemaFor(category)
	prompt := BuildPrompt(schema, contextText, hints)

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: int64(e.maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if e.temperature > 0 {
		params.Temperature = anthropic.Float(e.temperature)
	}

	resp, err := e.client.Messages.New(callCtx, params)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return onboarding.ExtractionResult{}, ctxErr
		}
		// Rate limits, 5xx, and transport timeouts dominate here; all are
		// worth a bounded retry.
		return onboarding.ExtractionResult{}, onboarding.Transient("extraction call", err)
	}

	var reply strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}

	data, err := ParseReply(reply.String())
	if err != nil {
		return onboarding.ExtractionResult{}, onboarding.Transient("parse extraction reply", err)
	}

	e.logger.Debug("extraction call completed",
		zap.String("category", string(category)),
		zap.Int("context_chars", len(contextText)),
		zap.Int("reply_chars", reply.Len()),
		zap.Duration("duration", time.Since(start)),
	)

	return onboarding.ExtractionResult{
		Data:       data,
		Confidence: confidenceFor(data, schema),
	}, nil
}

// confidenceFor derives a coarse self-confidence from required-field
// coverage in the raw reply. The model reports no calibrated score of its
// own, so coverage is the best available proxy.
func confidenceFor(data []byte, schema Schema) float64 {
	if len(schema.RequiredFields) == 0 {
		return 0.5
	}
	text := string(data)
	hits := 0
	for _, field := range schema.RequiredFields {
		if strings.Contains(text, `"`+field+`"`) {
			hits++
		}
	}
	return float64(hits) / float64(len(schema.RequiredFields))
}
