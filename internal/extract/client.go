// Package extract turns free-form text into issue drafts with a single
// schema-constrained Anthropic Messages call.
package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/ticketdrop/ticketdrop/internal/telemetry"
	"github.com/ticketdrop/ticketdrop/internal/types"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "claude-haiku-4-5"

	// DefaultMaxTokens bounds the size of one extraction response.
	DefaultMaxTokens = 2048

	toolName  = "record_issues"
	scopeName = "github.com/ticketdrop/ticketdrop/extract"
)

// errAPIKeyRequired is returned when an API key is needed but not provided.
var errAPIKeyRequired = errors.New("API key required")

// Options configures a Client.
type Options struct {
	APIKey     string
	Model      string
	MaxTokens  int64
	BaseURL    string
	HTTPClient *http.Client
}

// Client extracts issues with the Anthropic API.
type Client struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewClient creates an extraction client. Env var ANTHROPIC_API_KEY takes
// precedence over opts.APIKey.
func NewClient(opts Options) (*Client, error) {
	apiKey := opts.APIKey
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY environment variable or provide via config", errAPIKeyRequired)
	}

	// A failed extraction is surfaced to the user for an explicit re-trigger.
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	hc := &http.Client{Timeout: 60 * time.Second}
	if opts.HTTPClient != nil {
		cp := *opts.HTTPClient
		hc = &cp
	}
	hc.Transport = telemetry.WrapTransport("anthropic", hc.Transport)
	reqOpts = append(reqOpts, option.WithHTTPClient(hc))

	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	aiMetricsOnce.Do(initAIMetrics)

	return &Client{
		client:    anthropic.NewClient(reqOpts...),
		model:     anthropic.Model(model),
		maxTokens: maxTokens,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return string(c.model)
}

// aiMetrics holds lazily-initialized OTel instruments for Anthropic API calls.
var aiMetrics struct {
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	duration     metric.Float64Histogram
	issues       metric.Int64Counter
}

var aiMetricsOnce sync.Once

func initAIMetrics() {
	m := telemetry.Meter(scopeName)
	aiMetrics.inputTokens, _ = m.Int64Counter("td.ai.input_tokens",
		metric.WithDescription("Anthropic API input tokens consumed"),
		metric.WithUnit("{token}"),
	)
	aiMetrics.outputTokens, _ = m.Int64Counter("td.ai.output_tokens",
		metric.WithDescription("Anthropic API output tokens generated"),
		metric.WithUnit("{token}"),
	)
	aiMetrics.duration, _ = m.Float64Histogram("td.ai.request.duration",
		metric.WithDescription("Anthropic API request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	aiMetrics.issues, _ = m.Int64Counter("td.extract.issues",
		metric.WithDescription("Issues extracted from input text"),
	)
}

// Extract sends text to the model and returns the validated drafts.
// Model or network failures are *types.ExtractionError; payloads that do not
// match the issue schema are *types.SchemaValidationError. An empty result is
// valid.
func (c *Client) Extract(ctx context.Context, text string) (types.IssueDraftCollection, error) {
	if strings.TrimSpace(text) == "" {
		return types.IssueDraftCollection{}, &types.ValidationError{Field: "text", Message: "text is required"}
	}

	tracer := telemetry.Tracer(scopeName)
	ctx, span := tracer.Start(ctx, "anthropic.messages.new")
	defer span.End()
	span.SetAttributes(
		attribute.String("td.ai.model", string(c.model)),
		attribute.String("td.ai.operation", "extract"),
		attribute.Int("td.extract.input_chars", len(text)),
	)

	prompt, err := renderPrompt(promptData{Text: text, MaxTitleWords: types.MaxTitleWords, ToolName: toolName})
	if err != nil {
		return types.IssueDraftCollection{}, fmt.Errorf("failed to render prompt: %w", err)
	}

	properties, required := toolInputSchema()
	tool := anthropic.ToolParam{
		Name:        toolName,
		Description: anthropic.String("Record the issues extracted from the user's text."),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: properties,
			Required:   required,
		},
	}

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Tools:      []anthropic.ToolUnionParam{{OfTool: &tool}},
		ToolChoice: anthropic.ToolChoiceUnionParam{OfTool: &anthropic.ToolChoiceToolParam{Name: toolName}},
	}

	t0 := time.Now()
	message, err := c.client.Messages.New(ctx, params)
	ms := float64(time.Since(t0).Milliseconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return types.IssueDraftCollection{}, &types.ExtractionError{Err: err}
	}

	modelAttr := attribute.String("td.ai.model", string(c.model))
	if aiMetrics.inputTokens != nil {
		aiMetrics.inputTokens.Add(ctx, message.Usage.InputTokens, metric.WithAttributes(modelAttr))
		aiMetrics.outputTokens.Add(ctx, message.Usage.OutputTokens, metric.WithAttributes(modelAttr))
		aiMetrics.duration.Record(ctx, ms, metric.WithAttributes(modelAttr))
	}
	span.SetAttributes(
		attribute.Int64("td.ai.input_tokens", message.Usage.InputTokens),
		attribute.Int64("td.ai.output_tokens", message.Usage.OutputTokens),
	)

	raw, err := toolInput(message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return types.IssueDraftCollection{}, err
	}

	drafts, err := Validate(raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "schema validation failed")
		return types.IssueDraftCollection{}, err
	}

	span.SetAttributes(attribute.Int("td.extract.issues", drafts.Len()))
	if aiMetrics.issues != nil {
		aiMetrics.issues.Add(ctx, int64(drafts.Len()), metric.WithAttributes(modelAttr))
	}
	return drafts, nil
}

// toolInput returns the JSON input the model passed to the record tool.
func toolInput(message *anthropic.Message) ([]byte, error) {
	for _, block := range message.Content {
		if block.Type == "tool_use" && block.Name == toolName {
			return []byte(block.Input), nil
		}
	}
	return nil, &types.SchemaValidationError{
		Violations: []string{fmt.Sprintf("response has no %s tool call (stop_reason=%s)", toolName, message.StopReason)},
	}
}
