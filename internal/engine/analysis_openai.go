package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/redlinehq/redline/internal/model"
)

const (
	openAIAnalysisName         = "openai"
	openAIAnalysisDefaultModel = "gpt-4o-mini"
)

const analysisSystemPrompt = `You are a contract review assistant. You are given the full extracted
text of a contract, one page per message section, in reading order.
Identify clauses that are risky or one-sided for the signing party.
Respond with a summary, overall commentary (overall_comment,
warning_comment, advice), and the list of risky clauses. For each clause
report its verbatim text, why it is risky, a reference supporting the
reason, and a severity level from 1 (minor) to 5 (severe).`

// OpenAIAnalysisConfig configures the OpenAI-backed analysis engine.
type OpenAIAnalysisConfig struct {
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	BaseURL    string       // optional (tests)
	HTTPClient *http.Client // optional (tests)
}

// OpenAIAnalysisEngine implements AnalysisEngine with a chat completion
// using a JSON-schema response format. The payload is validated locally
// before it is trusted.
type OpenAIAnalysisEngine struct {
	model   string
	timeout time.Duration
	client  openai.Client
}

// NewOpenAIAnalysisEngine creates the engine client.
func NewOpenAIAnalysisEngine(cfg OpenAIAnalysisConfig) *OpenAIAnalysisEngine {
	if cfg.Model == "" {
		cfg.Model = openAIAnalysisDefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 300 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIAnalysisEngine{
		model:   cfg.Model,
		timeout: cfg.Timeout,
		client:  openai.NewClient(opts...),
	}
}

var _ AnalysisEngine = (*OpenAIAnalysisEngine)(nil)

func (e *OpenAIAnalysisEngine) Name() string { return openAIAnalysisName }

// Analyze sends the assembled contract text and decodes the structured
// result. Transport errors return ErrUpstream; an unparseable payload is
// reported as an unsuccessful result rather than an error so the caller
// can record a failed run.
func (e *OpenAIAnalysisEngine) Analyze(ctx context.Context, pageTexts []string) (*AnalysisResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var schemaAny map[string]any
	if err := json.Unmarshal([]byte(analysisSchemaJSON), &schemaAny); err != nil {
		return nil, fmt.Errorf("failed to decode analysis schema: %w", err)
	}

	var sb strings.Builder
	for i, text := range pageTexts {
		fmt.Fprintf(&sb, "--- page %d ---\n%s\n", i+1, text)
	}

	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: e.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(analysisSystemPrompt),
			openai.UserMessage(sb.String()),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "contract_analysis",
					Schema: schemaAny,
					Strict: openai.Bool(true),
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion response", ErrUpstream)
	}

	payload, err := validateAnalysisPayload([]byte(resp.Choices[0].Message.Content))
	if err != nil {
		return &AnalysisResult{Success: false, ErrorMessage: err.Error()}, nil
	}

	return &AnalysisResult{
		Success: true,
		Summary: payload.Summary,
		Commentary: model.Commentary{
			OverallComment: payload.Commentary.OverallComment,
			WarningComment: payload.Commentary.WarningComment,
			Advice:         payload.Commentary.Advice,
		},
		Findings: payload.Findings,
	}, nil
}
