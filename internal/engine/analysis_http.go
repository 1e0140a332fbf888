package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

// HTTPAnalysisConfig configures the HTTP analysis engine client.
type HTTPAnalysisConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries uint
	HTTPClient *http.Client // optional (tests)
}

// HTTPAnalysisEngine invokes a self-hosted analysis service over HTTP.
// Alternative to the OpenAI-backed engine for deployments with their own
// analysis worker.
type HTTPAnalysisEngine struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	maxRetries uint
	client     *http.Client
}

// NewHTTPAnalysisEngine creates a client for the analysis service.
func NewHTTPAnalysisEngine(cfg HTTPAnalysisConfig) *HTTPAnalysisEngine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 300 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPAnalysisEngine{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		client:     client,
	}
}

var _ AnalysisEngine = (*HTTPAnalysisEngine)(nil)

func (e *HTTPAnalysisEngine) Name() string { return "http" }

type analyzeRequest struct {
	PageTexts []string `json:"page_texts"`
}

func (e *HTTPAnalysisEngine) Analyze(ctx context.Context, pageTexts []string) (*AnalysisResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	body, err := json.Marshal(analyzeRequest{PageTexts: pageTexts})
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis request: %w", err)
	}

	var result AnalysisResult
	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/analyze", bytes.NewReader(body))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Content-Type", "application/json")
			if e.apiKey != "" {
				req.Header.Set("Authorization", "Bearer "+e.apiKey)
			}

			resp, err := e.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 500 {
				io.Copy(io.Discard, resp.Body)
				return fmt.Errorf("analysis engine status %d", resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				data, _ := io.ReadAll(resp.Body)
				return retry.Unrecoverable(fmt.Errorf("analysis engine status %d: %s", resp.StatusCode, data))
			}

			result = AnalysisResult{}
			if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
				return retry.Unrecoverable(fmt.Errorf("malformed analysis response: %w", err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(e.maxRetries),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return &result, nil
}
