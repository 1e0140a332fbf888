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

// HTTPExtractionConfig configures the HTTP extraction engine client.
type HTTPExtractionConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration // per call, including retries' individual attempts
	RateLimit  float64       // requests per second
	MaxRetries uint          // transport retries per call
	HTTPClient *http.Client  // optional (tests)
}

// HTTPExtractionEngine invokes an extraction service over HTTP. One POST
// per page; transport errors are retried, engine-reported failures are not.
type HTTPExtractionEngine struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	maxRetries uint
	client     *http.Client
	limiter    *RateLimiter
}

// NewHTTPExtractionEngine creates a client for the extraction service.
func NewHTTPExtractionEngine(cfg HTTPExtractionConfig) *HTTPExtractionEngine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPExtractionEngine{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		client:     client,
		limiter:    NewRateLimiter(cfg.RateLimit),
	}
}

var _ ExtractionEngine = (*HTTPExtractionEngine)(nil)

func (e *HTTPExtractionEngine) Name() string { return "http" }

type extractRequest struct {
	BlobReference string `json:"blob_reference"`
	PageIndex     int    `json:"page_index"`
}

// ExtractPage posts one page to the engine and decodes its response.
func (e *HTTPExtractionEngine) ExtractPage(ctx context.Context, blobRef string, pageIndex int) (*ExtractionResult, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit wait: %v", ErrUpstream, err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	body, err := json.Marshal(extractRequest{BlobReference: blobRef, PageIndex: pageIndex})
	if err != nil {
		return nil, fmt.Errorf("failed to encode extraction request: %w", err)
	}

	var result ExtractionResult
	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/extract", bytes.NewReader(body))
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
				return fmt.Errorf("extraction engine status %d", resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				data, _ := io.ReadAll(resp.Body)
				return retry.Unrecoverable(fmt.Errorf("extraction engine status %d: %s", resp.StatusCode, data))
			}

			result = ExtractionResult{}
			if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
				return retry.Unrecoverable(fmt.Errorf("malformed extraction response: %w", err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(e.maxRetries),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", ErrUpstream, pageIndex, err)
	}
	return &result, nil
}
