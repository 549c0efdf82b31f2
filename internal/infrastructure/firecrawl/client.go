package firecrawl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/metrics"
)

const maxResponseBytes = 4 << 20

// ClientConfig holds connection settings for the Firecrawl API
type ClientConfig struct {
	APIKey            string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Client handles communication with the Firecrawl scrape/extract API.
// It performs exactly one outbound call per Extract and never retries.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	timeout     time.Duration
	rateLimiter *rate.Limiter
	logger      *zap.Logger
	debug       bool
}

// NewClient creates a new Firecrawl API client
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		timeout:     cfg.Timeout,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:      logger,
	}
}

// SetDebug enables logging of raw response bodies
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// Extract asks the backend to scrape req.URL and return fields matching req.Schema.
// Every failure mode is reported as a failed ExtractResult.
func (c *Client) Extract(ctx context.Context, req domain.ExtractRequest) domain.ExtractResult {
	start := time.Now()
	result := c.extract(ctx, req)
	metrics.ObserveExtraction(req.RetailerKey, start, result.Success)

	if !result.Success {
		c.logger.Warn("firecrawl.extract_failed",
			zap.String("retailer", req.RetailerKey),
			zap.String("url", req.URL),
			zap.String("error", result.ErrorMessage),
			zap.Duration("elapsed", time.Since(start)))
		return result
	}

	c.logger.Debug("firecrawl.extract_success",
		zap.String("retailer", req.RetailerKey),
		zap.String("url", req.URL),
		zap.Int("fields", len(result.Fields)),
		zap.Duration("elapsed", time.Since(start)))
	return result
}

func (c *Client) extract(ctx context.Context, req domain.ExtractRequest) domain.ExtractResult {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return domain.ExtractFailed("rate limiter: %v", err)
	}

	payload := scrapeRequest{
		URL:     req.URL,
		Formats: []string{"extract"},
		Extract: extractOptions{
			Schema:       req.Schema.JSONSchema(),
			SystemPrompt: req.GuidancePrompt,
		},
		Timeout: int(c.timeout.Milliseconds()),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.ExtractFailed("encode request: %v", err)
	}

	resp, err := c.doRequest(ctx, body)
	if err != nil {
		return domain.ExtractFailed("%v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.ExtractFailed("read response: %v", err)
	}

	if c.debug {
		c.logger.Debug("firecrawl.response",
			zap.String("retailer", req.RetailerKey),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody))
	}

	var envelope scrapeResponse
	decodeErr := json.Unmarshal(respBody, &envelope)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decodeErr == nil && envelope.Error != "" {
			return domain.ExtractFailed("status %d: %s", resp.StatusCode, envelope.Error)
		}
		return domain.ExtractFailed("status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return domain.ExtractFailed("decode response: %v", decodeErr)
	}
	if !envelope.Success {
		msg := envelope.Error
		if msg == "" {
			msg = "backend reported failure"
		}
		return domain.ExtractFailed("%s", msg)
	}
	if envelope.Data == nil || envelope.Data.Extract == nil {
		return domain.ExtractFailed("response has no extract payload")
	}

	return domain.ExtractSucceeded(envelope.Data.Extract)
}

// doRequest executes the scrape POST with proper headers
func (c *Client) doRequest(ctx context.Context, body []byte) (*http.Response, error) {
	endpoint := fmt.Sprintf("%s/v1/scrape", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", "PriceLens/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}
	return resp, nil
}
