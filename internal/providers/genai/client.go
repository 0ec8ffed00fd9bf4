// Package genai is a REST client for the Gemini generative-image API: the
// synchronous generate endpoint, batch submission and batch status.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"flyerproxy/internal/domain"
	"flyerproxy/internal/infra"
	"flyerproxy/internal/resilient"
)

const (
	defaultBaseURL   = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel     = "gemini-3-pro-image-preview"
	keyPrefix        = "request-"
	maxResponseBytes = 256 << 20
)

// Options controls how the Gemini client is configured.
type Options struct {
	BaseURL          string
	Model            string
	Fetcher          *resilient.Fetcher
	Logger           *infra.Logger
	SyncRetries      int
	SyncInitialDelay time.Duration
}

// Client talks to the Gemini REST API. API keys are supplied per call since
// they belong to the end user.
type Client struct {
	baseURL          string
	model            string
	fetcher          *resilient.Fetcher
	logger           *infra.Logger
	syncRetries      int
	syncInitialDelay time.Duration
}

// APIError is a non-2xx answer from the provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gemini status %d", e.StatusCode)
	}
	return fmt.Sprintf("gemini status %d: %s", e.StatusCode, e.Message)
}

// BatchItem is one request of a batch submission.
type BatchItem struct {
	Contents json.RawMessage
}

// BatchSubmission is the classified answer to a batch submit: either the
// results are already inline, or Name must be polled.
type BatchSubmission struct {
	Immediate bool
	Responses []InlinedResponse
	Name      string
}

// BatchStatus is one observation of a polled batch job.
type BatchStatus struct {
	State     domain.JobState
	RawState  string
	Reason    string
	Responses []InlinedResponse
}

// NewClient constructs a Gemini client with sane defaults.
func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = &resilient.Fetcher{Client: &http.Client{Timeout: 120 * time.Second}, Logger: opts.Logger}
	}
	retries := opts.SyncRetries
	if retries <= 0 {
		retries = 3
	}
	delay := opts.SyncInitialDelay
	if delay <= 0 {
		delay = time.Second
	}
	return &Client{
		baseURL:          baseURL,
		model:            model,
		fetcher:          fetcher,
		logger:           infra.OrDiscard(opts.Logger),
		syncRetries:      retries,
		syncInitialDelay: delay,
	}
}

// Model returns the configured Gemini model identifier.
func (c *Client) Model() string {
	return c.model
}

// GenerateContent performs one synchronous generation with transient-status
// retry.
func (c *Client) GenerateContent(ctx context.Context, apiKey string, contents json.RawMessage, cfg ImageConfig) (*GenerateContentResponse, error) {
	payload := generateContentRequest{Contents: contents, GenerationConfig: newGenerationConfig(cfg)}
	var out GenerateContentResponse
	path := fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.model))
	if err := c.invoke(ctx, apiKey, http.MethodPost, path, payload, &out, c.syncRetries); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitBatch sends all items as one batch job. It is attempted once; the
// caller decides what to do on failure.
func (c *Client) SubmitBatch(ctx context.Context, apiKey string, items []BatchItem, cfg ImageConfig) (*BatchSubmission, error) {
	if len(items) == 0 {
		return nil, errors.New("gemini: empty batch")
	}
	var payload batchCreateRequest
	payload.Batch.DisplayName = "flyer-" + uuid.NewString()
	gc := newGenerationConfig(cfg)
	requests := make([]batchRequestItem, len(items))
	for i, item := range items {
		requests[i] = batchRequestItem{
			Request:  generateContentRequest{Contents: item.Contents, GenerationConfig: gc},
			Metadata: map[string]string{"key": keyPrefix + strconv.Itoa(i)},
		}
	}
	payload.Batch.InputConfig.Requests.Requests = requests

	var env batchEnvelope
	path := fmt.Sprintf("/models/%s:batchGenerateContent", url.PathEscape(c.model))
	if err := c.invoke(ctx, apiKey, http.MethodPost, path, payload, &env, 1); err != nil {
		return nil, err
	}
	if results := env.inlined(); len(results) > 0 {
		return &BatchSubmission{Immediate: true, Responses: results}, nil
	}
	if env.Error != nil && env.Error.Message != "" {
		return nil, fmt.Errorf("gemini: %w: %s", domain.ErrBatchUnavailable, env.Error.Message)
	}
	name := env.jobName()
	if name == "" {
		return nil, fmt.Errorf("gemini: %w: response carried neither results nor a job name", domain.ErrBatchUnavailable)
	}
	c.logger.Debug().Str("batch", name).Int("requests", len(items)).Msg("genai: batch submitted")
	return &BatchSubmission{Name: name}, nil
}

// GetBatch fetches the current state of a batch job.
func (c *Client) GetBatch(ctx context.Context, apiKey, name string) (*BatchStatus, error) {
	name = strings.Trim(strings.TrimSpace(name), "/")
	if name == "" {
		return nil, errors.New("gemini: batch name required")
	}
	var env batchEnvelope
	if err := c.invoke(ctx, apiKey, http.MethodGet, "/"+name, nil, &env, 1); err != nil {
		return nil, err
	}
	return classifyBatch(&env), nil
}

func classifyBatch(env *batchEnvelope) *BatchStatus {
	raw := env.rawState()
	status := &BatchStatus{RawState: raw, Responses: env.inlined()}
	upper := strings.ToUpper(raw)
	switch {
	case env.Error != nil && (env.Done || env.Error.Message != ""):
		status.State = domain.JobStateFailed
		status.Reason = env.Error.Message
	case strings.HasSuffix(upper, "_SUCCEEDED"):
		status.State = domain.JobStateSucceeded
	case strings.HasSuffix(upper, "_FAILED"), strings.HasSuffix(upper, "_CANCELLED"), strings.HasSuffix(upper, "_EXPIRED"):
		status.State = domain.JobStateFailed
		status.Reason = raw
	case raw == "" && env.Done:
		status.State = domain.JobStateSucceeded
	default:
		status.State = domain.JobStatePending
	}
	if status.State == domain.JobStateFailed && status.Reason == "" {
		status.Reason = "batch job failed"
	}
	return status
}

// ExtractImages returns the first inline image of each response item. When
// ordered is set, items are sorted by the request index recorded in their
// metadata key; otherwise upstream order is kept. Items without an image are
// skipped, so the result never exceeds len(items).
func ExtractImages(items []InlinedResponse, ordered bool) []string {
	if ordered {
		items = append([]InlinedResponse(nil), items...)
		sort.SliceStable(items, func(i, j int) bool {
			return requestIndex(items[i]) < requestIndex(items[j])
		})
	}
	images := make([]string, 0, len(items))
	for _, item := range items {
		if img, ok := item.Response.FirstImage(); ok {
			images = append(images, img)
		}
	}
	return images
}

func requestIndex(item InlinedResponse) int {
	key, _ := item.Metadata["key"].(string)
	if strings.HasPrefix(key, keyPrefix) {
		if n, err := strconv.Atoi(strings.TrimPrefix(key, keyPrefix)); err == nil {
			return n
		}
	}
	return math.MaxInt
}

func (c *Client) invoke(ctx context.Context, apiKey, method, path string, payload, out any, attempts int) error {
	if strings.TrimSpace(apiKey) == "" {
		return domain.ErrMissingAPIKey
	}
	req := resilient.Request{
		Method: method,
		URL:    c.baseURL + path,
		Header: http.Header{"x-goog-api-key": []string{strings.TrimSpace(apiKey)}},
	}
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("gemini: marshal request: %w", err)
		}
		req.Body = body
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.fetcher.Do(ctx, req, attempts, c.syncInitialDelay)
	if err != nil {
		var statusErr *resilient.StatusError
		if errors.As(err, &statusErr) {
			return &APIError{StatusCode: statusErr.StatusCode, Message: apiMessage([]byte(statusErr.Body))}
		}
		return fmt.Errorf("gemini: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("gemini: read response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return &APIError{StatusCode: resp.StatusCode, Message: apiMessage(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("gemini: decode response: %w", err)
	}
	return nil
}

func apiMessage(raw []byte) string {
	var detail errorResponse
	if err := json.Unmarshal(raw, &detail); err == nil && detail.Error.Message != "" {
		return detail.Error.Message
	}
	return strings.TrimSpace(string(raw))
}
