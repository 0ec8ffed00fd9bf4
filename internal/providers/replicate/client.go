// Package replicate is a minimal client for the Replicate predictions API used
// to enhance (upscale) finished flyers.
package replicate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"flyerproxy/internal/codec"
	"flyerproxy/internal/domain"
	"flyerproxy/internal/infra"
	"flyerproxy/internal/resilient"
)

const (
	defaultBaseURL   = "https://api.replicate.com/v1"
	maxAssetBytes    = 128 << 20
	maxResponseBytes = 256 << 20
	maxErrorBytes    = 64 << 10
	downloadAttempts = 3
)

// Options controls how the Replicate client is configured.
type Options struct {
	BaseURL string
	Fetcher *resilient.Fetcher
	Logger  *infra.Logger
}

type Client struct {
	baseURL string
	fetcher *resilient.Fetcher
	logger  *infra.Logger
}

// APIError is a non-2xx answer from Replicate.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("replicate status %d", e.StatusCode)
	}
	return fmt.Sprintf("replicate status %d: %s", e.StatusCode, e.Detail)
}

// Prediction is the subset of a Replicate prediction the service reads.
type Prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
}

// State returns the normalized prediction status.
func (p *Prediction) State() domain.PredictionStatus {
	return domain.NormalizePredictionStatus(p.Status)
}

// OutputURL returns the first asset URL. Models answer with either a single
// string or a list of strings.
func (p *Prediction) OutputURL() string {
	if len(p.Output) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(p.Output, &single); err == nil {
		return strings.TrimSpace(single)
	}
	var many []string
	if err := json.Unmarshal(p.Output, &many); err == nil {
		for _, u := range many {
			if u = strings.TrimSpace(u); u != "" {
				return u
			}
		}
	}
	return ""
}

// FailureReason renders the prediction error, which may be a string or an
// arbitrary JSON value.
func (p *Prediction) FailureReason() string {
	if len(p.Error) == 0 || string(p.Error) == "null" {
		return ""
	}
	var msg string
	if err := json.Unmarshal(p.Error, &msg); err == nil {
		return msg
	}
	return string(p.Error)
}

type createRequest struct {
	Version string         `json:"version"`
	Input   map[string]any `json:"input"`
}

func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = &resilient.Fetcher{Client: &http.Client{Timeout: 120 * time.Second}, Logger: opts.Logger}
	}
	return &Client{
		baseURL: base,
		fetcher: fetcher,
		logger:  infra.OrDiscard(opts.Logger),
	}
}

// CreatePrediction starts a prediction and asks Replicate to hold the
// connection until it finishes when it can.
func (c *Client) CreatePrediction(ctx context.Context, token, version string, input map[string]any) (*Prediction, error) {
	if strings.TrimSpace(version) == "" {
		return nil, errors.New("replicate: model version required")
	}
	body, err := json.Marshal(createRequest{Version: version, Input: input})
	if err != nil {
		return nil, fmt.Errorf("replicate: marshal request: %w", err)
	}
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Prefer", "wait")
	var out Prediction
	if err := c.call(ctx, token, http.MethodPost, c.baseURL+"/predictions", header, body, &out); err != nil {
		return nil, err
	}
	c.logger.Debug().Str("prediction", out.ID).Str("status", out.Status).Msg("replicate: prediction created")
	return &out, nil
}

// GetPrediction fetches the current state of a prediction.
func (c *Client) GetPrediction(ctx context.Context, token, id string) (*Prediction, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("replicate: prediction id required")
	}
	var out Prediction
	if err := c.call(ctx, token, http.MethodGet, c.baseURL+"/predictions/"+url.PathEscape(id), http.Header{}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Download fetches an output asset and reports its MIME type.
func (c *Client) Download(ctx context.Context, assetURL string) ([]byte, string, error) {
	assetURL = strings.TrimSpace(assetURL)
	if assetURL == "" {
		return nil, "", errors.New("replicate: empty asset url")
	}
	resp, err := c.fetcher.Do(ctx, resilient.Request{Method: http.MethodGet, URL: assetURL}, downloadAttempts, time.Second)
	if err != nil {
		return nil, "", fmt.Errorf("replicate: download asset: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, "", fmt.Errorf("replicate: download asset: http %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes))
	if err != nil {
		return nil, "", fmt.Errorf("replicate: read asset: %w", err)
	}
	return data, codec.SniffMIME(data, resp.Header.Get("Content-Type")), nil
}

func (c *Client) call(ctx context.Context, token, method, endpoint string, header http.Header, body []byte, out any) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.ErrMissingAPIKey
	}
	header.Set("Authorization", "Bearer "+token)

	resp, err := c.fetcher.Do(ctx, resilient.Request{Method: method, URL: endpoint, Header: header, Body: body}, 1, time.Second)
	if err != nil {
		var statusErr *resilient.StatusError
		if errors.As(err, &statusErr) {
			return &APIError{StatusCode: statusErr.StatusCode, Detail: detail([]byte(statusErr.Body))}
		}
		return fmt.Errorf("replicate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		return &APIError{StatusCode: resp.StatusCode, Detail: detail(raw)}
	}
	// Predictions echo their input, which carries the whole source image.
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("replicate: decode response: %w", err)
	}
	return nil
}

func detail(raw []byte) string {
	var body struct {
		Detail string `json:"detail"`
		Title  string `json:"title"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Detail != "" {
			return body.Detail
		}
		if body.Title != "" {
			return body.Title
		}
	}
	return strings.TrimSpace(string(raw))
}
