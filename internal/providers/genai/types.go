package genai

import (
	"encoding/json"
	"strings"
)

// ImageConfig selects the output size class and aspect ratio.
type ImageConfig struct {
	ImageSize   string
	AspectRatio string
}

type imageConfigPayload struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	ImageSize   string `json:"imageSize,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string            `json:"responseModalities"`
	ImageConfig        *imageConfigPayload `json:"imageConfig,omitempty"`
}

func newGenerationConfig(cfg ImageConfig) *generationConfig {
	gc := &generationConfig{ResponseModalities: []string{"TEXT", "IMAGE"}}
	if cfg.AspectRatio != "" || cfg.ImageSize != "" {
		gc.ImageConfig = &imageConfigPayload{AspectRatio: cfg.AspectRatio, ImageSize: cfg.ImageSize}
	}
	return gc
}

type generateContentRequest struct {
	Contents         json.RawMessage   `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

// InlineData is a binary part. The REST surface emits camelCase, batch
// outputs sometimes snake_case; both are accepted.
type InlineData struct {
	MimeType      string `json:"mimeType,omitempty"`
	MimeTypeSnake string `json:"mime_type,omitempty"`
	Data          string `json:"data,omitempty"`
}

func (d *InlineData) mime() string {
	if d.MimeType != "" {
		return d.MimeType
	}
	if d.MimeTypeSnake != "" {
		return d.MimeTypeSnake
	}
	return "image/png"
}

type Part struct {
	Text            string      `json:"text,omitempty"`
	InlineData      *InlineData `json:"inlineData,omitempty"`
	InlineDataSnake *InlineData `json:"inline_data,omitempty"`
}

func (p Part) inline() *InlineData {
	if p.InlineData != nil && p.InlineData.Data != "" {
		return p.InlineData
	}
	if p.InlineDataSnake != nil && p.InlineDataSnake.Data != "" {
		return p.InlineDataSnake
	}
	return nil
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type GenerateContentResponse struct {
	Candidates     []Candidate `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
}

// FirstImage returns the first inline image of resp as a data URI.
func (r *GenerateContentResponse) FirstImage() (string, bool) {
	if r == nil {
		return "", false
	}
	for _, candidate := range r.Candidates {
		for _, part := range candidate.Content.Parts {
			if data := part.inline(); data != nil {
				return "data:" + data.mime() + ";base64," + strings.TrimSpace(data.Data), true
			}
		}
	}
	return "", false
}

// apiStatus mirrors google.rpc.Status.
type apiStatus struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Status  string `json:"status,omitempty"`
}

type errorResponse struct {
	Error apiStatus `json:"error"`
}

type batchRequestItem struct {
	Request  generateContentRequest `json:"request"`
	Metadata map[string]string      `json:"metadata,omitempty"`
}

type batchCreateRequest struct {
	Batch struct {
		DisplayName string `json:"display_name"`
		InputConfig struct {
			Requests struct {
				Requests []batchRequestItem `json:"requests"`
			} `json:"requests"`
		} `json:"input_config"`
	} `json:"batch"`
}

// InlinedResponse is one per-request result of a batch job.
type InlinedResponse struct {
	Response *GenerateContentResponse `json:"response,omitempty"`
	Metadata map[string]any           `json:"metadata,omitempty"`
	Error    *apiStatus               `json:"error,omitempty"`
}

type inlinedResponses struct {
	InlinedResponses []InlinedResponse `json:"inlinedResponses"`
}

type batchOutput struct {
	InlinedResponses *inlinedResponses `json:"inlinedResponses,omitempty"`
	ResponsesFile    string            `json:"responsesFile,omitempty"`
}

type batchMetadata struct {
	Name   string       `json:"name,omitempty"`
	State  string       `json:"state,omitempty"`
	Output *batchOutput `json:"output,omitempty"`
}

// batchEnvelope covers the shapes the batch endpoints answer with: a
// long-running operation, a bare batch resource, or an immediate list of
// responses.
type batchEnvelope struct {
	Name      string                    `json:"name,omitempty"`
	Done      bool                      `json:"done,omitempty"`
	State     string                    `json:"state,omitempty"`
	Metadata  *batchMetadata            `json:"metadata,omitempty"`
	Response  *batchOutput              `json:"response,omitempty"`
	Output    *batchOutput              `json:"output,omitempty"`
	Responses []GenerateContentResponse `json:"responses,omitempty"`
	Error     *apiStatus                `json:"error,omitempty"`
}

func (e *batchEnvelope) inlined() []InlinedResponse {
	if len(e.Responses) > 0 {
		out := make([]InlinedResponse, len(e.Responses))
		for i := range e.Responses {
			resp := e.Responses[i]
			out[i] = InlinedResponse{Response: &resp}
		}
		return out
	}
	for _, o := range []*batchOutput{e.Response, e.Output, e.metadataOutput()} {
		if o != nil && o.InlinedResponses != nil && len(o.InlinedResponses.InlinedResponses) > 0 {
			return o.InlinedResponses.InlinedResponses
		}
	}
	return nil
}

func (e *batchEnvelope) metadataOutput() *batchOutput {
	if e.Metadata == nil {
		return nil
	}
	return e.Metadata.Output
}

func (e *batchEnvelope) rawState() string {
	if e.Metadata != nil && e.Metadata.State != "" {
		return e.Metadata.State
	}
	return e.State
}

func (e *batchEnvelope) jobName() string {
	if e.Name != "" {
		return e.Name
	}
	if e.Metadata != nil {
		return e.Metadata.Name
	}
	return ""
}
