package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"flyerproxy/internal/domain"
	"flyerproxy/internal/providers/genai"
)

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delays)
}

type statusResult struct {
	status *genai.BatchStatus
	err    error
}

// fakeGenerator scripts the provider. statuses are consumed in order and the
// last one repeats.
type fakeGenerator struct {
	mu            sync.Mutex
	submit        func(items []genai.BatchItem) (*genai.BatchSubmission, error)
	statuses      []statusResult
	generate      func(contents json.RawMessage) (*genai.GenerateContentResponse, error)
	submitCalls   int
	statusCalls   int
	generateCalls int
	lastConfig    genai.ImageConfig
}

func (f *fakeGenerator) SubmitBatch(_ context.Context, _ string, items []genai.BatchItem, cfg genai.ImageConfig) (*genai.BatchSubmission, error) {
	f.mu.Lock()
	f.submitCalls++
	f.lastConfig = cfg
	f.mu.Unlock()
	if f.submit == nil {
		return nil, fmt.Errorf("batch endpoint unavailable")
	}
	return f.submit(items)
}

func (f *fakeGenerator) GetBatch(_ context.Context, _ string, _ string) (*genai.BatchStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if len(f.statuses) == 0 {
		return &genai.BatchStatus{State: domain.JobStatePending}, nil
	}
	idx := f.statusCalls - 1
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	return f.statuses[idx].status, f.statuses[idx].err
}

func (f *fakeGenerator) GenerateContent(_ context.Context, _ string, contents json.RawMessage, _ genai.ImageConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	f.generateCalls++
	f.mu.Unlock()
	if f.generate == nil {
		return nil, fmt.Errorf("sync endpoint unavailable")
	}
	return f.generate(contents)
}

func imageResp(data string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []genai.Candidate{{
		Content: genai.Content{Parts: []genai.Part{{InlineData: &genai.InlineData{MimeType: "image/png", Data: data}}}},
	}}}
}

func keyed(i int, data string) genai.InlinedResponse {
	return genai.InlinedResponse{
		Response: imageResp(data),
		Metadata: map[string]any{"key": fmt.Sprintf("request-%d", i)},
	}
}

func dataURI(data string) string {
	return "data:image/png;base64," + data
}

// requests builds n generation requests whose contents are the JSON string
// of their index.
func requests(n int) []domain.GenerationRequest {
	out := make([]domain.GenerationRequest, n)
	for i := range out {
		out[i] = domain.GenerationRequest{Contents: json.RawMessage(fmt.Sprintf("%q", fmt.Sprint(i)))}
	}
	return out
}

func requestID(contents json.RawMessage) string {
	var id string
	_ = json.Unmarshal(contents, &id)
	return id
}
