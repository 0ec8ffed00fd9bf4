package replicate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"flyerproxy/internal/domain"
)

func TestCreatePredictionSendsWaitHint(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/predictions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer r8-token" {
			t.Errorf("unexpected auth header: %s", got)
		}
		if got := r.Header.Get("Prefer"); got != "wait" {
			t.Errorf("Prefer = %q, want wait", got)
		}
		var payload createRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if payload.Version != "v1" || payload.Input["scale"] != float64(2) {
			t.Errorf("unexpected payload: %+v", payload)
		}
		_, _ = w.Write([]byte(`{"id":"p1","status":"succeeded","output":"https://cdn.example.com/out.png"}`))
	}))
	defer ts.Close()

	client := NewClient(Options{BaseURL: ts.URL})
	pred, err := client.CreatePrediction(context.Background(), "r8-token", "v1", map[string]any{"image": "data:image/png;base64,AA==", "scale": 2})
	if err != nil {
		t.Fatalf("CreatePrediction error: %v", err)
	}
	if pred.State() != domain.PredictionSucceeded {
		t.Fatalf("state = %s", pred.State())
	}
	if got := pred.OutputURL(); got != "https://cdn.example.com/out.png" {
		t.Fatalf("OutputURL = %q", got)
	}
}

func TestCreatePredictionAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"title":"Unauthenticated","detail":"You did not pass a valid authentication token"}`))
	}))
	defer ts.Close()

	_, err := NewClient(Options{BaseURL: ts.URL}).CreatePrediction(context.Background(), "bad", "v1", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Detail != "You did not pass a valid authentication token" {
		t.Fatalf("apiErr = %+v", apiErr)
	}
}

func TestPredictionEchoingLargeInput(t *testing.T) {
	image := "data:image/png;base64," + strings.Repeat("A", 3<<20)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := "processing"
		if r.Method == http.MethodGet {
			status = "succeeded"
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "p1",
			"status": status,
			"input":  map[string]any{"image": image, "scale": 2},
			"output": "https://cdn.example.com/out.png",
		})
	}))
	defer ts.Close()

	client := NewClient(Options{BaseURL: ts.URL})
	pred, err := client.CreatePrediction(context.Background(), "tok", "v1", map[string]any{"image": image})
	if err != nil {
		t.Fatalf("CreatePrediction error: %v", err)
	}
	if pred.ID != "p1" || pred.State() != domain.PredictionProcessing {
		t.Fatalf("prediction = %s/%s", pred.ID, pred.Status)
	}
	pred, err = client.GetPrediction(context.Background(), "tok", "p1")
	if err != nil {
		t.Fatalf("GetPrediction error: %v", err)
	}
	if pred.State() != domain.PredictionSucceeded || pred.OutputURL() != "https://cdn.example.com/out.png" {
		t.Fatalf("prediction = %+v", pred.Status)
	}
}

func TestMissingToken(t *testing.T) {
	_, err := NewClient(Options{}).GetPrediction(context.Background(), "", "p1")
	if !errors.Is(err, domain.ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}
}

func TestGetPrediction(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/predictions/p1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":"p1","status":"failed","error":"CUDA out of memory"}`))
	}))
	defer ts.Close()

	pred, err := NewClient(Options{BaseURL: ts.URL}).GetPrediction(context.Background(), "tok", "p1")
	if err != nil {
		t.Fatalf("GetPrediction error: %v", err)
	}
	if pred.State() != domain.PredictionFailed || pred.FailureReason() != "CUDA out of memory" {
		t.Fatalf("prediction = %+v", pred)
	}
}

func TestOutputURLShapes(t *testing.T) {
	tests := []struct {
		output string
		want   string
	}{
		{output: `"https://a/1.png"`, want: "https://a/1.png"},
		{output: `["", "https://a/2.png", "https://a/3.png"]`, want: "https://a/2.png"},
		{output: `null`, want: ""},
		{output: `{"url":"x"}`, want: ""},
		{output: ``, want: ""},
	}
	for _, tc := range tests {
		p := Prediction{Output: json.RawMessage(tc.output)}
		if got := p.OutputURL(); got != tc.want {
			t.Fatalf("OutputURL(%s) = %q, want %q", tc.output, got, tc.want)
		}
	}
}

func TestDownload(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 1}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(png)
	}))
	defer ts.Close()

	data, mime, err := NewClient(Options{}).Download(context.Background(), ts.URL+"/out.png")
	if err != nil {
		t.Fatalf("Download error: %v", err)
	}
	if string(data) != string(png) {
		t.Fatalf("unexpected bytes: %v", data)
	}
	if mime != "image/png" {
		t.Fatalf("mime = %q, want image/png", mime)
	}
}
