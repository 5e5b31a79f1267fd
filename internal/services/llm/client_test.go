package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func completionServer(t *testing.T, handler func(w http.ResponseWriter, req chatCompletionRequest)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("authorization header = %q", got)
		}
		handler(w, req)
	}))
	t.Cleanup(server.Close)
	return server
}

func writeContent(w http.ResponseWriter, content string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
	})
}

func TestClientHealthCheck(t *testing.T) {
	server := completionServer(t, func(w http.ResponseWriter, req chatCompletionRequest) {
		if req.ResponseFormat["type"] != jsonResponseType {
			t.Errorf("expected json response format, got %v", req.ResponseFormat)
		}
		writeContent(w, "```json\n{\"ok\":true}\n```")
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"})
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check to fail")
	}
}

func TestCompleteSendsPromptsAndTemperature(t *testing.T) {
	server := completionServer(t, func(w http.ResponseWriter, req chatCompletionRequest) {
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "오늘 하루" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}
		if req.Temperature != 0.7 || req.MaxTokens != 300 {
			t.Errorf("unexpected sampling %v/%d", req.Temperature, req.MaxTokens)
		}
		if req.ResponseFormat != nil {
			t.Errorf("text request should not force json: %v", req.ResponseFormat)
		}
		writeContent(w, "  일기 본문  ")
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	got, err := client.Complete(context.Background(), Request{System: "write", User: "오늘 하루", Temperature: 0.7, MaxTokens: 300})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "일기 본문" {
		t.Fatalf("Complete = %q", got)
	}
}

func TestCompleteRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{})
	if client.Configured() {
		t.Fatal("client without key reported configured")
	}
	if _, err := client.Complete(context.Background(), Request{System: "s", User: "u"}); err == nil {
		t.Fatal("expected api key error")
	}
}

func TestCompleteJSONDecodesProse(t *testing.T) {
	server := completionServer(t, func(w http.ResponseWriter, _ chatCompletionRequest) {
		writeContent(w, "Here you go: {\"기쁨\": 0.8} hope it helps")
	})
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})

	var scores map[string]float64
	if err := client.CompleteJSON(context.Background(), "sys", "user", &scores); err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if scores["기쁨"] != 0.8 {
		t.Fatalf("unexpected scores %v", scores)
	}
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	var calls atomic.Int32
	server := completionServer(t, func(w http.ResponseWriter, _ chatCompletionRequest) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeContent(w, "done")
	})

	var slept []time.Duration
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }))
	got, err := client.Complete(context.Background(), Request{System: "s", User: "u"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "done" || calls.Load() != 2 {
		t.Fatalf("got %q after %d calls", got, calls.Load())
	}
	if len(slept) != 1 || slept[0] != 2*time.Second {
		t.Fatalf("expected Retry-After sleep, got %v", slept)
	}
}

func TestClientEmptyContentExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := completionServer(t, func(w http.ResponseWriter, _ chatCompletionRequest) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": ""}, "finish_reason": "length"}},
		})
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL},
		WithRetryMaxAttempts(3), WithSleeper(func(time.Duration) {}))
	_, err := client.Complete(context.Background(), Request{System: "s", User: "u"})
	if err == nil {
		t.Fatal("expected error for empty completions")
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
	if !strings.Contains(err.Error(), `finish_reason="length"`) {
		t.Fatalf("expected finish reason in error, got %v", err)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := completionServer(t, func(w http.ResponseWriter, _ chatCompletionRequest) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL}, WithSleeper(func(time.Duration) {}))
	if _, err := client.Complete(context.Background(), Request{System: "s", User: "u"}); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestBackoffDelayCaps(t *testing.T) {
	client := NewClient(Config{}, WithRetryBackoff(time.Second, 5*time.Second))
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := client.backoffDelay(i + 1); got != w {
			t.Fatalf("attempt %d delay = %s, want %s", i+1, got, w)
		}
	}
}
