package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/radiodj/pkg/provider/llm"
)

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New("", "gpt-4o"); err == nil {
		t.Fatal("expected error for empty api key")
	}
	p, err := New("sk-test", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Model() != DefaultModel {
		t.Errorf("model = %q, want %q", p.Model(), DefaultModel)
	}
}

func TestConvertMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		role    string
		wantErr bool
	}{
		{role: llm.RoleSystem},
		{role: llm.RoleUser},
		{role: llm.RoleAssistant},
		{role: "tool", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			t.Parallel()
			_, err := convertMessage(llm.Message{Role: tt.role, Content: "hi"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuildParams(t *testing.T) {
	t.Parallel()

	p, err := New("sk-test", "gpt-4o")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	params, err := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "You are a DJ.",
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "announce"}},
		Temperature:  0.9,
		MaxTokens:    100,
	})
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(params.Messages))
	}
	if params.Messages[0].OfSystem == nil {
		t.Error("first message should be the system prompt")
	}
	if got := params.Temperature.Value; got != 0.9 {
		t.Errorf("temperature = %v, want 0.9", got)
	}
	if got := params.MaxCompletionTokens.Value; got != 100 {
		t.Errorf("max tokens = %d, want 100", got)
	}

	if _, err := p.buildParams(llm.CompletionRequest{}); err == nil {
		t.Error("expected error for empty request")
	}
}

func TestComplete_HTTP(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "Buckle up, haulers!"}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`)
	}))
	defer srv.Close()

	p, err := New("sk-test", "gpt-4o", WithBaseURL(srv.URL+"/"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: "go"}},
		Temperature: 0.9,
		MaxTokens:   100,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "Buckle up, haulers!" {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("total tokens = %d, want 15", resp.Usage.TotalTokens)
	}
	if body["model"] != "gpt-4o" {
		t.Errorf("model sent = %v", body["model"])
	}
	if body["temperature"] != 0.9 {
		t.Errorf("temperature sent = %v", body["temperature"])
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","created":1,"model":"gpt-4o","choices":[]}`)
	}))
	defer srv.Close()

	p, _ := New("sk-test", "gpt-4o", WithBaseURL(srv.URL+"/"))
	if _, err := p.Complete(context.Background(), llm.CompletionRequest{SystemPrompt: "x"}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestComplete_FinishStates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		choice        string
		wantErr       bool
		wantTruncated bool
	}{
		{
			name:   "stop",
			choice: `{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Stay tuned."}}`,
		},
		{
			name:          "length",
			choice:        `{"index": 0, "finish_reason": "length", "message": {"role": "assistant", "content": "Stay tuned for"}}`,
			wantTruncated: true,
		},
		{
			name:    "refusal",
			choice:  `{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "", "refusal": "I can't help with that."}}`,
			wantErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","created":1,"model":"gpt-4o","choices":[`+tc.choice+`]}`)
			}))
			defer srv.Close()

			p, err := New("sk-test", "gpt-4o", WithBaseURL(srv.URL+"/"))
			if err != nil {
				t.Fatal(err)
			}
			resp, err := p.Complete(context.Background(), llm.CompletionRequest{SystemPrompt: "x"})
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Complete: %v", err)
			}
			if resp.Truncated != tc.wantTruncated {
				t.Errorf("Truncated = %v, want %v", resp.Truncated, tc.wantTruncated)
			}
		})
	}
}
