package anyllm

import (
	"strings"
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/radiodj/pkg/provider/llm"
)

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		provider string
		model    string
		wantErr  string
	}{
		{name: "empty provider", provider: "", model: "gpt-4o", wantErr: "providerName"},
		{name: "empty model", provider: "openai", model: "", wantErr: "model"},
		{name: "unsupported", provider: "fakecloud", model: "m", wantErr: "unsupported provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.provider, tt.model, anyllmlib.WithAPIKey("dummy"))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestBuildParams(t *testing.T) {
	t.Parallel()

	p := &Provider{model: "claude-3-5-haiku-latest"}
	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "You are Ava.",
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "announce"}},
		Temperature:  0.9,
		MaxTokens:    100,
	})

	if params.Model != "claude-3-5-haiku-latest" {
		t.Errorf("model = %q", params.Model)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(params.Messages))
	}
	if params.Messages[0].Role != anyllmlib.RoleSystem {
		t.Errorf("first role = %q, want system", params.Messages[0].Role)
	}
	if params.Temperature == nil || *params.Temperature != 0.9 {
		t.Errorf("temperature = %v, want 0.9", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 100 {
		t.Errorf("max tokens = %v, want 100", params.MaxTokens)
	}
}

func TestBuildParams_ZeroValuesOmitted(t *testing.T) {
	t.Parallel()

	p := &Provider{model: "llama3"}
	params := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	if params.Temperature != nil {
		t.Error("temperature should be nil when unset")
	}
	if params.MaxTokens != nil {
		t.Error("max tokens should be nil when unset")
	}
}

func TestNew_NameIsLowercased(t *testing.T) {
	t.Parallel()

	p, err := New("Ollama", "llama3", anyllmlib.WithBaseURL("http://127.0.0.1:11434"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Name() != "ollama" {
		t.Errorf("Name() = %q, want ollama", p.Name())
	}
}
