package resilience

import (
	"context"

	"github.com/MrWong99/radiodj/pkg/provider/llm"
)

// LLMFallback implements [llm.Provider] over a [FallbackGroup] of LLM backends.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an empty LLMFallback. Register backends with Add in
// priority order.
func NewLLMFallback(cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{group: NewFallbackGroup[llm.Provider](cfg)}
}

// Add registers a backend.
func (f *LLMFallback) Add(name string, p llm.Provider) {
	f.group.Add(name, p)
}

// Len returns the number of registered backends.
func (f *LLMFallback) Len() int { return f.group.Len() }

// Names returns the backend names in try order.
func (f *LLMFallback) Names() []string { return f.group.Names() }

// Complete sends req to the first healthy backend that answers.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(ctx, f.group, func(ctx context.Context, p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}
