// Package runtime implements the in-process agent runtime: an in-memory
// session service plus a runner that executes conversational turns against a
// language model with tool calling.
package runtime

import (
	"context"
	"encoding/json"

	"github.com/ashureev/countrychat/internal/domain"
)

// ModelRequest is a provider-agnostic model invocation.
type ModelRequest struct {
	System   string
	Contents []*domain.Content
	Tools    []ToolDefinition
}

// ModelResponse is the model's reply for one invocation. Usage carries
// provider usage accounting verbatim; it is bookkeeping, not conversation.
type ModelResponse struct {
	Content *domain.Content
	Usage   json.RawMessage
}

// LLM is the model abstraction used by the runner.
type LLM interface {
	Name() string
	Generate(ctx context.Context, req *ModelRequest) (*ModelResponse, error)
}
