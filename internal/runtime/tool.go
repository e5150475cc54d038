package runtime

import (
	"context"
)

// ToolDefinition describes a callable tool for model planning.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolContext lets a tool record session state changes. The collected delta
// is applied to the session and carried on the tool-response event as
// bookkeeping.
type ToolContext struct {
	stateDelta map[string]any
}

// SetState records a session state change.
func (tc *ToolContext) SetState(key string, value any) {
	if tc.stateDelta == nil {
		tc.stateDelta = map[string]any{}
	}
	tc.stateDelta[key] = value
}

// StateDelta returns the state changes recorded during the call.
func (tc *ToolContext) StateDelta() map[string]any {
	return tc.stateDelta
}

// Tool is a callable capability exposed to the model.
type Tool interface {
	Definition() ToolDefinition
	Call(ctx context.Context, tc *ToolContext, args map[string]any) (map[string]any, error)
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}
