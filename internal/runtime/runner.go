package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/ashureev/countrychat/internal/domain"
	"github.com/google/uuid"
)

// maxToolIterations bounds the model/tool loop within one turn.
const maxToolIterations = 8

// Config configures a Runner.
type Config struct {
	AppName  string
	Sessions *SessionService
	Model    LLM
	Agent    *Agent
}

// Runner executes conversational turns. It is constructed once at process
// start and shared across requests; the session service provides the
// per-session synchronization.
type Runner struct {
	app      string
	sessions *SessionService
	model    LLM
	agent    *Agent
	toolMap  map[string]Tool
}

// NewRunner creates a runner for one agent within one application namespace.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.AppName == "" {
		return nil, fmt.Errorf("runtime: app name is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("runtime: session service is nil")
	}
	if cfg.Model == nil {
		return nil, fmt.Errorf("runtime: model is nil")
	}
	if cfg.Agent == nil {
		return nil, fmt.Errorf("runtime: agent is nil")
	}
	toolMap := make(map[string]Tool, len(cfg.Agent.Tools))
	for _, tool := range cfg.Agent.Tools {
		def := tool.Definition()
		if _, exists := toolMap[def.Name]; exists {
			return nil, fmt.Errorf("runtime: duplicate tool %s", def.Name)
		}
		toolMap[def.Name] = tool
	}
	return &Runner{
		app:      cfg.AppName,
		sessions: cfg.Sessions,
		model:    cfg.Model,
		agent:    cfg.Agent,
		toolMap:  toolMap,
	}, nil
}

// Sessions returns the runner's session service.
func (r *Runner) Sessions() *SessionService {
	return r.sessions
}

// AppName returns the application namespace the runner serves.
func (r *Runner) AppName() string {
	return r.app
}

// RunTurn executes one conversational turn and yields the produced events in
// order. The sequence is finite and not restartable; the caller drains it to
// completion before reading the session's updated history. The session must
// already exist in runtime memory.
func (r *Runner) RunTurn(ctx context.Context, userID, sessionID, message string) iter.Seq2[*domain.Event, error] {
	return func(yield func(*domain.Event, error) bool) {
		sess, err := r.sessions.Get(ctx, r.app, userID, sessionID)
		if err != nil {
			yield(nil, err)
			return
		}
		if sess == nil {
			yield(nil, ErrSessionNotFound)
			return
		}

		invocationID := uuid.NewString()

		userEvent := r.newEvent(invocationID, "user", &domain.Content{
			Role:  "user",
			Parts: []*domain.Part{{Text: message}},
		})
		if !r.appendAndYield(ctx, userID, sessionID, userEvent, yield) {
			return
		}

		for i := 0; i < maxToolIterations; i++ {
			events, err := r.sessionEvents(ctx, userID, sessionID)
			if err != nil {
				yield(nil, err)
				return
			}

			resp, err := r.model.Generate(ctx, &ModelRequest{
				System:   r.instruction(ctx, userID, sessionID),
				Contents: eventContents(events),
				Tools:    r.toolDefinitions(),
			})
			if err != nil {
				yield(nil, fmt.Errorf("model generate: %w", err))
				return
			}

			modelEvent := r.newEvent(invocationID, r.agent.Name, resp.Content)
			modelEvent.UsageMetadata = resp.Usage
			if !r.appendAndYield(ctx, userID, sessionID, modelEvent, yield) {
				return
			}

			calls := functionCalls(resp.Content)
			if len(calls) == 0 {
				break
			}

			toolEvent, err := r.executeTools(ctx, invocationID, userID, sessionID, calls)
			if err != nil {
				yield(nil, err)
				return
			}
			if !r.appendAndYield(ctx, userID, sessionID, toolEvent, yield) {
				return
			}
		}

		// Turn-completion marker: empty part sequence, bookkeeping only.
		marker := r.newEvent(invocationID, r.agent.Name, &domain.Content{
			Role:  "model",
			Parts: []*domain.Part{},
		})
		marker.Actions = json.RawMessage(`{"stateDelta":{},"turnComplete":true}`)
		r.appendAndYield(ctx, userID, sessionID, marker, yield)
	}
}

func (r *Runner) appendAndYield(ctx context.Context, userID, sessionID string, ev *domain.Event, yield func(*domain.Event, error) bool) bool {
	if err := r.sessions.AppendEvent(ctx, r.app, userID, sessionID, ev); err != nil {
		yield(nil, err)
		return false
	}
	return yield(ev, nil)
}

func (r *Runner) sessionEvents(ctx context.Context, userID, sessionID string) ([]*domain.Event, error) {
	sess, err := r.sessions.Get(ctx, r.app, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	return sess.Events, nil
}

func (r *Runner) instruction(ctx context.Context, userID, sessionID string) string {
	return renderInstruction(r.agent.Instruction, func(key string) (any, bool) {
		return r.sessions.StateValue(ctx, r.app, userID, sessionID, key)
	})
}

func (r *Runner) toolDefinitions() []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(r.agent.Tools))
	for _, tool := range r.agent.Tools {
		defs = append(defs, tool.Definition())
	}
	return defs
}

// executeTools runs all function calls from one model reply and folds the
// results into a single function-response event.
func (r *Runner) executeTools(ctx context.Context, invocationID, userID, sessionID string, calls []*domain.FunctionCall) (*domain.Event, error) {
	parts := make([]*domain.Part, 0, len(calls))
	delta := map[string]any{}

	for _, call := range calls {
		tool, ok := r.toolMap[call.Name]
		var result map[string]any
		if !ok {
			slog.Warn("model requested unknown tool", "tool", call.Name, "user_id", userID)
			result = map[string]any{
				"status":        "error",
				"error_message": fmt.Sprintf("Unknown tool: %s", call.Name),
			}
		} else {
			tc := &ToolContext{}
			out, err := tool.Call(ctx, tc, call.Args)
			if err != nil {
				return nil, fmt.Errorf("tool %s: %w", call.Name, err)
			}
			result = out
			for k, v := range tc.StateDelta() {
				delta[k] = v
			}
		}
		parts = append(parts, &domain.Part{
			FunctionResponse: &domain.FunctionResponse{
				Name:     call.Name,
				Response: result,
			},
		})
	}

	if err := r.sessions.ApplyStateDelta(ctx, r.app, userID, sessionID, delta); err != nil {
		return nil, err
	}

	ev := r.newEvent(invocationID, r.agent.Name, &domain.Content{
		Role:  "user",
		Parts: parts,
	})
	if len(delta) > 0 {
		if raw, err := json.Marshal(map[string]any{"stateDelta": delta}); err == nil {
			ev.Actions = raw
		}
	}
	return ev, nil
}

func (r *Runner) newEvent(invocationID, author string, content *domain.Content) *domain.Event {
	return &domain.Event{
		ID:           uuid.NewString(),
		InvocationID: invocationID,
		Author:       author,
		Timestamp:    float64(time.Now().UnixMilli()) / 1000,
		Content:      content,
	}
}

func eventContents(events []*domain.Event) []*domain.Content {
	contents := make([]*domain.Content, 0, len(events))
	for _, ev := range events {
		if ev == nil || ev.Content == nil || len(ev.Content.Parts) == 0 {
			continue
		}
		contents = append(contents, ev.Content)
	}
	return contents
}

func functionCalls(content *domain.Content) []*domain.FunctionCall {
	if content == nil {
		return nil
	}
	var calls []*domain.FunctionCall
	for _, part := range content.Parts {
		if part != nil && part.FunctionCall != nil {
			calls = append(calls, part.FunctionCall)
		}
	}
	return calls
}
