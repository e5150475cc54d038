package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Event is one record of a conversation step as produced by the agent
// runtime. Actions and UsageMetadata are runtime-internal bookkeeping: they
// are carried opaquely so raw events can be returned to clients, and they are
// stripped before durable persistence (see CleanEvents).
type Event struct {
	ID            string          `json:"id,omitempty"`
	InvocationID  string          `json:"invocationId,omitempty"`
	Author        string          `json:"author,omitempty"`
	Timestamp     float64         `json:"timestamp,omitempty"`
	Content       *Content        `json:"content,omitempty"`
	Actions       json.RawMessage `json:"actions,omitempty"`
	UsageMetadata json.RawMessage `json:"usageMetadata,omitempty"`
}

// Content is the conversational payload of an event: a role plus an ordered
// part sequence. An event whose part sequence is empty is a structural
// marker, not a conversational turn.
type Content struct {
	Role  string  `json:"role,omitempty"`
	Parts []*Part `json:"parts"`
}

// Part is a tagged variant over the recognized part kinds. Exactly one of
// the fields is expected to be set; a part with none set is unrecognized.
type Part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

// FunctionCall is a model-emitted tool invocation request.
type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionResponse is a tool execution result fed back into model context.
type FunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response,omitempty"`
}

// IsZero reports whether no recognized part kind is set.
func (p *Part) IsZero() bool {
	return p == nil || (p.Text == "" && p.FunctionCall == nil && p.FunctionResponse == nil)
}

// Text returns the concatenated text of all text parts in the event content.
func (e *Event) Text() string {
	if e == nil || e.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range e.Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// IsMarker reports whether the event is a structural marker: content present
// with an explicitly empty part sequence. A nil part slice (serialized as a
// null parts field) is absent content, not a marker, and is left alone.
func (e *Event) IsMarker() bool {
	return e != nil && e.Content != nil && e.Content.Parts != nil && len(e.Content.Parts) == 0
}

// DecodeEvents parses a serialized event log. Unrecognized part shapes are
// dropped rather than propagated untyped; an event whose content listed only
// unrecognized parts keeps its (now empty) part sequence and is later removed
// as a marker by CleanEvents.
func DecodeEvents(data []byte) ([]*Event, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var events []*Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("decode event log: %w", err)
	}
	for _, ev := range events {
		if ev == nil || ev.Content == nil {
			continue
		}
		kept := ev.Content.Parts[:0]
		for _, part := range ev.Content.Parts {
			if !part.IsZero() {
				kept = append(kept, part)
			}
		}
		ev.Content.Parts = kept
	}
	return events, nil
}

// EncodeEvents serializes an event log for durable storage.
func EncodeEvents(events []*Event) ([]byte, error) {
	if events == nil {
		events = []*Event{}
	}
	data, err := json.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("encode event log: %w", err)
	}
	return data, nil
}

// CleanEvents prepares an event log for durable persistence: structural
// marker events are dropped and bookkeeping fields are stripped from the
// retained events. The input slice and its events are left untouched so the
// raw log can still be returned to the client.
func CleanEvents(events []*Event) []*Event {
	cleaned := make([]*Event, 0, len(events))
	for _, ev := range events {
		if ev == nil || ev.IsMarker() {
			continue
		}
		cp := *ev
		cp.Actions = nil
		cp.UsageMetadata = nil
		cleaned = append(cleaned, &cp)
	}
	return cleaned
}
