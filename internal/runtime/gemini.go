package runtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ashureev/countrychat/internal/domain"
	"google.golang.org/genai"
)

// GeminiLLM implements LLM over the Gemini API.
type GeminiLLM struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini-backed LLM.
func NewGemini(ctx context.Context, apiKey, model string) (*GeminiLLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("gemini: model name is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiLLM{client: client, model: model}, nil
}

// Name returns the configured model name.
func (l *GeminiLLM) Name() string {
	return l.model
}

// Generate performs one non-streaming model invocation.
func (l *GeminiLLM) Generate(ctx context.Context, req *ModelRequest) (*ModelResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("gemini: request is nil")
	}

	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	if len(req.Tools) > 0 {
		config.Tools = []*genai.Tool{{
			FunctionDeclarations: toFunctionDeclarations(req.Tools),
		}}
	}

	resp, err := l.client.Models.GenerateContent(ctx, l.model, toGenaiContents(req.Contents), config)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini: empty candidates")
	}

	out := &ModelResponse{
		Content: fromGenaiContent(resp.Candidates[0].Content),
	}
	if resp.UsageMetadata != nil {
		if raw, err := json.Marshal(resp.UsageMetadata); err == nil {
			out.Usage = raw
		}
	}
	return out, nil
}

func toGenaiContents(contents []*domain.Content) []*genai.Content {
	out := make([]*genai.Content, 0, len(contents))
	for _, c := range contents {
		if c == nil {
			continue
		}
		parts := make([]*genai.Part, 0, len(c.Parts))
		for _, p := range c.Parts {
			if p == nil {
				continue
			}
			switch {
			case p.FunctionCall != nil:
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						Name: p.FunctionCall.Name,
						Args: p.FunctionCall.Args,
					},
				})
			case p.FunctionResponse != nil:
				parts = append(parts, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{
						Name:     p.FunctionResponse.Name,
						Response: p.FunctionResponse.Response,
					},
				})
			case p.Text != "":
				parts = append(parts, &genai.Part{Text: p.Text})
			}
		}
		if len(parts) == 0 {
			continue
		}
		out = append(out, &genai.Content{Role: c.Role, Parts: parts})
	}
	return out
}

func fromGenaiContent(content *genai.Content) *domain.Content {
	out := &domain.Content{Role: content.Role, Parts: []*domain.Part{}}
	for _, p := range content.Parts {
		if p == nil {
			continue
		}
		switch {
		case p.FunctionCall != nil:
			out.Parts = append(out.Parts, &domain.Part{
				FunctionCall: &domain.FunctionCall{
					Name: p.FunctionCall.Name,
					Args: p.FunctionCall.Args,
				},
			})
		case p.FunctionResponse != nil:
			out.Parts = append(out.Parts, &domain.Part{
				FunctionResponse: &domain.FunctionResponse{
					Name:     p.FunctionResponse.Name,
					Response: p.FunctionResponse.Response,
				},
			})
		case p.Text != "":
			out.Parts = append(out.Parts, &domain.Part{Text: p.Text})
		}
	}
	return out
}

func toFunctionDeclarations(tools []ToolDefinition) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  toSchema(tool.Parameters),
		})
	}
	return decls
}

// toSchema converts the plain-map parameter shape used by tool definitions
// into the SDK's schema type. Only the object/string subset the tools use is
// mapped.
func toSchema(params map[string]any) *genai.Schema {
	if len(params) == 0 {
		return nil
	}
	schema := &genai.Schema{}
	switch params["type"] {
	case "object":
		schema.Type = genai.TypeObject
	case "string":
		schema.Type = genai.TypeString
	}
	if desc, ok := params["description"].(string); ok {
		schema.Description = desc
	}
	if props, ok := params["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if sub, ok := raw.(map[string]any); ok {
				schema.Properties[name] = toSchema(sub)
			}
		}
	}
	if required, ok := params["required"].([]string); ok {
		schema.Required = required
	}
	return schema
}
