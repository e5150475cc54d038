package runtime

import (
	"context"
	"fmt"
	"regexp"

	"github.com/ashureev/countrychat/internal/countries"
	"github.com/ashureev/countrychat/internal/domain"
)

const rootAgentName = "countries_agent"

const rootAgentInstruction = `You are a helpful agent that helps users get information about countries.
Follow this protocol:

1. Identify the country:
   - Determine which country the user is asking about.
   - If user is greeting or not asking a clear question (e.g. "hi", "hello"), introduce yourself and what you can do.
   - If user is not asking about countries or asking out-of-bond topics, refuse to answer and suggest a question you CAN answer.

2. Answer by calling the capital or flag tools:
   - If user specifically asks for capital and/or flag, answer with the right tool(s).
   - If the question is very general (e.g. "tell me about France"), answer with the capital.

3. Else, check if user is asking about {last_mentioned_country?}.
   - (A) If yes: Call 'country_general_knowledge_agent' to answer.
   - (B) If no: Refuse to answer.
   - Example: If user is asking about France and " {last_mentioned_country?} " is France, you can answer.

4. Output format:
   - ALWAYS respond with ONLY a valid JSON object. No additional content (text, image etc) before or after. Do not put the JSON itself in code block.
   - The JSON must have these fields:
      * "message" (string, required): The main response to the user (can be from tools)
      * "status" (string, required): One of "success", "error", or "denied"
   - Example responses:
      - Success: {"message": "The capital of France is Paris.", "status": "success"}
      - Denied: {"message": "I cannot answer that. What about '...' (give example of a eligible question)", "status": "denied"}
`

const knowledgeAgentInstruction = `You are a Geography educator on primary to secondary education level.
You answer questions about FUNDAMENTAL PHYSICAL AND GEOGRAPHIC FACTS (location, terrain, climate, natural features).
Refuse questions about temporal, political, social, cultural, or changeable aspects (current events, contemporary figures, governance).
Keep answers brief (1-2 sentences).`

// Agent defines a conversational agent: its identity, instruction and tools.
type Agent struct {
	Name        string
	Description string
	Instruction string
	Tools       []Tool
}

// NewCountriesAgent builds the countries agent with its capital/flag lookup
// tools and the general-knowledge sub-agent tool.
func NewCountriesAgent(llm LLM, lookup *countries.Lookup) *Agent {
	return &Agent{
		Name:        rootAgentName,
		Description: "Agent to answer questions about the capital or flag of a country.",
		Instruction: rootAgentInstruction,
		Tools: []Tool{
			NewCapitalTool(lookup),
			NewFlagTool(lookup),
			NewAgentTool("country_general_knowledge_agent", knowledgeAgentInstruction, llm),
		},
	}
}

// agentTool exposes a secondary single-shot agent as a callable tool.
type agentTool struct {
	name        string
	instruction string
	llm         LLM
}

// NewAgentTool wraps an instruction-bound model call as a tool. The model
// receives only the request text; it has no access to the parent session.
func NewAgentTool(name, instruction string, llm LLM) Tool {
	return &agentTool{name: name, instruction: instruction, llm: llm}
}

func (t *agentTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        t.name,
		Description: "Answers general geography questions about the last mentioned country.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"request": map[string]any{
					"type":        "string",
					"description": "The question to forward to the sub-agent.",
				},
			},
			"required": []string{"request"},
		},
	}
}

func (t *agentTool) Call(ctx context.Context, _ *ToolContext, args map[string]any) (map[string]any, error) {
	request := stringArg(args, "request")
	resp, err := t.llm.Generate(ctx, &ModelRequest{
		System: t.instruction,
		Contents: []*domain.Content{
			{Role: "user", Parts: []*domain.Part{{Text: request}}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sub-agent %s: %w", t.name, err)
	}
	answer := ""
	if resp.Content != nil {
		for _, part := range resp.Content.Parts {
			if part != nil {
				answer += part.Text
			}
		}
	}
	return map[string]any{"result": answer}, nil
}

var statePlaceholderPattern = regexp.MustCompile(`\{(\w+)\?\}`)

// renderInstruction substitutes optional {key?} placeholders in the agent
// instruction with session state values, empty when unset.
func renderInstruction(instruction string, state func(key string) (any, bool)) string {
	return statePlaceholderPattern.ReplaceAllStringFunc(instruction, func(match string) string {
		key := statePlaceholderPattern.FindStringSubmatch(match)[1]
		if v, ok := state(key); ok {
			return fmt.Sprintf("%v", v)
		}
		return ""
	})
}
