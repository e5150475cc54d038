package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashureev/countrychat/internal/countries"
)

// stateKeyLastCountry tracks the country most recently resolved by a tool.
// The agent instruction references it to decide follow-up eligibility.
const stateKeyLastCountry = "last_mentioned_country"

func countryParameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"country": map[string]any{
				"type":        "string",
				"description": "The name of the country to look up.",
			},
		},
		"required": []string{"country"},
	}
}

type capitalTool struct {
	lookup *countries.Lookup
}

// NewCapitalTool returns the tool that retrieves a country's capital city.
func NewCapitalTool(lookup *countries.Lookup) Tool {
	return &capitalTool{lookup: lookup}
}

func (t *capitalTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "get_country_capital",
		Description: "Retrieves the capital city for a given country.",
		Parameters:  countryParameters(),
	}
}

func (t *capitalTool) Call(ctx context.Context, tc *ToolContext, args map[string]any) (map[string]any, error) {
	country := stringArg(args, "country")
	capital, found, err := t.lookup.Capital(ctx, country)
	if err != nil {
		return map[string]any{
			"status":        "error",
			"error_message": fmt.Sprintf("Failed to retrieve data: %v", err),
		}, nil
	}
	if !found {
		return map[string]any{
			"status":        "error",
			"error_message": fmt.Sprintf("Sorry, I couldn't find the capital for %s.", country),
		}, nil
	}
	tc.SetState(stateKeyLastCountry, strings.ToLower(country))
	return map[string]any{
		"status": "success",
		"result": capital,
	}, nil
}

type flagTool struct {
	lookup *countries.Lookup
}

// NewFlagTool returns the tool that retrieves a country's flag emoji.
func NewFlagTool(lookup *countries.Lookup) Tool {
	return &flagTool{lookup: lookup}
}

func (t *flagTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "get_country_flag",
		Description: "Retrieves the flag emoji for a given country.",
		Parameters:  countryParameters(),
	}
}

func (t *flagTool) Call(ctx context.Context, tc *ToolContext, args map[string]any) (map[string]any, error) {
	country := stringArg(args, "country")
	flag, found, err := t.lookup.Flag(ctx, country)
	if err != nil {
		return map[string]any{
			"status":        "error",
			"error_message": fmt.Sprintf("Failed to retrieve data: %v", err),
		}, nil
	}
	if !found {
		return map[string]any{
			"status":        "error",
			"error_message": fmt.Sprintf("Sorry, I couldn't find the flag for %s.", country),
		}, nil
	}
	tc.SetState(stateKeyLastCountry, strings.ToLower(country))
	return map[string]any{
		"status": "success",
		"result": flag,
	}, nil
}
