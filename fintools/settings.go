package fintools

import (
	"context"

	"github.com/sudheer1135/fin-agent/config"
	"github.com/sudheer1135/fin-agent/tool"
)

// ReconfigureToolName is the tool the model calls to change provider
// settings. The agent loop watches for it and rebuilds its transport after
// the call completes.
const ReconfigureToolName = "set_config"

// ProfileTool lets the model record investor preferences. Each call merges
// the supplied fields into the saved profile and invokes onUpdate with the
// result.
func ProfileTool(onUpdate func(config.Profile) error) tool.Tool {
	schema := objectSchema(map[string]any{
		"risk_tolerance": map[string]any{
			"type":        "string",
			"description": "Investor risk tolerance, e.g. low, moderate, high",
		},
		"horizon": map[string]any{
			"type":        "string",
			"description": "Investment horizon, e.g. 6 months, 5 years",
		},
		"watchlist": map[string]any{
			"type":        "array",
			"description": "Stock codes the investor follows",
			"items":       map[string]any{"type": "string"},
		},
		"notes": map[string]any{
			"type":        "string",
			"description": "Free-form preferences worth remembering",
		},
	})

	return tool.NewFunctionTool(
		"update_profile",
		"Save investor preferences: risk tolerance, horizon, watchlist, notes. Only pass fields that changed.",
		schema,
		func(_ context.Context, args map[string]any) (any, error) {
			update := config.Profile{
				RiskTolerance: strArg(args, "risk_tolerance"),
				Horizon:       strArg(args, "horizon"),
				Notes:         strArg(args, "notes"),
			}

			if list, ok := args["watchlist"].([]any); ok {
				for _, v := range list {
					if s, ok := v.(string); ok {
						update.Watchlist = append(update.Watchlist, s)
					}
				}
			}

			if err := onUpdate(update); err != nil {
				return nil, err
			}

			return "profile updated", nil
		},
	)
}

// ConfigUpdate carries the settings a reconfigure call may change. Empty
// fields are left as they are.
type ConfigUpdate struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// ConfigTool lets the model switch provider, model, or credentials at
// runtime. apply persists the update and the loop rebuilds its transport.
func ConfigTool(apply func(ConfigUpdate) error) tool.Tool {
	schema := objectSchema(map[string]any{
		"provider": map[string]any{
			"type":        "string",
			"description": "Model provider: deepseek, openai, or anthropic",
		},
		"model": map[string]any{
			"type":        "string",
			"description": "Model name, e.g. deepseek-chat or deepseek-reasoner",
		},
		"api_key": map[string]any{
			"type":        "string",
			"description": "API key for the provider",
		},
		"base_url": map[string]any{
			"type":        "string",
			"description": "API base URL override",
		},
	})

	return tool.NewFunctionTool(
		ReconfigureToolName,
		"Change the assistant's model settings. Only pass fields that changed; takes effect on the next response.",
		schema,
		func(_ context.Context, args map[string]any) (any, error) {
			update := ConfigUpdate{
				Provider: strArg(args, "provider"),
				Model:    strArg(args, "model"),
				APIKey:   strArg(args, "api_key"),
				BaseURL:  strArg(args, "base_url"),
			}

			if err := apply(update); err != nil {
				return nil, err
			}

			return "configuration updated", nil
		},
	)
}
