package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

func textProperty(description string) map[string]any {
	return map[string]any{
		"type":        "string",
		"description": description,
	}
}

func emptySchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func dreamTextSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": textProperty("The dream, in the dreamer's own words"),
		},
		"required": []string{"text"},
	}
}

// buildToolCatalog returns all available MCP tools
func buildToolCatalog() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "ping",
			Description: "Check the server is reachable and report the resolved profile",
			InputSchema: emptySchema(),
		},
		// Journal
		{
			Name:        "save_dream",
			Description: "Save a dream to the journal (newest first)",
			InputSchema: dreamTextSchema(),
		},
		{
			Name:        "list_dreams",
			Description: "List saved dreams, newest first, optionally limited to the last week or month",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"range": map[string]any{
						"type":        "string",
						"description": "How far back to list",
						"enum":        []string{"all", "week", "month"},
					},
				},
			},
		},
		{
			Name:        "delete_dream",
			Description: "Delete one dream by id; deleting a missing id is not an error",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": textProperty("Dream entry id"),
				},
				"required": []string{"id"},
			},
		},
		{
			Name:        "clear_dreams",
			Description: "Remove every dream from the journal",
			InputSchema: emptySchema(),
		},
		{
			Name:        "journal_stats",
			Description: "Count, current streak of consecutive days and dreams saved in the last 7 days",
			InputSchema: emptySchema(),
		},
		{
			Name:        "share_latest",
			Description: "Format the most recent dream as shareable text",
			InputSchema: emptySchema(),
		},
		// Metered generation
		{
			Name:        "interpret_dream",
			Description: "Interpret a dream through scientific, psychological and spiritual lenses (uses one interpretation from today's quota)",
			InputSchema: dreamTextSchema(),
		},
		{
			Name:        "generate_art",
			Description: "Render artwork for a dream as an image URL or data URL (uses one art generation from today's quota)",
			InputSchema: dreamTextSchema(),
		},
		{
			Name:        "dream",
			Description: "Interpret a dream and render its artwork together; each capability is checked against quota separately",
			InputSchema: dreamTextSchema(),
		},
		{
			Name:        "interpret_and_save",
			Description: "Interpret a dream and save it to the journal in one step",
			InputSchema: dreamTextSchema(),
		},
		// Plans and usage
		{
			Name:        "get_usage",
			Description: "Show the current plan, today's usage per capability, unlocked lenses and features",
			InputSchema: emptySchema(),
		},
		{
			Name:        "set_plan",
			Description: "Switch the profile's plan tier",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"plan": map[string]any{
						"type":        "string",
						"description": "Plan tier",
						"enum":        []string{"free", "lite", "standard", "pro"},
					},
				},
				"required": []string{"plan"},
			},
		},
		{
			Name:        "check_entitlement",
			Description: "Check whether a capability, lens or feature is unlocked right now",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"key": textProperty("Capability (interpret, art), lens (e.g. archetypal) or feature (e.g. export)"),
				},
				"required": []string{"key"},
			},
		},
		// Data portability
		{
			Name:        "export_journal",
			Description: "Export dreams, profile and preferences as a JSON document",
			InputSchema: emptySchema(),
		},
		{
			Name:        "import_journal",
			Description: "Replace the journal with a previously exported document",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"document": map[string]any{
						"description": "Exported document, as an object or as the file contents in a string",
						"type":        []string{"object", "string"},
					},
				},
				"required": []string{"document"},
			},
		},
		{
			Name:        "delete_local_data",
			Description: "Delete the journal and today's usage counters for this profile",
			InputSchema: emptySchema(),
		},
	}
}

// registerTools exposes every catalog entry on the SDK server, dispatching
// through handler.
func registerTools(server *sdkmcp.Server, handler *Handler) {
	for _, def := range buildToolCatalog() {
		name := def.Name
		server.AddTool(&sdkmcp.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		}, func(ctx context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
			var args json.RawMessage
			if req != nil && req.Params != nil {
				args = req.Params.Arguments
			}
			result, err := handler.Handle(ctx, getProfileID(ctx), getSessionID(ctx), name, args)
			if err != nil {
				return toolError(err), nil
			}
			return toolResult(result)
		})
	}
}

func toolResult(v any) (*sdkmcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}, nil
}

func toolError(err error) *sdkmcp.CallToolResult {
	text := err.Error()
	if apiErr, ok := err.(*APIError); ok {
		if data, mErr := json.Marshal(apiErr); mErr == nil {
			text = string(data)
		}
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: text}},
		IsError: true,
	}
}
