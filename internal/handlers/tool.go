package handlers

import (
	"context"

	"github.com/vidinsight-tech/queryon/internal/orchestrator"
)

// ToolHandler is a placeholder for future function-calling support.
// Grounded on tool_handler.py's ToolRegistry/ToolHandler pair — no tool
// actually executes yet, it only reports what would be available.
type ToolHandler struct {
	registry *ToolRegistry
}

// ToolDefinition describes one callable tool's schema.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolRegistry holds the set of tools a deployment has declared, even
// though none can be invoked yet.
type ToolRegistry struct {
	tools map[string]ToolDefinition
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]ToolDefinition)}
}

func (r *ToolRegistry) Register(t ToolDefinition) {
	r.tools[t.Name] = t
}

func (r *ToolRegistry) Names() []string {
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	return out
}

// NewToolHandler builds a ToolHandler. A nil registry is treated as empty.
func NewToolHandler(registry *ToolRegistry) *ToolHandler {
	if registry == nil {
		registry = NewToolRegistry()
	}
	return &ToolHandler{registry: registry}
}

func (h *ToolHandler) Handle(ctx context.Context, in orchestrator.HandlerInput) (orchestrator.HandlerOutput, error) {
	answer := "Tool desteği henüz aktif değil."
	if names := h.registry.Names(); len(names) > 0 {
		answer += " Mevcut araçlar:"
		for i, name := range names {
			if i > 0 {
				answer += ","
			}
			answer += " " + name
		}
	}
	return orchestrator.HandlerOutput{
		Answer: answer,
	}, nil
}
