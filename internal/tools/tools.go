// Package tools defines the catalog of model-invocable tools and the
// dispatcher that routes tool calls to the backing services. Tool
// failures never escape as errors: every outcome, including an unknown
// tool name, comes back as a result payload the model can read.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/myhealth-io/myhealthd/internal/llm"
	"github.com/myhealth-io/myhealthd/internal/nutrition"
	"github.com/myhealth-io/myhealthd/internal/usda"
	"github.com/myhealth-io/myhealthd/internal/whoop"
	"github.com/myhealth-io/myhealthd/internal/workout"
)

// Handler executes one tool call for a user. A returned error is
// absorbed by the dispatcher and reported to the model as an error
// payload.
type Handler func(ctx context.Context, userID string, input map[string]any) (any, error)

// Tool couples a Converse tool spec with its handler and a short
// label shown to end users when the tool runs.
type Tool struct {
	Name        string
	Description string
	Label       string
	InputSchema map[string]any
	Handler     Handler
}

// Deps are the services the tool handlers call into.
type Deps struct {
	Nutrition *nutrition.Service
	Workout   *workout.Service
	Whoop     *whoop.Service
	USDA      *usda.Client
}

// Registry holds the tool catalog in a stable order.
type Registry struct {
	tools  []Tool
	byName map[string]*Tool
	logger *slog.Logger
}

// NewRegistry builds the full catalog over the given services.
func NewRegistry(deps Deps, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		byName: make(map[string]*Tool),
		logger: logger.With("component", "tools"),
	}

	r.tools = append(r.tools, nutritionTools(deps, r.logger)...)
	r.tools = append(r.tools, workoutTools(deps, r.logger)...)
	r.tools = append(r.tools, whoopTools(deps)...)
	for i := range r.tools {
		r.byName[r.tools[i].Name] = &r.tools[i]
	}

	return r
}

// Specs returns the catalog in Converse tool-spec form, in
// registration order.
func (r *Registry) Specs() []llm.ToolSpec {
	specs := make([]llm.ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		specs = append(specs, llm.ToolSpec{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return specs
}

// Execute dispatches one tool call. The result is always a payload
// for the model; failures, including handler panics, are folded into
// an "error" field.
func (r *Registry) Execute(ctx context.Context, name string, input map[string]any, userID string) (result any) {
	tool, ok := r.byName[name]
	if !ok {
		return map[string]any{"error": fmt.Sprintf("Unknown tool: %s", name)}
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool execution panicked", "tool", name, "panic", rec)
			result = map[string]any{"error": fmt.Sprintf("Tool '%s' failed: %v", name, rec)}
		}
	}()

	r.logger.Info("executing tool", "tool", name, "user_id", userID)
	out, err := tool.Handler(ctx, userID, input)
	if err != nil {
		r.logger.Error("tool execution error", "tool", name, "error", err)
		return map[string]any{"error": fmt.Sprintf("Tool '%s' failed: %s", name, err)}
	}
	return out
}

// ActionLabel returns the human-readable label for a tool, falling
// back to the tool name.
func (r *Registry) ActionLabel(name string) string {
	if tool, ok := r.byName[name]; ok && tool.Label != "" {
		return tool.Label
	}
	return name
}

// --- input helpers ---
//
// Tool inputs arrive as generic JSON maps; numbers are float64.

func stringArg(input map[string]any, key string) string {
	if v, ok := input[key].(string); ok {
		return v
	}
	return ""
}

func floatArg(input map[string]any, key string, def float64) float64 {
	switch v := input[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

func intArg(input map[string]any, key string, def int) int {
	switch v := input[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

func floatPtrArg(input map[string]any, key string) *float64 {
	if v, ok := input[key].(float64); ok {
		return &v
	}
	return nil
}

func intPtrArg(input map[string]any, key string) *int {
	if v, ok := input[key].(float64); ok {
		n := int(v)
		return &n
	}
	return nil
}

// dateArg parses a YYYY-MM-DD input field, defaulting to today when
// absent or malformed.
func dateArg(input map[string]any, key string, logger *slog.Logger) time.Time {
	s := stringArg(input, key)
	if s == "" {
		return time.Now().UTC()
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		logger.Warn("invalid date in tool input, using today", "value", s)
		return time.Now().UTC()
	}
	return t
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func objectSchema(properties map[string]any, required ...string) map[string]any {
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}
