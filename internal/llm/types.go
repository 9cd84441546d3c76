// Package llm wraps the remote converse-style language model API.
package llm

import "context"

// Role tags a conversation turn.
type Role string

// Turn roles. The converse contract only knows user and assistant;
// system prompts travel out-of-band.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentBlock is one unit of turn content: plain text, a tool
// invocation request emitted by the model, or a tool result fed back.
// Exactly one field is set.
type ContentBlock struct {
	Text       string           `json:"text,omitempty"`
	ToolUse    *ToolUseBlock    `json:"tool_use,omitempty"`
	ToolResult *ToolResultBlock `json:"tool_result,omitempty"`
}

// ToolUseBlock is a structured tool invocation request from the model.
type ToolUseBlock struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// ToolResultBlock carries a tool's JSON result back to the model,
// correlated to the originating invocation by ToolUseID.
type ToolResultBlock struct {
	ToolUseID string `json:"tool_use_id"`
	Content   any    `json:"content"` // JSON-serializable value
}

// Turn is a role-tagged content-block list exchanged with the model.
// Turns are transient; only distilled text is ever persisted.
type Turn struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// TextTurn builds a single-text-block turn.
func TextTurn(role Role, text string) Turn {
	return Turn{Role: role, Content: []ContentBlock{{Text: text}}}
}

// StopSignal is the terminal-state indicator for one converse call.
type StopSignal int

const (
	// StopComplete means the model produced a final answer.
	StopComplete StopSignal = iota

	// StopRequestsTools means the model emitted tool invocation blocks
	// that must be satisfied before it can continue.
	StopRequestsTools

	// StopOther covers every other stop reason (e.g. length cutoff).
	// Treated as terminal; whatever text is present is still usable.
	StopOther
)

// String returns the signal name for logging.
func (s StopSignal) String() string {
	switch s {
	case StopComplete:
		return "complete"
	case StopRequestsTools:
		return "requests_tools"
	default:
		return "other"
	}
}

// ConverseResponse is the unified result of one converse call.
type ConverseResponse struct {
	Message Turn
	Stop    StopSignal
}

// ToolSpec describes one tool in the catalog handed to the model.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]any // JSON Schema object
}

// Gateway is the protocol boundary to the remote model. Implementations
// perform no domain logic.
type Gateway interface {
	// Converse sends the turn list with a system prompt and optional tool
	// catalog, and returns the model's next turn plus a stop signal.
	// A nil or empty tools slice omits the tool catalog entirely,
	// forcing a textual answer.
	Converse(ctx context.Context, turns []Turn, systemPrompt string, tools []ToolSpec, maxTokens int32) (*ConverseResponse, error)
}

// ExtractText concatenates the text blocks of a turn, joined by newlines.
// Returns "" when the turn carries no text.
func ExtractText(t Turn) string {
	var out string
	for _, block := range t.Content {
		if block.Text == "" {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += block.Text
	}
	return out
}
