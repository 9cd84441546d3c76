// Package agent runs the tool-use conversation loop: it persists chat
// history, calls the model gateway, executes requested tools, and
// carries results back until the model produces a final answer.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/myhealth-io/myhealthd/internal/llm"
	"github.com/myhealth-io/myhealthd/internal/store"
	"github.com/myhealth-io/myhealthd/internal/tools"
)

const (
	// maxToolIterations bounds the tool-use loop for one message.
	maxToolIterations = 25

	// maxHistoryTurns is the sliding window over stored history sent
	// to the model, avoiding unbounded context growth.
	maxHistoryTurns = 50

	// fallbackText is returned when the model produced no usable text.
	fallbackText = "I'm sorry, I wasn't able to generate a response."

	// titleLimit caps conversation titles derived from the first
	// user message.
	titleLimit = 50
)

// ToolAction names one tool invocation for UI display.
type ToolAction struct {
	Tool  string `json:"tool"`
	Label string `json:"label"`
}

// TraceEntry records one tool execution for debugging. Traces are only
// surfaced outside production.
type TraceEntry struct {
	Step       int            `json:"step"`
	ToolName   string         `json:"tool_name"`
	ToolInput  map[string]any `json:"tool_input"`
	ToolOutput any            `json:"tool_output"`
	ModelText  string         `json:"model_text,omitempty"`
}

// Result is the outcome of one SendMessage call.
type Result struct {
	Message        *store.Message `json:"message"`
	ConversationID string         `json:"conversation_id"`
	ToolActions    []ToolAction   `json:"tool_actions"`
	DebugTrace     []TraceEntry   `json:"debug_trace,omitempty"`
}

// Service orchestrates conversations between the user, the model, and
// the tool registry.
type Service struct {
	store        store.ConversationStore
	gateway      llm.Gateway
	tools        *tools.Registry
	includeTrace bool
	logger       *slog.Logger
	now          func() time.Time
}

// New wires the agent over its dependencies. includeTrace controls
// whether tool execution traces are attached to results.
func New(st store.ConversationStore, gw llm.Gateway, reg *tools.Registry, includeTrace bool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:        st,
		gateway:      gw,
		tools:        reg,
		includeTrace: includeTrace,
		logger:       logger.With("component", "agent"),
		now:          time.Now,
	}
}

// SendMessage appends the user's message to a conversation (creating
// one when conversationID is empty), runs the tool-use loop, and
// persists the assistant's reply.
//
// Returns store.ErrNotFound when the conversation does not exist or
// belongs to another user.
func (s *Service) SendMessage(ctx context.Context, userID, content, conversationID string) (*Result, error) {
	if conversationID != "" {
		if _, err := s.store.GetConversation(ctx, conversationID, userID); err != nil {
			return nil, err
		}
	} else {
		id, err := s.store.CreateConversation(ctx, userID)
		if err != nil {
			return nil, err
		}
		conversationID = id
	}

	if _, err := s.store.AppendMessage(ctx, conversationID, store.RoleUser, content); err != nil {
		return nil, err
	}

	history, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	turns := make([]llm.Turn, 0, len(history))
	for _, msg := range history {
		turns = append(turns, llm.TextTurn(llm.Role(msg.Role), msg.Content))
	}
	turns = clampHistory(turns)

	prompt := systemPrompt(s.now())
	specs := s.tools.Specs()

	var (
		responseText string
		toolActions  []ToolAction
		trace        []TraceEntry
		lastMessage  llm.Turn
	)

	exhausted := true
	for iteration := 0; iteration < maxToolIterations; iteration++ {
		resp, err := s.gateway.Converse(ctx, turns, prompt, specs, 0)
		if err != nil {
			return nil, err
		}
		lastMessage = resp.Message

		if resp.Stop != llm.StopRequestsTools {
			if resp.Stop != llm.StopComplete {
				s.logger.Warn("unexpected stop signal", "stop", resp.Stop)
			}
			responseText = textOrFallback(resp.Message)
			exhausted = false
			break
		}

		turns = append(turns, resp.Message)

		modelText := llm.ExtractText(resp.Message)
		if strings.Contains(strings.ToLower(modelText), "sorry") && len(modelText) < 60 {
			// Placeholder text, not real model output.
			modelText = ""
		}

		var results []llm.ContentBlock
		for _, block := range resp.Message.Content {
			if block.ToolUse == nil {
				continue
			}
			call := block.ToolUse
			output := s.tools.Execute(ctx, call.Name, call.Input, userID)

			toolActions = append(toolActions, ToolAction{
				Tool:  call.Name,
				Label: s.tools.ActionLabel(call.Name),
			})
			trace = append(trace, TraceEntry{
				Step:       iteration + 1,
				ToolName:   call.Name,
				ToolInput:  call.Input,
				ToolOutput: output,
				ModelText:  modelText,
			})

			results = append(results, llm.ContentBlock{
				ToolResult: &llm.ToolResultBlock{
					ToolUseID: call.ID,
					Content:   output,
				},
			})
		}

		turns = append(turns, llm.Turn{Role: llm.RoleUser, Content: results})
	}

	if exhausted {
		responseText = s.summarizeAfterCeiling(ctx, turns, prompt, lastMessage)
	}

	saved, err := s.store.AppendMessage(ctx, conversationID, store.RoleAssistant, responseText)
	if err != nil {
		return nil, err
	}

	// First exchange: derive the title from the opening message.
	if len(history) == 1 {
		if err := s.store.UpdateTitle(ctx, conversationID, deriveTitle(content)); err != nil {
			s.logger.Warn("failed to set conversation title", "error", err)
		}
	}

	result := &Result{
		Message:        saved,
		ConversationID: conversationID,
		ToolActions:    toolActions,
	}
	if s.includeTrace && len(trace) > 0 {
		result.DebugTrace = trace
	}
	return result, nil
}

// summarizeAfterCeiling makes one final no-tools call so the model can
// wrap up. On failure it falls back to the last assistant text.
func (s *Service) summarizeAfterCeiling(ctx context.Context, turns []llm.Turn, prompt string, last llm.Turn) string {
	s.logger.Warn("tool loop hit max iterations", "max", maxToolIterations)

	turns = append(turns, llm.TextTurn(llm.RoleUser,
		"You've reached the maximum number of tool calls. Please provide a complete summary of what you accomplished and what remains."))

	resp, err := s.gateway.Converse(ctx, turns, prompt, nil, 0)
	if err != nil {
		s.logger.Error("failed to get final summary", "error", err)
		return textOrFallback(last)
	}
	return textOrFallback(resp.Message)
}

// ListConversations returns the user's conversations, most recently
// updated first.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]store.Conversation, error) {
	return s.store.ListConversations(ctx, userID)
}

// GetConversation returns one conversation with its messages.
func (s *Service) GetConversation(ctx context.Context, conversationID, userID string) (*store.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	messages, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	conv.Messages = messages
	return conv, nil
}

// DeleteConversation removes a conversation and its messages. Returns
// false when nothing was deleted.
func (s *Service) DeleteConversation(ctx context.Context, conversationID, userID string) (bool, error) {
	return s.store.DeleteConversation(ctx, conversationID, userID)
}

// clampHistory applies the sliding window and keeps the first turn a
// user turn as the Converse API requires.
func clampHistory(turns []llm.Turn) []llm.Turn {
	if len(turns) > maxHistoryTurns {
		turns = turns[len(turns)-maxHistoryTurns:]
		if len(turns) > 0 && turns[0].Role == llm.RoleAssistant {
			turns = turns[1:]
		}
	}
	return turns
}

func textOrFallback(t llm.Turn) string {
	if text := llm.ExtractText(t); text != "" {
		return text
	}
	return fallbackText
}

func deriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) > titleLimit {
		return string(runes[:titleLimit]) + "..."
	}
	return content
}
