// Package types defines the core data model shared by the routing,
// context management, and dispatch layers: conversation turns, tool
// invocations, agent categories, and the response shape handed back to
// the transport layer for persistence.
package types

// MessageRole identifies who authored a conversation turn.
type MessageRole string

const (
	// RoleUser marks a turn authored by the customer.
	RoleUser MessageRole = "user"

	// RoleAssistant marks a turn produced by one of the specialized agents.
	RoleAssistant MessageRole = "assistant"

	// RoleSystem marks an instruction or synthetic turn (e.g. a context summary).
	RoleSystem MessageRole = "system"
)

// AgentCategory is the closed set of specialized responders.
type AgentCategory string

const (
	// CategoryRouter tags the routing decision itself. It is never a
	// dispatch destination; Route never returns it.
	CategoryRouter AgentCategory = "router"

	// CategoryOrder handles order tracking, shipping, and delivery queries.
	CategoryOrder AgentCategory = "order"

	// CategoryBilling handles invoices, payments, and refund queries.
	CategoryBilling AgentCategory = "billing"

	// CategoryGeneral handles everything else.
	CategoryGeneral AgentCategory = "general"
)

// ToolCall records one lookup a specialized agent performed while
// composing its answer: the tool name, the arguments it was invoked
// with, and whatever the tool returned (including explicit not-found
// markers). A ToolCall belongs to the message that produced it and is
// never mutated after creation.
type ToolCall struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
	Result    interface{}            `json:"result,omitempty"`
}

// Message is one exchange unit in a conversation. Messages are
// immutable once created; a conversation's message sequence is
// append-only and never reordered.
type Message struct {
	// Role identifies the author of this turn.
	Role MessageRole `json:"role"`

	// Content is the turn text. Unbounded at creation; callers may
	// bound it with context.TruncateMessage before storing it.
	Content string `json:"content"`

	// AgentCategory is set only on assistant turns, identifying which
	// specialized agent produced the turn.
	AgentCategory AgentCategory `json:"agentCategory,omitempty"`

	// Reasoning is an optional free-text rationale, assistant turns only.
	Reasoning string `json:"reasoning,omitempty"`

	// ToolCalls lists the lookups made while producing this turn, in
	// invocation order.
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`
}

// NewUserMessage creates a user turn with the given content.
func NewUserMessage(content string) *Message {
	return &Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant turn with the given content.
func NewAssistantMessage(content string) *Message {
	return &Message{Role: RoleAssistant, Content: content}
}

// NewSystemMessage creates a system turn with the given content.
func NewSystemMessage(content string) *Message {
	return &Message{Role: RoleSystem, Content: content}
}

// WithCategory sets the agent category and returns the message for chaining.
func (m *Message) WithCategory(category AgentCategory) *Message {
	m.AgentCategory = category
	return m
}

// WithReasoning sets the reasoning text and returns the message for chaining.
func (m *Message) WithReasoning(reasoning string) *Message {
	m.Reasoning = reasoning
	return m
}

// ConversationContext is the transient working window handed to an
// agent for one request. It is constructed fresh per request from
// stored history and never persisted as-is.
type ConversationContext struct {
	// UserID identifies the customer on whose behalf the request runs.
	UserID string

	// ConversationID identifies the conversation the history came from.
	ConversationID string

	// Messages is the prior history, oldest first.
	Messages []*Message

	// Summary is an optional previously persisted summary of turns
	// older than Messages.
	Summary string
}

// AgentResponse is the normalized output of one dispatch. It is created
// once per request and handed back to the caller for persistence; the
// core does not retain it.
type AgentResponse struct {
	Content       string        `json:"content"`
	AgentCategory AgentCategory `json:"agentCategory"`
	Reasoning     string        `json:"reasoning,omitempty"`
	ToolCalls     []ToolCall    `json:"toolCalls,omitempty"`
}
