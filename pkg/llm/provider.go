// Package llm provides the abstractions over the text-generation
// service that the support agents depend on: a Generator capability for
// producing agent replies (optionally with tool use), a Summarizer
// capability for condensing conversation history, and the typed failure
// values both report.
//
// The package deliberately exposes capabilities as narrow interfaces so
// the routing, compaction, and dispatch layers can be tested against
// function-field stubs without any network access.
package llm

import (
	"context"

	"github.com/crewdesk/crewdesk/pkg/types"
)

// Tool is one named, parameterized lookup operation exposed to the
// generator during a call. The set of tools for a category is closed
// and enumerated at construction time; handlers are read-only and must
// resolve a missing record to an explicit not-found value rather than
// an error.
type Tool struct {
	// Name is the unique identifier the model uses to invoke the tool.
	Name string

	// Description tells the model what the tool does.
	Description string

	// Parameters is the JSON schema for the tool's arguments.
	Parameters map[string]interface{}

	// Execute runs the tool. The returned value is serialized back to
	// the model verbatim. Execute never propagates a lookup miss as an
	// error; it returns a not-found marker value instead.
	Execute func(ctx context.Context, args map[string]interface{}) interface{}
}

// Request carries everything one generation call needs.
type Request struct {
	// System is the category-specific instruction.
	System string

	// Messages is the compacted history, oldest first.
	Messages []*types.Message

	// UserMessage is the new user turn, appended after Messages.
	UserMessage string

	// Tools is the closed tool set for this call; nil for categories
	// without tools.
	Tools []Tool

	// MaxTokens bounds the generated output. Zero means provider default.
	MaxTokens int
}

// Result is the normalized outcome of a successful generation call.
type Result struct {
	// Content is the generated reply text.
	Content string

	// ToolCalls records every tool invocation made during the call, in
	// invocation order, with the arguments and results observed.
	ToolCalls []types.ToolCall
}

// Generator produces agent replies. Implementations report failures as
// *GenerationError; callers are expected to absorb them into fallback
// responses rather than propagate them.
type Generator interface {
	Generate(ctx context.Context, req *Request) (*Result, error)
}

// Summarizer condenses a batch of conversation turns into a short
// synopsis. maxWords is a soft target for the synopsis length.
// Implementations report failures as *SummarizationError; the context
// compactor absorbs them and degrades to recent-window context.
type Summarizer interface {
	Summarize(ctx context.Context, turns []*types.Message, maxWords int) (string, error)
}
