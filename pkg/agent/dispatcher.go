package agent

import (
	stdcontext "context"
	"fmt"

	agentcontext "github.com/crewdesk/crewdesk/pkg/agent/context"
	"github.com/crewdesk/crewdesk/pkg/agent/tools"
	"github.com/crewdesk/crewdesk/pkg/llm"
	"github.com/crewdesk/crewdesk/pkg/store"
	"github.com/crewdesk/crewdesk/pkg/types"
)

// profile is the per-category behavior variant: fixed instruction,
// output bound, toolset constructor, and the fallback response used
// when generation fails. Behavior is selected via the profiles lookup
// table, never via subtyping.
type profile struct {
	systemPrompt string
	maxTokens    int
	toolset      func(records store.RecordStore, userID string) []llm.Tool
	apology      string
	reasoning    func(toolCount int) string
}

var profiles = map[types.AgentCategory]profile{
	types.CategoryOrder: {
		systemPrompt: orderSystemPrompt,
		maxTokens:    1000,
		toolset:      tools.OrderToolset,
		apology:      "I apologize, but I'm having trouble accessing order information right now. Please try again in a moment.",
		reasoning: func(toolCount int) string {
			return fmt.Sprintf("Analyzed query for order-related information. Used %d tools.", toolCount)
		},
	},
	types.CategoryBilling: {
		systemPrompt: billingSystemPrompt,
		maxTokens:    1000,
		toolset:      tools.BillingToolset,
		apology:      "I apologize, but I'm having trouble accessing billing information right now. Please try again in a moment.",
		reasoning: func(toolCount int) string {
			return fmt.Sprintf("Processed billing query. Used %d tools to fetch invoice/payment data.", toolCount)
		},
	},
	types.CategoryGeneral: {
		systemPrompt: generalSystemPrompt,
		maxTokens:    800,
		apology:      "I'm here to help! Could you please rephrase your question or provide more details?",
		reasoning: func(int) string {
			return "Processed general customer inquiry with contextual understanding."
		},
	},
}

// Dispatcher runs one specialized agent call per request: it bounds the
// conversation history via the compactor, invokes the text generator
// with the category's instruction and toolset, and normalizes the
// outcome into an AgentResponse. Process never returns an error; a
// generation failure becomes the category's apologetic fallback
// response with the error recorded in the reasoning field.
type Dispatcher struct {
	generator llm.Generator
	compactor *agentcontext.Compactor
	records   store.RecordStore
}

// NewDispatcher creates a dispatcher over the given collaborators.
func NewDispatcher(generator llm.Generator, compactor *agentcontext.Compactor, records store.RecordStore) *Dispatcher {
	return &Dispatcher{
		generator: generator,
		compactor: compactor,
		records:   records,
	}
}

// Process handles one user message with the agent for the given
// category. Unknown categories (including the reserved router tag)
// dispatch to the general agent. The returned response is always
// well-formed.
func (d *Dispatcher) Process(ctx stdcontext.Context, category types.AgentCategory, userMessage, userID string, history []*types.Message) *types.AgentResponse {
	prof, ok := profiles[category]
	if !ok {
		category = types.CategoryGeneral
		prof = profiles[types.CategoryGeneral]
	}

	messages := d.compactor.GetContext(ctx, types.ConversationContext{
		UserID:   userID,
		Messages: history,
	})

	var toolset []llm.Tool
	if prof.toolset != nil {
		toolset = prof.toolset(d.records, userID)
	}

	result, err := d.generator.Generate(ctx, &llm.Request{
		System:      prof.systemPrompt,
		Messages:    messages,
		UserMessage: userMessage,
		Tools:       toolset,
		MaxTokens:   prof.maxTokens,
	})
	if err != nil {
		debugLog.Errorf("Generation failed for category %s: %v", category, err)
		return &types.AgentResponse{
			Content:       prof.apology,
			AgentCategory: category,
			Reasoning:     fmt.Sprintf("Error: %v", err),
		}
	}

	return &types.AgentResponse{
		Content:       result.Content,
		AgentCategory: category,
		Reasoning:     prof.reasoning(len(result.ToolCalls)),
		ToolCalls:     result.ToolCalls,
	}
}
