package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agentcontext "github.com/crewdesk/crewdesk/pkg/agent/context"
	"github.com/crewdesk/crewdesk/pkg/llm"
	"github.com/crewdesk/crewdesk/pkg/store"
	"github.com/crewdesk/crewdesk/pkg/types"
)

// nilRecordStore satisfies store.RecordStore for dispatch tests that
// never execute a tool.
type nilRecordStore struct{}

func (nilRecordStore) GetUser(context.Context, string) (*store.User, error) { return nil, nil }
func (nilRecordStore) GetOrdersByUser(context.Context, string, int) ([]store.Order, error) {
	return nil, nil
}
func (nilRecordStore) GetOrderByNumber(context.Context, string) (*store.Order, error) {
	return nil, nil
}
func (nilRecordStore) GetInvoicesByUser(context.Context, string, int) ([]store.Invoice, error) {
	return nil, nil
}
func (nilRecordStore) GetInvoiceByNumber(context.Context, string) (*store.Invoice, error) {
	return nil, nil
}
func (nilRecordStore) GetInvoiceForOrder(context.Context, string) (*store.Invoice, error) {
	return nil, nil
}

func newTestDispatcher(generator llm.Generator) *Dispatcher {
	compactor := agentcontext.NewCompactor(failingTestSummarizer{}, agentcontext.DefaultConfig())
	return NewDispatcher(generator, compactor, nilRecordStore{})
}

// failingTestSummarizer guards against unexpected compaction in tests
// that stay below the trigger.
type failingTestSummarizer struct{}

func (failingTestSummarizer) Summarize(context.Context, []*types.Message, int) (string, error) {
	return "", &llm.SummarizationError{Err: errors.New("summarizer must not run in this test")}
}

func TestDispatcher_SuccessNormalizesResponse(t *testing.T) {
	generator := &stubGenerator{fn: func(*llm.Request) (*llm.Result, error) {
		return &llm.Result{
			Content: "Your order ORD-123 shipped yesterday.",
			ToolCalls: []types.ToolCall{
				{Name: "getOrderByNumber", Arguments: map[string]interface{}{"orderNumber": "ORD-123"}, Result: "ok"},
				{Name: "trackOrder", Arguments: map[string]interface{}{"orderNumber": "ORD-123"}, Result: "ok"},
			},
		}, nil
	}}
	d := newTestDispatcher(generator)

	resp := d.Process(context.Background(), types.CategoryOrder, "Where is ORD-123?", "u1", nil)

	require.NotNil(t, resp)
	assert.Equal(t, "Your order ORD-123 shipped yesterday.", resp.Content)
	assert.Equal(t, types.CategoryOrder, resp.AgentCategory)
	assert.Equal(t, "Analyzed query for order-related information. Used 2 tools.", resp.Reasoning)
	assert.Len(t, resp.ToolCalls, 2)
}

func TestDispatcher_RequestShape(t *testing.T) {
	generator := &stubGenerator{fn: func(*llm.Request) (*llm.Result, error) {
		return &llm.Result{Content: "ok"}, nil
	}}
	d := newTestDispatcher(generator)

	history := []*types.Message{
		types.NewUserMessage("hi"),
		types.NewAssistantMessage("hello, how can I help?"),
	}
	d.Process(context.Background(), types.CategoryOrder, "where is my package", "u1", history)

	req := generator.lastReq
	require.NotNil(t, req)
	assert.Contains(t, req.System, "order tracking and shipping specialist")
	assert.Equal(t, "where is my package", req.UserMessage)
	assert.Equal(t, 1000, req.MaxTokens)

	// Below the trigger, history passes through untouched.
	require.Len(t, req.Messages, 2)
	assert.Same(t, history[0], req.Messages[0])
	assert.Same(t, history[1], req.Messages[1])

	// The order toolset is attached, bound to the user.
	toolNames := make([]string, 0, len(req.Tools))
	for _, tool := range req.Tools {
		toolNames = append(toolNames, tool.Name)
	}
	assert.ElementsMatch(t, []string{"getOrdersByUser", "getOrderByNumber", "trackOrder"}, toolNames)
}

func TestDispatcher_GeneralHasNoTools(t *testing.T) {
	generator := &stubGenerator{fn: func(*llm.Request) (*llm.Result, error) {
		return &llm.Result{Content: "happy to help"}, nil
	}}
	d := newTestDispatcher(generator)

	resp := d.Process(context.Background(), types.CategoryGeneral, "what do you sell?", "u1", nil)

	assert.Empty(t, generator.lastReq.Tools)
	assert.Equal(t, 800, generator.lastReq.MaxTokens)
	assert.Equal(t, "Processed general customer inquiry with contextual understanding.", resp.Reasoning)
}

func TestDispatcher_BillingToolset(t *testing.T) {
	generator := &stubGenerator{fn: func(*llm.Request) (*llm.Result, error) {
		return &llm.Result{Content: "ok"}, nil
	}}
	d := newTestDispatcher(generator)

	d.Process(context.Background(), types.CategoryBilling, "show my invoices", "u1", nil)

	toolNames := make([]string, 0, len(generator.lastReq.Tools))
	for _, tool := range generator.lastReq.Tools {
		toolNames = append(toolNames, tool.Name)
	}
	assert.ElementsMatch(t,
		[]string{"getInvoicesByUser", "getInvoiceByNumber", "getOrderInvoice", "checkPaymentStatus"},
		toolNames)
}

func TestDispatcher_GenerationFailureYieldsApology(t *testing.T) {
	tests := []struct {
		category types.AgentCategory
		apology  string
	}{
		{types.CategoryOrder, "I apologize, but I'm having trouble accessing order information right now. Please try again in a moment."},
		{types.CategoryBilling, "I apologize, but I'm having trouble accessing billing information right now. Please try again in a moment."},
		{types.CategoryGeneral, "I'm here to help! Could you please rephrase your question or provide more details?"},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			generator := &stubGenerator{fn: func(*llm.Request) (*llm.Result, error) {
				return nil, &llm.GenerationError{Err: errors.New("upstream unavailable")}
			}}
			d := newTestDispatcher(generator)

			resp := d.Process(context.Background(), tt.category, "help", "u1", nil)

			require.NotNil(t, resp)
			assert.Equal(t, tt.apology, resp.Content)
			assert.Equal(t, tt.category, resp.AgentCategory)
			assert.True(t, strings.HasPrefix(resp.Reasoning, "Error:"))
			assert.Contains(t, resp.Reasoning, "upstream unavailable")
			assert.Empty(t, resp.ToolCalls)
		})
	}
}

func TestDispatcher_UnknownCategoryFallsBackToGeneral(t *testing.T) {
	generator := &stubGenerator{fn: func(*llm.Request) (*llm.Result, error) {
		return &llm.Result{Content: "hello"}, nil
	}}
	d := newTestDispatcher(generator)

	for _, category := range []types.AgentCategory{types.CategoryRouter, types.AgentCategory("bogus"), ""} {
		resp := d.Process(context.Background(), category, "hi", "u1", nil)
		assert.Equal(t, types.CategoryGeneral, resp.AgentCategory)
	}
}

func TestDispatcher_ToolCallAccounting(t *testing.T) {
	reported := []types.ToolCall{
		{Name: "getInvoicesByUser", Arguments: map[string]interface{}{}, Result: []string{"INV-1"}},
		{Name: "getInvoiceByNumber", Arguments: map[string]interface{}{"invoiceNumber": "INV-1"}, Result: "found"},
		{Name: "checkPaymentStatus", Arguments: map[string]interface{}{"invoiceNumber": "INV-1"}, Result: "paid"},
	}
	generator := &stubGenerator{fn: func(*llm.Request) (*llm.Result, error) {
		return &llm.Result{Content: "all paid", ToolCalls: reported}, nil
	}}
	d := newTestDispatcher(generator)

	resp := d.Process(context.Background(), types.CategoryBilling, "am I paid up?", "u1", nil)

	require.Len(t, resp.ToolCalls, len(reported))
	for i, tc := range reported {
		assert.Equal(t, tc.Name, resp.ToolCalls[i].Name)
		assert.Equal(t, tc.Arguments, resp.ToolCalls[i].Arguments)
		assert.Equal(t, tc.Result, resp.ToolCalls[i].Result)
	}
	assert.Equal(t, "Processed billing query. Used 3 tools to fetch invoice/payment data.", resp.Reasoning)
}
