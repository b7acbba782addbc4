// Package openai implements the llm.Generator and llm.Summarizer
// capabilities against any OpenAI-compatible chat-completions API.
//
// Example usage:
//
//	provider, err := openai.NewProvider(
//	    os.Getenv("OPENAI_API_KEY"),
//	    openai.WithModel("gpt-4o-mini"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := provider.Generate(ctx, &llm.Request{
//	    System:      "You are a support agent.",
//	    UserMessage: "Where is my order?",
//	})
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/openai/openai-go"

	"github.com/crewdesk/crewdesk/pkg/llm"
	"github.com/crewdesk/crewdesk/pkg/types"
)

const (
	// DefaultBaseURL is the default OpenAI API base URL.
	DefaultBaseURL = "https://api.openai.com/v1"

	// maxToolRounds bounds the generate → execute-tools → regenerate
	// loop so a misbehaving model cannot spin forever.
	maxToolRounds = 4

	// summaryMaxTokens bounds summarizer output.
	summaryMaxTokens = 300
)

// Provider implements llm.Generator and llm.Summarizer for
// OpenAI-compatible APIs.
type Provider struct {
	httpClient   *http.Client
	apiKey       string
	baseURL      string
	model        string
	summaryModel string // optional override for summarization calls
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithModel sets the model used for generation calls.
func WithModel(model string) ProviderOption {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL sets a custom base URL for OpenAI-compatible APIs
// (Azure OpenAI, local models, gateways).
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) { p.baseURL = baseURL }
}

// WithSummarizationModel sets a separate (typically cheaper) model for
// summarization calls. If empty, summarization uses the main model.
func WithSummarizationModel(model string) ProviderOption {
	return func(p *Provider) { p.summaryModel = model }
}

// NewProvider creates a provider with the given API key. If apiKey is
// empty it falls back to the OPENAI_API_KEY environment variable; if no
// base URL option is given it honors OPENAI_BASE_URL.
func NewProvider(apiKey string, opts ...ProviderOption) (*Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required (provide via parameter or OPENAI_API_KEY environment variable)")
	}

	p := &Provider{
		httpClient: &http.Client{},
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		model:      "gpt-4o-mini",
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.baseURL == DefaultBaseURL {
		if envBaseURL := os.Getenv("OPENAI_BASE_URL"); envBaseURL != "" {
			p.baseURL = envBaseURL
		}
	}

	return p, nil
}

// GetModel returns the model used for generation calls.
func (p *Provider) GetModel() string { return p.model }

// GetBaseURL returns the base URL used for API requests.
func (p *Provider) GetBaseURL() string { return p.baseURL }

// Generate sends the request to the chat-completions API, executes any
// tool calls the model makes, and loops until the model produces a
// final text reply. Every tool invocation is recorded with its
// arguments and observed result. All failures are reported as
// *llm.GenerationError.
func (p *Provider) Generate(ctx context.Context, req *llm.Request) (*llm.Result, error) {
	messages := buildMessages(req)
	var recorded []types.ToolCall

	for round := 0; round < maxToolRounds; round++ {
		reply, err := p.chatCompletion(ctx, p.model, messages, toolDefinitions(req.Tools), req.MaxTokens)
		if err != nil {
			return nil, &llm.GenerationError{Err: err}
		}

		if len(reply.ToolCalls) == 0 {
			return &llm.Result{Content: reply.Content, ToolCalls: recorded}, nil
		}

		// Echo the assistant turn (with its tool calls) back to the
		// API, then follow with one tool-result message per call.
		messages = append(messages, assistantToolCallMessage(reply))

		for _, tc := range reply.ToolCalls {
			args := map[string]interface{}{}
			if tc.Function.Arguments != "" {
				// Malformed arguments are passed to the tool as an
				// empty map rather than failing the whole dispatch.
				_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
			}

			result := p.executeTool(ctx, req.Tools, tc.Function.Name, args)
			recorded = append(recorded, types.ToolCall{
				Name:      tc.Function.Name,
				Arguments: args,
				Result:    result,
			})

			resultJSON, err := json.Marshal(result)
			if err != nil {
				resultJSON = []byte(`{"error":"unserializable tool result"}`)
			}
			messages = append(messages, map[string]interface{}{
				"role":         "tool",
				"tool_call_id": tc.ID,
				"content":      string(resultJSON),
			})
		}
	}

	return nil, &llm.GenerationError{
		Err: fmt.Errorf("model did not produce a final reply within %d tool rounds", maxToolRounds),
	}
}

// Summarize condenses the given turns into a short synopsis that
// preserves concrete facts about orders, invoices, and user requests.
// Failures (including empty output) are reported as
// *llm.SummarizationError.
func (p *Provider) Summarize(ctx context.Context, turns []*types.Message, maxWords int) (string, error) {
	model := p.model
	if p.summaryModel != "" {
		model = p.summaryModel
	}

	messages := []interface{}{openai.UserMessage(summaryPrompt(turns, maxWords))}

	reply, err := p.chatCompletion(ctx, model, messages, nil, summaryMaxTokens)
	if err != nil {
		return "", &llm.SummarizationError{Err: err}
	}

	synopsis := strings.TrimSpace(reply.Content)
	if synopsis == "" {
		return "", &llm.SummarizationError{Err: fmt.Errorf("summarizer returned empty output")}
	}
	return synopsis, nil
}

// summaryPrompt renders the turns as role/content lines under an
// instruction to keep domain entities intact.
func summaryPrompt(turns []*types.Message, maxWords int) string {
	var b strings.Builder
	b.WriteString("Summarize the following conversation history concisely, preserving key facts about orders, invoices, and user requests:\n\n")
	for _, turn := range turns {
		fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
	}
	fmt.Fprintf(&b, "\nProvide a brief summary (max %d words):", maxWords)
	return b.String()
}

// completionReply is the slice of the chat-completions response the
// provider consumes.
type completionReply struct {
	Content   string
	ToolCalls []responseToolCall
}

type responseToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// chatCompletion performs one non-streaming chat-completions round trip.
func (p *Provider) chatCompletion(ctx context.Context, model string, messages []interface{}, tools []map[string]interface{}, maxTokens int) (*completionReply, error) {
	reqBody := map[string]interface{}{
		"model":    model,
		"messages": messages,
	}
	if len(tools) > 0 {
		reqBody["tools"] = tools
	}
	if maxTokens > 0 {
		reqBody["max_tokens"] = maxTokens
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := p.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("API request failed with status %d (failed to read error body: %w)", resp.StatusCode, readErr)
		}
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content   string             `json:"content"`
				ToolCalls []responseToolCall `json:"tool_calls"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("response contained no choices")
	}

	return &completionReply{
		Content:   out.Choices[0].Message.Content,
		ToolCalls: out.Choices[0].Message.ToolCalls,
	}, nil
}

// executeTool runs the named tool. Unknown tool names resolve to an
// explicit error value fed back to the model, never a raised error.
func (p *Provider) executeTool(ctx context.Context, tools []llm.Tool, name string, args map[string]interface{}) interface{} {
	for _, t := range tools {
		if t.Name == name {
			return t.Execute(ctx, args)
		}
	}
	return map[string]string{"error": fmt.Sprintf("unknown tool: %s", name)}
}

// buildMessages converts the request into the wire message sequence:
// system instruction, compacted history, then the new user turn.
func buildMessages(req *llm.Request) []interface{} {
	messages := make([]interface{}, 0, len(req.Messages)+2)

	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case types.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case types.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	messages = append(messages, openai.UserMessage(req.UserMessage))
	return messages
}

// assistantToolCallMessage rebuilds the assistant turn carrying tool
// calls so it can be echoed back on the next round.
func assistantToolCallMessage(reply *completionReply) map[string]interface{} {
	calls := make([]map[string]interface{}, 0, len(reply.ToolCalls))
	for _, tc := range reply.ToolCalls {
		calls = append(calls, map[string]interface{}{
			"id":   tc.ID,
			"type": "function",
			"function": map[string]interface{}{
				"name":      tc.Function.Name,
				"arguments": tc.Function.Arguments,
			},
		})
	}

	msg := map[string]interface{}{
		"role":       "assistant",
		"tool_calls": calls,
	}
	if reply.Content != "" {
		msg["content"] = reply.Content
	}
	return msg
}

// toolDefinitions renders the closed tool set in the function-calling
// wire format.
func toolDefinitions(tools []llm.Tool) []map[string]interface{} {
	if len(tools) == 0 {
		return nil
	}

	defs := make([]map[string]interface{}, 0, len(tools))
	for _, t := range tools {
		params := t.Parameters
		if params == nil {
			params = map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			}
		}
		defs = append(defs, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  params,
			},
		})
	}
	return defs
}
