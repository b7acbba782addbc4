// Package server exposes the support chat service over HTTP: a chat
// endpoint that runs the route-and-dispatch pipeline, conversation
// history endpoints, and a WebSocket variant that streams replies.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/crewdesk/crewdesk/pkg/agent"
	agentcontext "github.com/crewdesk/crewdesk/pkg/agent/context"
	"github.com/crewdesk/crewdesk/pkg/logging"
	"github.com/crewdesk/crewdesk/pkg/store"
	"github.com/crewdesk/crewdesk/pkg/types"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("server")
	if err != nil {
		debugLog.Warnf("Failed to initialize server logger, using stderr fallback: %v", err)
	}
}

const (
	defaultHistoryWindow  = 20
	defaultMaxMessageSize = 2000

	// conversationTitleMax bounds the auto-generated title taken from
	// the first message of a new conversation.
	conversationTitleMax = 100
)

// Handler handles HTTP requests.
type Handler struct {
	conversations  store.ConversationStore
	records        store.RecordStore
	router         *agent.Router
	dispatcher     *agent.Dispatcher
	historyWindow  int
	maxMessageSize int
}

// Option configures a Handler.
type Option func(*Handler)

// WithHistoryWindow sets how many persisted turns are replayed into the
// agent context per request.
func WithHistoryWindow(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.historyWindow = n
		}
	}
}

// WithMaxMessageSize bounds inbound chat message length in characters.
func WithMaxMessageSize(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxMessageSize = n
		}
	}
}

// NewHandler creates a new handler.
func NewHandler(conversations store.ConversationStore, records store.RecordStore, router *agent.Router, dispatcher *agent.Dispatcher, opts ...Option) *Handler {
	h := &Handler{
		conversations:  conversations,
		records:        records,
		router:         router,
		dispatcher:     dispatcher,
		historyWindow:  defaultHistoryWindow,
		maxMessageSize: defaultMaxMessageSize,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.Use(middleware.Recover())

	e.POST("/api/chat", h.Chat)
	e.GET("/ws/chat", h.ChatStream)

	e.GET("/api/users/:user_id/conversations", h.ListConversations)
	e.GET("/api/conversations/:conversation_id/messages", h.GetConversationMessages)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// ChatRequest is one inbound chat turn.
type ChatRequest struct {
	UserID         string `json:"userId"`
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
}

// ChatResponse is the assistant's reply to one chat turn.
type ChatResponse struct {
	ConversationID string           `json:"conversationId"`
	Message        string           `json:"message"`
	AgentCategory  string           `json:"agentCategory"`
	Reasoning      string           `json:"reasoning,omitempty"`
	ToolCalls      []types.ToolCall `json:"toolCalls,omitempty"`
}

// turnError carries an HTTP status with its client-facing message.
type turnError struct {
	status  int
	message string
}

func (e *turnError) Error() string { return e.message }

// Chat runs one turn of the support pipeline.
// POST /api/chat
func (h *Handler) Chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if msg := h.validateRequest(&req); msg != "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
	}

	resp, err := h.runTurn(c.Request().Context(), &req)
	if err != nil {
		var te *turnError
		if errors.As(err, &te) {
			return c.JSON(te.status, map[string]string{"error": te.message})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) validateRequest(req *ChatRequest) string {
	if req.UserID == "" {
		return "userId is required"
	}
	if req.Message == "" {
		return "message is required"
	}
	if len(req.Message) > h.maxMessageSize {
		return "message is too long"
	}
	return ""
}

// runTurn resolves the conversation, replays history, routes the
// message, dispatches it to the matching agent, and persists both
// turns. Agent-level failures never surface here; the dispatcher
// resolves them to an apology response.
func (h *Handler) runTurn(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	user, err := h.records.GetUser(ctx, req.UserID)
	if err != nil {
		debugLog.Errorf("Failed to load user %s: %v", req.UserID, err)
		return nil, &turnError{http.StatusInternalServerError, "failed to load user"}
	}
	if user == nil {
		return nil, &turnError{http.StatusNotFound, "user not found"}
	}

	conv, err := h.resolveConversation(ctx, req)
	if err != nil {
		return nil, err
	}

	history, err := h.loadHistory(ctx, conv.ID)
	if err != nil {
		debugLog.Errorf("Failed to load history for conversation %s: %v", conv.ID, err)
		return nil, &turnError{http.StatusInternalServerError, "failed to load conversation history"}
	}

	if err := h.conversations.AppendMessage(ctx, &store.Message{
		ConversationID: conv.ID,
		Role:           string(types.RoleUser),
		Content:        req.Message,
	}); err != nil {
		debugLog.Errorf("Failed to persist user turn: %v", err)
		return nil, &turnError{http.StatusInternalServerError, "failed to persist message"}
	}

	category := h.router.Route(ctx, req.Message, history)
	response := h.dispatcher.Process(ctx, category, req.Message, req.UserID, history)

	assistant := &store.Message{
		ConversationID: conv.ID,
		Role:           string(types.RoleAssistant),
		Content:        response.Content,
		AgentCategory:  string(response.AgentCategory),
		Reasoning:      response.Reasoning,
	}
	if len(response.ToolCalls) > 0 {
		raw, err := json.Marshal(response.ToolCalls)
		if err != nil {
			debugLog.Warnf("Failed to marshal tool calls for persistence: %v", err)
		} else {
			assistant.ToolCalls = raw
		}
	}
	if err := h.conversations.AppendMessage(ctx, assistant); err != nil {
		debugLog.Errorf("Failed to persist assistant turn: %v", err)
		return nil, &turnError{http.StatusInternalServerError, "failed to persist message"}
	}

	return &ChatResponse{
		ConversationID: conv.ID,
		Message:        response.Content,
		AgentCategory:  string(response.AgentCategory),
		Reasoning:      response.Reasoning,
		ToolCalls:      response.ToolCalls,
	}, nil
}

// resolveConversation returns the requested conversation or creates a
// new one titled with the start of the first message.
func (h *Handler) resolveConversation(ctx context.Context, req *ChatRequest) (*store.Conversation, error) {
	if req.ConversationID != "" {
		conv, err := h.conversations.GetConversation(ctx, req.ConversationID)
		if err != nil {
			debugLog.Errorf("Failed to load conversation %s: %v", req.ConversationID, err)
			return nil, &turnError{http.StatusInternalServerError, "failed to load conversation"}
		}
		if conv == nil {
			return nil, &turnError{http.StatusNotFound, "conversation not found"}
		}
		if conv.UserID != req.UserID {
			return nil, &turnError{http.StatusForbidden, "conversation belongs to another user"}
		}
		return conv, nil
	}

	title := req.Message
	if len(title) > conversationTitleMax {
		title = title[:conversationTitleMax]
	}
	conv, err := h.conversations.CreateConversation(ctx, req.UserID, title)
	if err != nil {
		debugLog.Errorf("Failed to create conversation: %v", err)
		return nil, &turnError{http.StatusInternalServerError, "failed to create conversation"}
	}
	return conv, nil
}

// loadHistory replays the newest persisted turns as agent messages,
// oldest first. Oversized turns are clipped before they re-enter the
// context.
func (h *Handler) loadHistory(ctx context.Context, conversationID string) ([]*types.Message, error) {
	stored, err := h.conversations.GetRecentMessages(ctx, conversationID, h.historyWindow)
	if err != nil {
		return nil, err
	}

	history := make([]*types.Message, 0, len(stored))
	for _, m := range stored {
		msg := &types.Message{
			Role:    types.MessageRole(m.Role),
			Content: agentcontext.TruncateMessage(m.Content, agentcontext.DefaultTruncateLength),
		}
		if m.AgentCategory != "" {
			msg.AgentCategory = types.AgentCategory(m.AgentCategory)
		}
		history = append(history, msg)
	}
	return history, nil
}

// ListConversations returns the user's conversations, newest first.
// GET /api/users/:user_id/conversations
func (h *Handler) ListConversations(c echo.Context) error {
	ctx := c.Request().Context()
	userID := c.Param("user_id")

	user, err := h.records.GetUser(ctx, userID)
	if err != nil {
		debugLog.Errorf("Failed to load user %s: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load user"})
	}
	if user == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "user not found"})
	}

	conversations, err := h.conversations.ListConversations(ctx, userID)
	if err != nil {
		debugLog.Errorf("Failed to list conversations for user %s: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list conversations"})
	}
	if conversations == nil {
		conversations = []store.Conversation{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"conversations": conversations,
	})
}

// GetConversationMessages returns a conversation's recent messages in
// chronological order.
// GET /api/conversations/:conversation_id/messages
func (h *Handler) GetConversationMessages(c echo.Context) error {
	ctx := c.Request().Context()
	conversationID := c.Param("conversation_id")

	conv, err := h.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		debugLog.Errorf("Failed to load conversation %s: %v", conversationID, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load conversation"})
	}
	if conv == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "conversation not found"})
	}

	limit := h.historyWindow
	if raw := c.QueryParam("limit"); raw != "" {
		if n, convErr := strconv.Atoi(raw); convErr == nil && n > 0 {
			limit = n
		}
	}

	messages, err := h.conversations.GetRecentMessages(ctx, conversationID, limit)
	if err != nil {
		debugLog.Errorf("Failed to load messages for conversation %s: %v", conversationID, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load messages"})
	}
	if messages == nil {
		messages = []store.Message{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"conversationId": conversationID,
		"messages":       messages,
	})
}
