package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewdesk/crewdesk/pkg/agent"
	agentcontext "github.com/crewdesk/crewdesk/pkg/agent/context"
	"github.com/crewdesk/crewdesk/pkg/llm"
	"github.com/crewdesk/crewdesk/pkg/store"
	"github.com/crewdesk/crewdesk/pkg/types"
)

// stubGenerator returns canned results without touching a model.
type stubGenerator struct {
	fn func(ctx context.Context, req *llm.Request) (*llm.Result, error)
}

func (s *stubGenerator) Generate(ctx context.Context, req *llm.Request) (*llm.Result, error) {
	return s.fn(ctx, req)
}

type noopSummarizer struct{}

func (noopSummarizer) Summarize(context.Context, []*types.Message, int) (string, error) {
	return "summary", nil
}

type testEnv struct {
	handler *Handler
	store   *store.SQLiteStore
}

func newTestEnv(t *testing.T, gen llm.Generator) *testEnv {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.CreateUser(context.Background(), &store.User{
		ID:        "u1",
		Email:     "u1@example.com",
		Name:      "Test User",
		CreatedAt: time.Now().UTC(),
	}))

	if gen == nil {
		gen = &stubGenerator{fn: func(context.Context, *llm.Request) (*llm.Result, error) {
			return &llm.Result{Content: "Here is what I found."}, nil
		}}
	}

	compactor := agentcontext.NewCompactor(noopSummarizer{}, agentcontext.DefaultConfig())
	dispatcher := agent.NewDispatcher(gen, compactor, s)
	handler := NewHandler(s, s, agent.NewRouter(), dispatcher)

	return &testEnv{handler: handler, store: s}
}

func postChat(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, h.Chat(c))
	return rec
}

func decodeChat(t *testing.T, rec *httptest.ResponseRecorder) *ChatResponse {
	t.Helper()
	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return &resp
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, env.handler.Health(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestChat_NewConversation(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := postChat(t, env.handler, `{"userId":"u1","message":"Where is my order ORD-AB12CD34?"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeChat(t, rec)
	assert.NotEmpty(t, resp.ConversationID)
	assert.Equal(t, "Here is what I found.", resp.Message)
	assert.Equal(t, "order", resp.AgentCategory)
	assert.NotEmpty(t, resp.Reasoning)

	// Both turns were persisted in order.
	messages, err := env.store.GetRecentMessages(context.Background(), resp.ConversationID, 10)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "Where is my order ORD-AB12CD34?", messages[0].Content)
	assert.Equal(t, "assistant", messages[1].Role)
	assert.Equal(t, "order", messages[1].AgentCategory)

	conv, err := env.store.GetConversation(context.Background(), resp.ConversationID)
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, "Where is my order ORD-AB12CD34?", conv.Title)
}

func TestChat_TitleClipped(t *testing.T) {
	env := newTestEnv(t, nil)

	long := strings.Repeat("refund ", 30)
	rec := postChat(t, env.handler, `{"userId":"u1","message":"`+long+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeChat(t, rec)
	conv, err := env.store.GetConversation(context.Background(), resp.ConversationID)
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Len(t, conv.Title, 100)
}

func TestChat_ContinuesConversation(t *testing.T) {
	var lastReq *llm.Request
	gen := &stubGenerator{fn: func(_ context.Context, req *llm.Request) (*llm.Result, error) {
		lastReq = req
		return &llm.Result{Content: "ok"}, nil
	}}
	env := newTestEnv(t, gen)

	first := decodeChat(t, postChat(t, env.handler, `{"userId":"u1","message":"I was charged twice"}`))
	assert.Equal(t, "billing", first.AgentCategory)

	rec := postChat(t, env.handler, `{"userId":"u1","conversationId":"`+first.ConversationID+`","message":"That invoice again please"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	second := decodeChat(t, rec)
	assert.Equal(t, first.ConversationID, second.ConversationID)

	// The second turn saw the first exchange as history.
	require.NotNil(t, lastReq)
	require.Len(t, lastReq.Messages, 2)
	assert.Equal(t, types.RoleUser, lastReq.Messages[0].Role)
	assert.Equal(t, "I was charged twice", lastReq.Messages[0].Content)
	assert.Equal(t, types.RoleAssistant, lastReq.Messages[1].Role)

	messages, err := env.store.GetRecentMessages(context.Background(), first.ConversationID, 10)
	require.NoError(t, err)
	assert.Len(t, messages, 4)
}

func TestChat_Validation(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing user", `{"message":"hi"}`, "userId is required"},
		{"missing message", `{"userId":"u1"}`, "message is required"},
		{"too long", `{"userId":"u1","message":"` + strings.Repeat("a", 2001) + `"}`, "message is too long"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postChat(t, env.handler, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestChat_UnknownUser(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := postChat(t, env.handler, `{"userId":"nope","message":"hello"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "user not found")
}

func TestChat_ConversationOwnership(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.store.CreateUser(context.Background(), &store.User{
		ID: "u2", Email: "u2@example.com", Name: "Other", CreatedAt: time.Now().UTC(),
	}))
	conv, err := env.store.CreateConversation(context.Background(), "u2", "theirs")
	require.NoError(t, err)

	rec := postChat(t, env.handler, `{"userId":"u1","conversationId":"`+conv.ID+`","message":"hello"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = postChat(t, env.handler, `{"userId":"u1","conversationId":"missing","message":"hello"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "conversation not found")
}

func TestChat_GenerationFailureStillReplies(t *testing.T) {
	gen := &stubGenerator{fn: func(context.Context, *llm.Request) (*llm.Result, error) {
		return nil, &llm.GenerationError{Err: context.DeadlineExceeded}
	}}
	env := newTestEnv(t, gen)

	rec := postChat(t, env.handler, `{"userId":"u1","message":"track my shipment"}`)
	require.Equal(t, http.StatusOK, rec.Code, "agent failures must not become transport errors")

	resp := decodeChat(t, rec)
	assert.Equal(t, "order", resp.AgentCategory)
	assert.Contains(t, resp.Message, "apologize")

	// Both turns still persisted.
	messages, err := env.store.GetRecentMessages(context.Background(), resp.ConversationID, 10)
	require.NoError(t, err)
	assert.Len(t, messages, 2)
}

func TestListConversations(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.store.CreateConversation(context.Background(), "u1", "first")
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/users/u1/conversations", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("user_id")
	c.SetParamValues("u1")
	require.NoError(t, env.handler.ListConversations(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Conversations []store.Conversation `json:"conversations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Conversations, 1)
	assert.Equal(t, "first", resp.Conversations[0].Title)

	req = httptest.NewRequest(http.MethodGet, "/api/users/nope/conversations", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("user_id")
	c.SetParamValues("nope")
	require.NoError(t, env.handler.ListConversations(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetConversationMessages(t *testing.T) {
	env := newTestEnv(t, nil)
	conv, err := env.store.CreateConversation(context.Background(), "u1", "history")
	require.NoError(t, err)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i, content := range []string{"one", "two", "three"} {
		require.NoError(t, env.store.AppendMessage(context.Background(), &store.Message{
			ConversationID: conv.ID,
			Role:           "user",
			Content:        content,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}))
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/conversations/"+conv.ID+"/messages?limit=2", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("conversation_id")
	c.SetParamValues(conv.ID)
	require.NoError(t, env.handler.GetConversationMessages(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ConversationID string          `json:"conversationId"`
		Messages       []store.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, conv.ID, resp.ConversationID)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "two", resp.Messages[0].Content)
	assert.Equal(t, "three", resp.Messages[1].Content)

	req = httptest.NewRequest(http.MethodGet, "/api/conversations/nope/messages", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("conversation_id")
	c.SetParamValues("nope")
	require.NoError(t, env.handler.GetConversationMessages(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
