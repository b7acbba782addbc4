package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/crewdesk/crewdesk/pkg/types"
)

const (
	// streamChunkSize is how many runes of the reply go out per frame.
	streamChunkSize = 48

	wsWriteTimeout = 10 * time.Second

	// wsReadLimit leaves headroom over the chat message bound for the
	// JSON envelope.
	wsReadLimit = 16 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamEvent is one frame of a streamed chat reply. A reply is zero or
// more "chunk" frames followed by a single "done" frame carrying the
// turn metadata; failures produce an "error" frame instead.
type StreamEvent struct {
	Type           string           `json:"type"`
	Content        string           `json:"content,omitempty"`
	ConversationID string           `json:"conversationId,omitempty"`
	AgentCategory  string           `json:"agentCategory,omitempty"`
	Reasoning      string           `json:"reasoning,omitempty"`
	ToolCalls      []types.ToolCall `json:"toolCalls,omitempty"`
	Error          string           `json:"error,omitempty"`
}

// ChatStream serves the chat pipeline over a WebSocket, streaming each
// reply in chunks. The connection handles any number of turns.
// GET /ws/chat
func (h *Handler) ChatStream(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		debugLog.Errorf("Failed to upgrade WebSocket: %v", err)
		return err
	}
	defer ws.Close()

	ws.SetReadLimit(wsReadLimit)

	for {
		var req ChatRequest
		if err := ws.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				debugLog.Warnf("WebSocket read error: %v", err)
			}
			return nil
		}

		if msg := h.validateRequest(&req); msg != "" {
			if err := h.writeEvent(ws, &StreamEvent{Type: "error", Error: msg}); err != nil {
				return nil
			}
			continue
		}

		resp, err := h.runTurn(c.Request().Context(), &req)
		if err != nil {
			if writeErr := h.writeEvent(ws, &StreamEvent{Type: "error", Error: err.Error()}); writeErr != nil {
				return nil
			}
			continue
		}

		if err := h.streamResponse(ws, resp); err != nil {
			debugLog.Warnf("Failed to stream response: %v", err)
			return nil
		}
	}
}

// streamResponse emits the reply text in chunk frames and closes the
// turn with a done frame.
func (h *Handler) streamResponse(ws *websocket.Conn, resp *ChatResponse) error {
	runes := []rune(resp.Message)
	for start := 0; start < len(runes); start += streamChunkSize {
		end := start + streamChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		event := &StreamEvent{Type: "chunk", Content: string(runes[start:end])}
		if err := h.writeEvent(ws, event); err != nil {
			return err
		}
	}

	return h.writeEvent(ws, &StreamEvent{
		Type:           "done",
		ConversationID: resp.ConversationID,
		AgentCategory:  resp.AgentCategory,
		Reasoning:      resp.Reasoning,
		ToolCalls:      resp.ToolCalls,
	})
}

func (h *Handler) writeEvent(ws *websocket.Conn, event *StreamEvent) error {
	if err := ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return ws.WriteJSON(event)
}
