package chat

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/workmate/internal/auth"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsRequest is the incoming WebSocket message format.
type wsRequest struct {
	Type           string `json:"type"` // "message"
	ConversationID string `json:"conversation_id"`
	ProjectID      string `json:"project_id"`
	Content        string `json:"content"`
}

// wsResponse is the outgoing WebSocket message format.
type wsResponse struct {
	Type           string `json:"type"` // "pending", "response" or "error"
	ConversationID string `json:"conversation_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
	Content        string `json:"content,omitempty"`
	Title          string `json:"title,omitempty"`
	Failed         bool   `json:"failed,omitempty"`
	Fallback       bool   `json:"fallback,omitempty"`
}

func handleWebSocket(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			svc.log.Warn("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		userID := auth.UserID(r.Context())
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					svc.log.Warn("websocket read failed", "error", err)
				}
				return
			}

			var req wsRequest
			if err := json.Unmarshal(data, &req); err != nil {
				svc.writeWS(conn, wsResponse{Type: "error", Content: "invalid message format"})
				continue
			}
			if req.Type != "message" {
				svc.writeWS(conn, wsResponse{Type: "error", ConversationID: req.ConversationID, Content: "unknown message type: " + req.Type})
				continue
			}

			svc.writeWS(conn, wsResponse{Type: "pending", ConversationID: req.ConversationID})
			res, err := svc.SendMessage(r.Context(), userID, SendRequest{
				ConversationID: req.ConversationID,
				ProjectID:      req.ProjectID,
				Content:        req.Content,
			})
			if err != nil {
				svc.writeWS(conn, wsResponse{Type: "error", ConversationID: req.ConversationID, Content: err.Error()})
				continue
			}
			svc.writeWS(conn, wsResponse{
				Type:           "response",
				ConversationID: res.Conversation.ID,
				MessageID:      res.AssistantMessage.ID,
				Content:        res.AssistantMessage.Content,
				Title:          res.Conversation.Title,
				Failed:         res.AssistantMessage.Metadata.Error,
				Fallback:       res.AssistantMessage.Metadata.Fallback,
			})
		}
	}
}

func (s *Service) writeWS(conn *websocket.Conn, resp wsResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		s.log.Warn("websocket write failed", "error", err)
	}
}
