package websocket

import (
	"encoding/json"

	"github.com/rocketscienceinc/ultimate-tictactoe/internal/entity"
)

const (
	actionSubscribe = "match:subscribe"
	actionSnapshot  = "match:snapshot"
	actionError     = "error"
	actionPing      = "ping"
)

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type SubscribePayload struct {
	MatchID string `json:"match_id"`
}

type ResponsePayload struct {
	Match *entity.Match `json:"match,omitempty"`
	Error string        `json:"error,omitempty"`
}

func encode(action string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}

		raw = encoded
	}

	return json.Marshal(Message{Action: action, Payload: raw})
}
