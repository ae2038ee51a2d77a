package ws

import "encoding/json"

// MessageType identifies the kind of WebSocket message.
type MessageType string

const (
	MsgStatementProgress  MessageType = "statement_progress"
	MsgAlterationComplete MessageType = "alteration_complete"
	MsgValidationCheck    MessageType = "validation_check"
	MsgError              MessageType = "error"
	MsgSync               MessageType = "sync"
	MsgSnapshot           MessageType = "snapshot"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage creates a new Message with the given type and payload.
func NewMessage(typ MessageType, payload any) ([]byte, error) {
	var p json.RawMessage
	if payload != nil {
		var err error
		p, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(Message{Type: typ, Payload: p})
}

// ProgressPayload is the payload of a statement_progress message.
type ProgressPayload struct {
	Phase     string  `json:"phase"`
	Statement string  `json:"statement,omitempty"`
	Done      int     `json:"done"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
	Failed    string  `json:"failed,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// ValidationPayload is the payload of a validation_check message.
type ValidationPayload struct {
	Table  string `json:"table"`
	Check  string `json:"check"`
	Passed bool   `json:"passed"`
}
