package realtime

import (
	"encoding/json"
	"fmt"
)

// Protocol constants.
const (
	ProtocolVersion = "2.0.0"
	ResponseFormat  = "v2"

	SystemTopic = "phoenix"

	EventJoin      = "phx_join"
	EventLeave     = "phx_leave"
	EventReply     = "phx_reply"
	EventError     = "phx_error"
	EventClose     = "phx_close"
	EventHeartbeat = "heartbeat"
)

// Topic builds the per-user topic name.
func Topic(accountID, userID string) string {
	return fmt.Sprintf("sdk:%s:%s", accountID, userID)
}

// Message is one frame: [joinRef|null, ref, topic, event, payload].
type Message struct {
	JoinRef string
	Ref     string
	Topic   string
	Event   string
	Payload map[string]any
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// MarshalJSON encodes the message as a five element array.
func (m Message) MarshalJSON() ([]byte, error) {
	payload := m.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	return json.Marshal([]any{nullable(m.JoinRef), nullable(m.Ref), m.Topic, m.Event, payload})
}

// UnmarshalJSON decodes the five element array form.
func (m *Message) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if len(parts) != 5 {
		return fmt.Errorf("%w: expected 5 elements, got %d", ErrMalformedFrame, len(parts))
	}

	var joinRef, ref *string
	if err := json.Unmarshal(parts[0], &joinRef); err != nil {
		return fmt.Errorf("%w: join ref: %v", ErrMalformedFrame, err)
	}
	if err := json.Unmarshal(parts[1], &ref); err != nil {
		return fmt.Errorf("%w: ref: %v", ErrMalformedFrame, err)
	}

	var out Message
	if err := json.Unmarshal(parts[2], &out.Topic); err != nil {
		return fmt.Errorf("%w: topic: %v", ErrMalformedFrame, err)
	}
	if err := json.Unmarshal(parts[3], &out.Event); err != nil {
		return fmt.Errorf("%w: event: %v", ErrMalformedFrame, err)
	}
	if err := json.Unmarshal(parts[4], &out.Payload); err != nil {
		return fmt.Errorf("%w: payload: %v", ErrMalformedFrame, err)
	}
	if joinRef != nil {
		out.JoinRef = *joinRef
	}
	if ref != nil {
		out.Ref = *ref
	}
	*m = out
	return nil
}

// reply is the payload of a phx_reply frame.
type reply struct {
	Status   string
	Response map[string]any
}

func parseReply(payload map[string]any) reply {
	r := reply{}
	r.Status, _ = payload["status"].(string)
	r.Response, _ = payload["response"].(map[string]any)
	return r
}

func (r reply) ok() bool { return r.Status == "ok" }

func (r reply) reason() string {
	if reason, ok := r.Response["reason"].(string); ok {
		return reason
	}
	return r.Status
}
