package web

// UI push event types.
const (
	EventState = "panel.state"
)

// UIEvent is a structured message for the UI websocket.
type UIEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// StateEvent wraps a fresh panel snapshot for broadcast.
func StateEvent(snapshot any) UIEvent {
	return UIEvent{Type: EventState, Payload: snapshot}
}
