package amqp

import (
	"encoding/json"
	"time"
)

// AdviceEvent mirrors one completed capture-and-advice cycle to the
// dashboard side so the chat can surface companion advice.
type AdviceEvent struct {
	User      string    `json:"user"`
	OK        bool      `json:"ok"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func NewAdviceEvent(user string, ok bool, message string) *AdviceEvent {
	return &AdviceEvent{
		User:      user,
		OK:        ok,
		Message:   message,
		Timestamp: time.Now(),
	}
}

func (e *AdviceEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func AdviceEventFromJSON(data []byte) (*AdviceEvent, error) {
	var e AdviceEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
