package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// ScenarioMessage asks a worker to compute a stored scenario. It carries only
// the id; the worker loads the scenario itself.
type ScenarioMessage struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewScenarioMessage(id int64) *ScenarioMessage {
	return &ScenarioMessage{
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}

func (m *ScenarioMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ScenarioMessageFromJSON decodes a message and rejects ids that cannot
// refer to a stored scenario.
func ScenarioMessageFromJSON(data []byte) (*ScenarioMessage, error) {
	var msg ScenarioMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID <= 0 {
		return nil, fmt.Errorf("invalid scenario id %d", msg.ID)
	}
	return &msg, nil
}
