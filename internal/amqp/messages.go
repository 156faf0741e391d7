package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// MonthSyncedMessage announces that a month reached the remote store.
// The consumer reloads the month itself; the message carries only its key.
type MonthSyncedMessage struct {
	UserID    string    `json:"user_id"`
	MonthID   string    `json:"month_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewMonthSyncedMessage(userID, monthID string) *MonthSyncedMessage {
	return &MonthSyncedMessage{
		UserID:    userID,
		MonthID:   monthID,
		Timestamp: time.Now().UTC(),
	}
}

func (m *MonthSyncedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MonthSyncedMessageFromJSON decodes and checks a message body.
func MonthSyncedMessageFromJSON(data []byte) (*MonthSyncedMessage, error) {
	var msg MonthSyncedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" || msg.MonthID == "" {
		return nil, errors.New("month synced message missing user_id or month_id")
	}
	return &msg, nil
}
