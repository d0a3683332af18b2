package amqp

import (
	"encoding/json"
	"time"
)

// Sync operations carried by a RecordSyncMessage.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// RecordSyncMessage tells the sync worker that one local record needs to be
// replayed against the backend. It carries only the id and the operation;
// the worker reads the current row from the local repository.
type RecordSyncMessage struct {
	ID        string    `json:"id"`
	Op        string    `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRecordSyncMessage creates a sync message stamped with the current time.
func NewRecordSyncMessage(id, op string) *RecordSyncMessage {
	return &RecordSyncMessage{
		ID:        id,
		Op:        op,
		Timestamp: time.Now(),
	}
}

// ToJSON serializes the message.
func (m *RecordSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordSyncMessageFromJSON deserializes a message.
func RecordSyncMessageFromJSON(data []byte) (*RecordSyncMessage, error) {
	var msg RecordSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
