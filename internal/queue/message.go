package queue

import (
	"encoding/json"
	"fmt"
)

// MessageVersion is the schema version stamped on every message.
const MessageVersion = 1

// Message announces a finished janitor run to downstream consumers.
type Message struct {
	RunID              string `json:"runId"`
	AsOf               string `json:"asOf"`
	FinishedAt         string `json:"finishedAt"`
	DryRun             bool   `json:"dryRun"`
	FunctionsScanned   int    `json:"functionsScanned"`
	FunctionsFailed    int    `json:"functionsFailed"`
	VersionsScanned    int    `json:"versionsScanned"`
	Warned             int    `json:"warned"`
	Deleted            int    `json:"deleted"`
	WouldDelete        int    `json:"wouldDelete"`
	DeleteFailed       int    `json:"deleteFailed"`
	NotificationFailed bool   `json:"notificationFailed"`
	Error              string `json:"error,omitempty"`
	EnqueuedAt         string `json:"enqueuedAt"`
	Version            int    `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.RunID == "" {
		return Message{}, fmt.Errorf("queue message missing runId")
	}
	if msg.Version > MessageVersion {
		return Message{}, fmt.Errorf("unsupported queue message version %d", msg.Version)
	}
	return msg, nil
}
