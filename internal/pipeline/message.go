package pipeline

import (
	"context"
	"encoding/json"
)

// Trigger and queue tags. A stage consumes its trigger and publishes on its
// queue; stages are chained only by matching one stage's queue to the next
// stage's trigger.
const (
	TriggerRegistry     = "registry-service"
	TriggerRegistryDone = "registry-service-done"
	TriggerCallDone     = "call-service-done"
	TriggerBillDone     = "bill-service-done"
)

// Message is the queue envelope.
type Message struct {
	Payload json.RawMessage `json:"message"`
	Trigger string          `json:"trigger"`
	JobID   string          `json:"job_id,omitempty"`
}

// Publisher hands a message to the transport for the stage that consumes
// msg.Trigger.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}
