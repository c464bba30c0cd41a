package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Ramsey-B/bramble/pkg/models"
)

var validate = validator.New()

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Trace context (extracted from Kafka headers)
	TraceParent string
	TraceState  string

	// Parsed content
	Trigger *models.TriggerMessage
}

// ParseTrigger parses and validates the message value as a job trigger.
func (m *IncomingMessage) ParseTrigger() error {
	var trigger models.TriggerMessage
	if err := json.Unmarshal(m.Value, &trigger); err != nil {
		return fmt.Errorf("invalid trigger payload: %w", err)
	}
	if err := validate.Struct(trigger); err != nil {
		return fmt.Errorf("invalid trigger: %w", err)
	}
	m.Trigger = &trigger
	return nil
}

// JobName returns the trigger's job name, falling back to the "job" header
// for hand-published messages with an empty body.
func (m *IncomingMessage) JobName() string {
	if m.Trigger != nil {
		return m.Trigger.Job
	}
	return m.Headers["job"]
}

// IsContinuation reports whether this trigger was produced by the driver to
// resume a budget-stopped run rather than by an external scheduler.
func (m *IncomingMessage) IsContinuation() bool {
	return m.Trigger != nil && m.Trigger.Continuation
}
