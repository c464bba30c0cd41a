package events

// EventType defines the type of event
type EventType string

const (
	// Run lifecycle events
	EventTypeRunStarted  EventType = "run.started"
	EventTypeRunFinished EventType = "run.finished"
	EventTypeRunRequeued EventType = "run.requeued"
	EventTypeRunFailed   EventType = "run.failed"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"
