package models

import "time"

// TriggerMessage invokes a job. It arrives on the trigger topic or from the
// manual trigger endpoint; continuation triggers are produced by the driver
// itself when an invocation runs out of time budget with work remaining.
type TriggerMessage struct {
	Job          string    `json:"job" validate:"required"`
	InvocationID string    `json:"invocation_id,omitempty"`
	Continuation bool      `json:"continuation,omitempty"`
	Params       JobParams `json:"params"`
	Timestamp    time.Time `json:"timestamp"`
}

// JobParams scope an invocation to a slice of the source data. All fields are
// optional; an empty params runs the job over everything unprocessed.
type JobParams struct {
	Term      string     `json:"term,omitempty"`      // free-text scope, e.g. a search term or dataset slice
	EntityID  string     `json:"entity_id,omitempty"` // restrict to records about one upstream entity
	Partition string     `json:"partition,omitempty"` // cursor partition suffix
	DateRange *DateRange `json:"date_range,omitempty"`
}

// DateRange bounds an invocation by upstream record date, inclusive.
type DateRange struct {
	Start string `json:"start" validate:"omitempty,datetime=2006-01-02"`
	End   string `json:"end" validate:"omitempty,datetime=2006-01-02"`
}
