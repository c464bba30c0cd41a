// Package events publishes job run lifecycle events so schedulers and
// dashboards can follow loader progress without polling the cursor store.
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/bramble/pkg/driver"
	"github.com/Ramsey-B/bramble/pkg/kafka"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// Publisher is the producer surface the emitter needs.
type Publisher interface {
	PublishJobEvent(ctx context.Context, event *kafka.JobEvent) error
}

// Emitter emits run lifecycle events. Emission failures are logged, never
// propagated: events are advisory and must not fail a run that already
// merged its data.
type Emitter struct {
	producer Publisher
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitRunStarted emits a run.started event for a trigger about to execute.
func (e *Emitter) EmitRunStarted(ctx context.Context, trigger *models.TriggerMessage) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRunStarted")
	defer span.End()

	event := &kafka.JobEvent{
		EventType:    string(EventTypeRunStarted),
		Job:          trigger.Job,
		InvocationID: trigger.InvocationID,
	}

	if err := e.producer.PublishJobEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit run.started event")
	}
}

// EmitRunFinished emits the outcome of a completed run.
func (e *Emitter) EmitRunFinished(ctx context.Context, trigger *models.TriggerMessage, result driver.Result) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRunFinished")
	defer span.End()

	eventType := EventTypeRunFinished
	status := "exhausted"
	if result.Requeue {
		eventType = EventTypeRunRequeued
		status = "requeued"
	}

	detail, _ := json.Marshal(result)

	event := &kafka.JobEvent{
		EventType:    string(eventType),
		Job:          trigger.Job,
		InvocationID: trigger.InvocationID,
		Status:       status,
		Processed:    result.Processed,
		Skipped:      result.Skipped,
		Detail:       detail,
	}

	if err := e.producer.PublishJobEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit run.finished event")
	}
}

// EmitRunFailed emits a run.failed event with the error that aborted the run.
func (e *Emitter) EmitRunFailed(ctx context.Context, trigger *models.TriggerMessage, runErr error) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRunFailed")
	defer span.End()

	event := &kafka.JobEvent{
		EventType:    string(EventTypeRunFailed),
		Job:          trigger.Job,
		InvocationID: trigger.InvocationID,
		Status:       "error",
		Error:        runErr.Error(),
	}

	if err := e.producer.PublishJobEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit run.failed event")
	}
}
