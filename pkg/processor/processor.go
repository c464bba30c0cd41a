// Package processor dispatches incoming trigger messages to registered
// loader jobs. It is the glue between the Kafka consumer and the driver:
// look up the job, run one time-boxed pass, requeue if there is work left,
// and report the outcome.
package processor

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/bramble/pkg/appcontext"
	"github.com/Ramsey-B/bramble/pkg/driver"
	"github.com/Ramsey-B/bramble/pkg/kafka"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// Runner executes one pass of a job. The driver satisfies it.
type Runner interface {
	Run(ctx context.Context, job driver.Job, params models.JobParams) (driver.Result, error)
}

// Requeuer publishes continuation triggers. The Kafka producer satisfies it.
type Requeuer interface {
	Requeue(ctx context.Context, original *models.TriggerMessage) error
}

// EventEmitter reports run lifecycle. The events emitter satisfies it.
type EventEmitter interface {
	EmitRunStarted(ctx context.Context, trigger *models.TriggerMessage)
	EmitRunFinished(ctx context.Context, trigger *models.TriggerMessage, result driver.Result)
	EmitRunFailed(ctx context.Context, trigger *models.TriggerMessage, runErr error)
}

// Processor routes triggers to jobs
type Processor struct {
	logger   ectologger.Logger
	runner   Runner
	requeuer Requeuer
	emitter  EventEmitter
	jobs     map[string]driver.Job
}

// NewProcessor creates a trigger processor over the given jobs.
func NewProcessor(logger ectologger.Logger, runner Runner, requeuer Requeuer, emitter EventEmitter, jobs ...driver.Job) *Processor {
	registry := make(map[string]driver.Job, len(jobs))
	for _, job := range jobs {
		registry[job.Name()] = job
	}
	return &Processor{
		logger:   logger,
		runner:   runner,
		requeuer: requeuer,
		emitter:  emitter,
		jobs:     registry,
	}
}

// Jobs returns the registered job names.
func (p *Processor) Jobs() []string {
	names := make([]string, 0, len(p.jobs))
	for name := range p.jobs {
		names = append(names, name)
	}
	return names
}

// HandleMessage processes one trigger message from the consumer.
func (p *Processor) HandleMessage(ctx context.Context, msg *kafka.IncomingMessage) error {
	if msg.Trigger == nil {
		return fmt.Errorf("message has no parsed trigger")
	}
	return p.Execute(ctx, msg.Trigger)
}

// Execute runs the triggered job. An unknown job name is an error so the
// message surfaces in the consumer log rather than vanishing; a run error
// is returned uncommitted so the trigger is redelivered.
func (p *Processor) Execute(ctx context.Context, trigger *models.TriggerMessage) error {
	ctx = appcontext.SetJobName(ctx, trigger.Job)
	ctx = appcontext.SetInvocationID(ctx, trigger.InvocationID)
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.Execute")
	defer span.End()

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"job":           trigger.Job,
		"invocation_id": trigger.InvocationID,
		"continuation":  trigger.Continuation,
	})

	job, ok := p.jobs[trigger.Job]
	if !ok {
		return fmt.Errorf("unknown job %q", trigger.Job)
	}

	log.Info("Trigger received")
	p.emitter.EmitRunStarted(ctx, trigger)

	result, err := p.runner.Run(ctx, job, trigger.Params)
	if err != nil {
		log.WithError(err).Error("Job run failed")
		p.emitter.EmitRunFailed(ctx, trigger, err)
		return err
	}

	p.emitter.EmitRunFinished(ctx, trigger, result)

	if result.Requeue {
		if err := p.requeuer.Requeue(ctx, trigger); err != nil {
			// Without the continuation the rest of the pass never runs, so
			// surface the failure and let the trigger redeliver.
			log.WithError(err).Error("Failed to requeue continuation")
			return fmt.Errorf("failed to requeue job %s: %w", trigger.Job, err)
		}
		log.WithFields(map[string]any{
			"processed": result.Processed,
		}).Info("Run requeued with work remaining")
	}

	return nil
}
