// Package driver runs loader jobs as time-boxed, resumable passes over a
// source. Each iteration fetches a batch, normalizes it into a graph plan,
// applies the plan, writes completion back, and only then advances the
// cursor. A failed merge therefore never advances the cursor, and a rerun
// of any iteration is idempotent.
package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/bramble/pkg/graph"
	"github.com/Ramsey-B/bramble/pkg/metrics"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/source"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// SkippedRecord is a record the normalizer could not handle. It is parked on
// the cursor soft-failure list instead of failing the run.
type SkippedRecord struct {
	ID     string
	Reason string
}

// NormalizedBatch is the output of normalizing one fetched batch.
type NormalizedBatch struct {
	Plan      graph.Plan
	Completed []string // record IDs safe to mark as loaded once the plan applies
	Skipped   []SkippedRecord
}

// Normalizer turns fetched records into a graph merge plan. Per-record
// problems go in Skipped; a returned error aborts the run.
type Normalizer interface {
	Normalize(ctx context.Context, batch source.Batch, state models.CursorState) (NormalizedBatch, error)
}

// CompletionMarker writes completion back to the staging store after a
// successful merge.
type CompletionMarker interface {
	MarkGraphed(ctx context.Context, ids []string) error
}

// Pipeline is the per-run wiring of a job: where records come from, how they
// become graph entities, and how completion is recorded. Marker may be nil
// for jobs whose reader tracks position in the cursor alone.
type Pipeline struct {
	Reader     source.Reader
	Normalizer Normalizer
	Marker     CompletionMarker
}

// Job is a registered loader job.
type Job interface {
	Name() string
	Pipeline(params models.JobParams) (Pipeline, error)
}

// CursorStore persists resume state between runs. The Redis-backed
// cursor.Store satisfies it.
type CursorStore interface {
	Load(ctx context.Context, job, partition string) (models.CursorState, error)
	Save(ctx context.Context, state models.CursorState) error
	Merge(ctx context.Context, job, partition string, update func(*models.CursorState)) error
}

// Result summarizes one run.
type Result struct {
	Job       string `json:"job"`
	Partition string `json:"partition,omitempty"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Requeue   bool   `json:"requeue"`
	Exhausted bool   `json:"exhausted"`
}

// Driver executes jobs against a shared cursor store and graph merger.
type Driver struct {
	store            CursorStore
	merger           graph.Merger
	logger           ectologger.Logger
	budget           time.Duration
	softFailureLimit int
	now              func() time.Time
}

// New creates a driver. budget is the wall-time allowance for a single run;
// a run that exhausts it stops cleanly and asks to be requeued.
// softFailureLimit is the attempt count after which a parked record is
// abandoned; zero keeps records parked forever.
func New(store CursorStore, merger graph.Merger, logger ectologger.Logger, budget time.Duration, softFailureLimit int) *Driver {
	return &Driver{
		store:            store,
		merger:           merger,
		logger:           logger,
		budget:           budget,
		softFailureLimit: softFailureLimit,
		now:              time.Now,
	}
}

// Run executes one time-boxed pass of the job. It resumes from the saved
// cursor, and saves the cursor after every successfully merged batch, so a
// crash or budget stop loses at most one batch of progress. Re-running that
// batch is safe: merges are idempotent and completion stamps are sticky.
func (d *Driver) Run(ctx context.Context, job Job, params models.JobParams) (Result, error) {
	ctx, span := tracing.StartSpan(ctx, "driver.Driver.Run")
	defer span.End()

	start := d.now()
	deadline := start.Add(d.budget)
	result := Result{Job: job.Name(), Partition: params.Partition}

	log := d.logger.WithContext(ctx).WithFields(map[string]any{
		"job":       job.Name(),
		"partition": params.Partition,
	})

	pipeline, err := job.Pipeline(params)
	if err != nil {
		return result, fmt.Errorf("failed to build pipeline for job %s: %w", job.Name(), err)
	}

	state, err := d.store.Load(ctx, job.Name(), params.Partition)
	if err != nil {
		return result, err
	}

	// A trigger on a finished cursor starts a new pass. Soft failures carry
	// over so parked records stay visible until they are retired.
	if state.Exhausted {
		fresh := models.NewCursorState(job.Name(), params.Partition)
		fresh.SoftFailures = state.SoftFailures
		state = fresh
		log.Info("Previous pass complete, starting a new pass")
	}

	if retired := state.RetireSoftFailures(d.softFailureLimit); len(retired) > 0 {
		ids := make([]string, len(retired))
		for i, f := range retired {
			ids[i] = f.ID
		}
		log.WithFields(map[string]any{
			"records":  ids,
			"attempts": d.softFailureLimit,
		}).Warn("Abandoning records that failed every attempt")
	}

	for {
		if err := ctx.Err(); err != nil {
			d.finish(log, result, start, "canceled")
			return result, err
		}
		if !d.now().Before(deadline) {
			result.Requeue = true
			metrics.RecordRequeue(job.Name())
			d.finish(log, result, start, "requeued")
			return result, nil
		}

		fetchStart := d.now()
		batch, next, err := pipeline.Reader.Fetch(ctx, state)
		metrics.RecordFetch(job.Name(), d.now().Sub(fetchStart).Seconds())
		if err != nil {
			d.finish(log, result, start, "error")
			return result, fmt.Errorf("fetch failed for job %s: %w", job.Name(), err)
		}
		next.Counters.Fetched += int64(batch.Len())

		if batch.Len() == 0 {
			if err := d.store.Save(ctx, next); err != nil {
				return result, err
			}
			state = next
			if state.Exhausted {
				result.Exhausted = true
				d.finish(log, result, start, "exhausted")
				return result, nil
			}
			// Empty batch without exhaustion means the reader advanced to
			// the next section of the source. Keep going.
			continue
		}

		normalized, err := pipeline.Normalizer.Normalize(ctx, batch, state)
		if err != nil {
			d.finish(log, result, start, "error")
			return result, fmt.Errorf("normalize failed for job %s: %w", job.Name(), err)
		}

		for _, skip := range normalized.Skipped {
			next.RecordSoftFailure(skip.ID, skip.Reason, d.now().UTC())
			next.Counters.Skipped++
		}

		if !normalized.Plan.IsEmpty() {
			if err := d.merger.Apply(ctx, normalized.Plan); err != nil {
				metrics.BatchesMergedTotal.WithLabelValues(job.Name(), "error").Inc()
				d.mergeDiagnostics(ctx, log, next)
				d.finish(log, result, start, "error")
				// Cursor is not saved here: the batch will be refetched and
				// re-merged on the next run.
				return result, fmt.Errorf("merge failed for job %s: %w", job.Name(), err)
			}
			metrics.BatchesMergedTotal.WithLabelValues(job.Name(), "success").Inc()
		}
		next.Counters.Merged += int64(len(normalized.Completed))

		if pipeline.Marker != nil && len(normalized.Completed) > 0 {
			if err := pipeline.Marker.MarkGraphed(ctx, normalized.Completed); err != nil {
				d.mergeDiagnostics(ctx, log, next)
				d.finish(log, result, start, "error")
				return result, fmt.Errorf("completion mark failed for job %s: %w", job.Name(), err)
			}
			next.Counters.Marked += int64(len(normalized.Completed))
		}

		metrics.RecordBatch(job.Name(), len(normalized.Completed), len(normalized.Skipped))
		result.Processed += len(normalized.Completed)
		result.Skipped += len(normalized.Skipped)

		if err := d.store.Save(ctx, next); err != nil {
			return result, err
		}

		// When nothing in the batch completed and the resume token did not
		// move, the next fetch would return the same records. Stop instead
		// of spinning on a batch of parked soft failures.
		if len(normalized.Completed) == 0 && resumeTokenUnchanged(state, next) {
			state = next
			d.finish(log, result, start, "stalled")
			return result, nil
		}
		state = next

		if state.Exhausted {
			result.Exhausted = true
			d.finish(log, result, start, "exhausted")
			return result, nil
		}
	}
}

// mergeDiagnostics records a failed batch's counters and soft failures on
// the stored cursor without touching its resume token. Best effort: the run
// is already failing, so a store error here is only logged.
func (d *Driver) mergeDiagnostics(ctx context.Context, log ectologger.Logger, state models.CursorState) {
	err := d.store.Merge(ctx, state.Job, state.Partition, func(s *models.CursorState) {
		s.Counters = state.Counters
		s.SoftFailures = state.SoftFailures
	})
	if err != nil {
		log.WithError(err).Warn("Failed to merge run diagnostics into cursor")
	}
}

func resumeTokenUnchanged(a, b models.CursorState) bool {
	return a.Section == b.Section &&
		a.Offset == b.Offset &&
		a.OptionIndex == b.OptionIndex &&
		a.LastID == b.LastID &&
		a.Exhausted == b.Exhausted
}

func (d *Driver) finish(log ectologger.Logger, result Result, start time.Time, status string) {
	duration := d.now().Sub(start)
	metrics.RecordRun(result.Job, status, duration.Seconds())
	log.WithFields(map[string]any{
		"status":    status,
		"processed": result.Processed,
		"skipped":   result.Skipped,
		"duration":  duration.String(),
	}).Info("Job run finished")
}
