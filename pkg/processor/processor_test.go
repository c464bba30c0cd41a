package processor

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/bramble/pkg/appcontext"
	"github.com/Ramsey-B/bramble/pkg/driver"
	"github.com/Ramsey-B/bramble/pkg/models"
)

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type stubJob struct {
	name string
}

func (j *stubJob) Name() string { return j.name }

func (j *stubJob) Pipeline(models.JobParams) (driver.Pipeline, error) {
	return driver.Pipeline{}, nil
}

type stubRunner struct {
	result driver.Result
	err    error
	runs   []string
	ctx    context.Context
}

func (r *stubRunner) Run(ctx context.Context, job driver.Job, _ models.JobParams) (driver.Result, error) {
	r.runs = append(r.runs, job.Name())
	r.ctx = ctx
	return r.result, r.err
}

type stubRequeuer struct {
	requeued []*models.TriggerMessage
	err      error
}

func (r *stubRequeuer) Requeue(_ context.Context, original *models.TriggerMessage) error {
	if r.err != nil {
		return r.err
	}
	r.requeued = append(r.requeued, original)
	return nil
}

type stubEmitter struct {
	started  int
	finished []driver.Result
	failed   []error
}

func (e *stubEmitter) EmitRunStarted(_ context.Context, _ *models.TriggerMessage) { e.started++ }

func (e *stubEmitter) EmitRunFinished(_ context.Context, _ *models.TriggerMessage, result driver.Result) {
	e.finished = append(e.finished, result)
}

func (e *stubEmitter) EmitRunFailed(_ context.Context, _ *models.TriggerMessage, err error) {
	e.failed = append(e.failed, err)
}

func newTestProcessor(runner *stubRunner, requeuer *stubRequeuer, emitter *stubEmitter) *Processor {
	return NewProcessor(noopLogger(), runner, requeuer, emitter, &stubJob{name: "contributions"}, &stubJob{name: "ads"})
}

func TestExecute_RunsRegisteredJob(t *testing.T) {
	runner := &stubRunner{result: driver.Result{Job: "contributions", Processed: 42, Exhausted: true}}
	requeuer := &stubRequeuer{}
	emitter := &stubEmitter{}
	p := newTestProcessor(runner, requeuer, emitter)

	err := p.Execute(context.Background(), &models.TriggerMessage{Job: "contributions", InvocationID: "inv-1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"contributions"}, runner.runs)
	assert.Equal(t, 1, emitter.started)
	require.Len(t, emitter.finished, 1)
	assert.Equal(t, 42, emitter.finished[0].Processed)
	assert.Empty(t, requeuer.requeued)
}

func TestExecute_TagsContextWithInvocation(t *testing.T) {
	runner := &stubRunner{result: driver.Result{Job: "contributions"}}
	p := newTestProcessor(runner, &stubRequeuer{}, &stubEmitter{})

	trigger := &models.TriggerMessage{Job: "contributions", InvocationID: "inv-9"}
	require.NoError(t, p.Execute(context.Background(), trigger))

	require.NotNil(t, runner.ctx)
	assert.Equal(t, "contributions", appcontext.GetJobName(runner.ctx))
	assert.Equal(t, "inv-9", appcontext.GetInvocationID(runner.ctx))
}

func TestExecute_UnknownJob(t *testing.T) {
	runner := &stubRunner{}
	p := newTestProcessor(runner, &stubRequeuer{}, &stubEmitter{})

	err := p.Execute(context.Background(), &models.TriggerMessage{Job: "precincts"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown job "precincts"`)
	assert.Empty(t, runner.runs)
}

func TestExecute_RequeuesWhenBudgetStopped(t *testing.T) {
	runner := &stubRunner{result: driver.Result{Job: "ads", Requeue: true, Processed: 1000}}
	requeuer := &stubRequeuer{}
	emitter := &stubEmitter{}
	p := newTestProcessor(runner, requeuer, emitter)

	trigger := &models.TriggerMessage{Job: "ads", InvocationID: "inv-7"}
	require.NoError(t, p.Execute(context.Background(), trigger))

	require.Len(t, requeuer.requeued, 1)
	assert.Equal(t, "inv-7", requeuer.requeued[0].InvocationID)
}

func TestExecute_RunErrorIsReturned(t *testing.T) {
	runner := &stubRunner{err: errors.New("bolt connection reset")}
	emitter := &stubEmitter{}
	p := newTestProcessor(runner, &stubRequeuer{}, emitter)

	err := p.Execute(context.Background(), &models.TriggerMessage{Job: "ads"})
	require.Error(t, err)
	require.Len(t, emitter.failed, 1)
	assert.Empty(t, emitter.finished)
}

func TestExecute_RequeueFailureIsReturned(t *testing.T) {
	runner := &stubRunner{result: driver.Result{Job: "ads", Requeue: true}}
	requeuer := &stubRequeuer{err: errors.New("kafka: broker unreachable")}
	p := newTestProcessor(runner, requeuer, &stubEmitter{})

	err := p.Execute(context.Background(), &models.TriggerMessage{Job: "ads"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to requeue job ads")
}

func TestJobs(t *testing.T) {
	p := newTestProcessor(&stubRunner{}, &stubRequeuer{}, &stubEmitter{})
	assert.ElementsMatch(t, []string{"contributions", "ads"}, p.Jobs())
}
