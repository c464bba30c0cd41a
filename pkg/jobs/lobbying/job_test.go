package lobbying

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/bramble/pkg/driver"
	"github.com/Ramsey-B/bramble/pkg/graph"
	"github.com/Ramsey-B/bramble/pkg/models"
)

type memCursorStore struct {
	states map[string]models.CursorState
}

func (s *memCursorStore) Load(_ context.Context, job, partition string) (models.CursorState, error) {
	if state, ok := s.states[job+":"+partition]; ok {
		return state, nil
	}
	return models.NewCursorState(job, partition), nil
}

func (s *memCursorStore) Save(_ context.Context, state models.CursorState) error {
	if s.states == nil {
		s.states = make(map[string]models.CursorState)
	}
	s.states[state.Job+":"+state.Partition] = state
	return nil
}

func (s *memCursorStore) Merge(_ context.Context, job, partition string, update func(*models.CursorState)) error {
	state, _ := s.Load(context.Background(), job, partition)
	update(&state)
	return s.Save(context.Background(), state)
}

// failingMerger fails the test if the driver ever tries a graph write; the
// ingest job stages records and produces no plan.
type failingMerger struct {
	t *testing.T
}

func (m *failingMerger) Apply(_ context.Context, _ graph.Plan) error {
	m.t.Fatal("ingest job must not write to the graph")
	return nil
}

func TestJob_IngestsThroughDriver(t *testing.T) {
	handler := &filingsHandler{perCombination: 5, pageSize: 2}
	server := httptest.NewServer(handler)
	defer server.Close()

	repo := &memUpserts{}
	job := NewJob(testClient(), repo, Config{
		BaseURL:     server.URL,
		PageSize:    2,
		MaxOffset:   10,
		Years:       []int{2022},
		ReportTypes: []string{"Registration"},
		Orders:      []string{"asc"},
	}, noopLogger())

	store := &memCursorStore{}
	d := driver.New(store, &failingMerger{t: t}, noopLogger(), time.Hour, 0)

	result, err := d.Run(context.Background(), job, models.JobParams{})
	require.NoError(t, err)
	assert.True(t, result.Exhausted)
	assert.Equal(t, 5, result.Processed)
	assert.Len(t, repo.requests, 5)

	// Full pages at offsets 0 and 2, the short page at 4 skips the rest.
	require.Len(t, handler.requests, 3)

	state := store.states[JobName+":"]
	assert.True(t, state.Exhausted)
	assert.Equal(t, int64(5), state.Counters.Fetched)
	assert.Equal(t, int64(5), state.Counters.Merged)
	assert.Equal(t, int64(0), state.Counters.Marked)
}

func TestJob_DateRangeSelectsYears(t *testing.T) {
	job := NewJob(testClient(), &memUpserts{}, Config{
		BaseURL:     "http://unused",
		ReportTypes: []string{"Registration"},
		Orders:      []string{"asc"},
		MaxOffset:   100,
		PageSize:    100,
	}, noopLogger())

	pipeline, err := job.Pipeline(models.JobParams{
		DateRange: &models.DateRange{Start: "2020-06-01", End: "2022-02-01"},
	})
	require.NoError(t, err)

	reader, ok := pipeline.Reader.(*Reader)
	require.True(t, ok)
	// 3 years * 1 type * 1 order * 2 offsets.
	require.Len(t, reader.options, 6)
	assert.Equal(t, 2020, reader.options[0].Year)
	assert.Equal(t, 2022, reader.options[4].Year)
	assert.Nil(t, pipeline.Marker)
}

func TestJob_RejectsInvalidDateRange(t *testing.T) {
	job := NewJob(testClient(), &memUpserts{}, Config{BaseURL: "http://unused"}, noopLogger())

	_, err := job.Pipeline(models.JobParams{
		DateRange: &models.DateRange{Start: "2022-01-01", End: "2021-01-01"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "before start")
}

func TestJob_DefaultsToCurrentYear(t *testing.T) {
	job := NewJob(testClient(), &memUpserts{}, Config{BaseURL: "http://unused"}, noopLogger())
	job.now = func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }

	pipeline, err := job.Pipeline(models.JobParams{})
	require.NoError(t, err)

	reader := pipeline.Reader.(*Reader)
	require.NotEmpty(t, reader.options)
	assert.Equal(t, 2024, reader.options[0].Year)
}
