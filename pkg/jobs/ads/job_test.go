package ads

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/bramble/pkg/driver"
	"github.com/Ramsey-B/bramble/pkg/graph"
	"github.com/Ramsey-B/bramble/pkg/models"
)

// memStaging is an in-memory stand-in for the staged record store.
type memStaging struct {
	records []models.StagedRecord
	fetches int
}

func (s *memStaging) FetchUngraphed(_ context.Context, src, recordType string, limit int) ([]models.StagedRecord, error) {
	s.fetches++
	var out []models.StagedRecord
	for _, r := range s.records {
		if r.Source == src && r.RecordType == recordType && r.GraphedAt == nil {
			out = append(out, r)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *memStaging) MarkGraphed(_ context.Context, ids []string) error {
	now := time.Now().UTC()
	marked := make(map[string]bool, len(ids))
	for _, id := range ids {
		marked[id] = true
	}
	for i := range s.records {
		if marked[s.records[i].ID] {
			s.records[i].GraphedAt = &now
		}
	}
	return nil
}

func (s *memStaging) ungraphedCount() int {
	var n int
	for _, r := range s.records {
		if r.GraphedAt == nil {
			n++
		}
	}
	return n
}

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

// countingMerger tracks how many plans were applied and how many ad nodes
// each carried.
type countingMerger struct {
	applies int
	adNodes int
}

func (m *countingMerger) Apply(_ context.Context, plan graph.Plan) error {
	m.applies++
	for _, n := range plan.Nodes {
		if n.Label == "Ad" {
			m.adNodes++
		}
	}
	return nil
}

func stagedAds(t *testing.T, n int) []models.StagedRecord {
	t.Helper()
	records := make([]models.StagedRecord, 0, n)
	for i := 0; i < n; i++ {
		doc := map[string]any{
			"id":                     fmt.Sprintf("ad-%d", i),
			"ad_creation_time":       "2020-09-01T14:30:00+0000",
			"ad_delivery_start_time": "2020-09-02",
			"page_id":                fmt.Sprintf("page-%d", i%10),
			"funding_entity":         "Example PAC",
		}
		data, err := json.Marshal(doc)
		require.NoError(t, err)
		records = append(records, models.StagedRecord{
			ID:         fmt.Sprintf("staged-%d", i),
			Source:     "ads",
			RecordType: "ad",
			ExternalID: fmt.Sprintf("ad-%d", i),
			Data:       data,
		})
	}
	return records
}

func TestJob_LoadsAllStagedAds(t *testing.T) {
	staging := &memStaging{records: stagedAds(t, 250)}
	merger := &countingMerger{}
	store := &memCursorStore{}
	job := NewJob(staging, noopLogger(), 100)

	d := driver.New(store, merger, noopLogger(), time.Hour, 0)
	result, err := d.Run(context.Background(), job, models.JobParams{})
	require.NoError(t, err)

	assert.Equal(t, 250, result.Processed)
	assert.True(t, result.Exhausted)
	assert.Equal(t, 0, staging.ungraphedCount())
	// 100 + 100 + 50, then one empty fetch to observe exhaustion.
	assert.Equal(t, 3, merger.applies)
	assert.Equal(t, 250, merger.adNodes)
	assert.Equal(t, 4, staging.fetches)

	// A second full run finds nothing left to load.
	result, err = d.Run(context.Background(), job, models.JobParams{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
	assert.True(t, result.Exhausted)
	assert.Equal(t, 3, merger.applies)
}

func TestJob_SkippedAdsDoNotBlockTheRest(t *testing.T) {
	records := stagedAds(t, 5)
	records[2].Data = json.RawMessage(`{"id": "ad-2", "ad_creation_time": "never"}`)
	staging := &memStaging{records: records}
	store := &memCursorStore{}
	job := NewJob(staging, noopLogger(), 100)

	d := driver.New(store, &countingMerger{}, noopLogger(), time.Hour, 0)
	result, err := d.Run(context.Background(), job, models.JobParams{})
	require.NoError(t, err)

	assert.Equal(t, 4, result.Processed)
	// The bad record is fetched once in the full batch and once more in the
	// final all-skipped batch, where the run stops instead of spinning.
	assert.Equal(t, 2, result.Skipped)
	assert.False(t, result.Exhausted)
	assert.Equal(t, 1, staging.ungraphedCount())

	state, err := store.Load(context.Background(), JobName, "")
	require.NoError(t, err)
	require.Len(t, state.SoftFailures, 1)
	assert.Equal(t, "staged-2", state.SoftFailures[0].ID)
	assert.Equal(t, 2, state.SoftFailures[0].Attempts)
}
