package cursor

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/bramble/pkg/models"
)

type fakeKV struct {
	data   map[string]string
	getErr error
	setErr error
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]string)}
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeKV) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.data[key] = value.(string)
	return nil
}

func newTestStore(kv KV) *Store {
	return &Store{
		kv:     kv,
		logger: ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}),
		now:    func() time.Time { return time.Date(2022, 3, 15, 12, 0, 0, 0, time.UTC) },
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "bramble:cursor:contributions", Key("contributions", ""))
	assert.Equal(t, "bramble:cursor:ads:page-1", Key("ads", "page-1"))
}

func TestStore_LoadMissingReturnsDefault(t *testing.T) {
	store := newTestStore(newFakeKV())

	state, err := store.Load(context.Background(), "contributions", "")
	require.NoError(t, err)
	assert.Equal(t, "contributions", state.Job)
	assert.Equal(t, 0, state.Section)
	assert.Zero(t, state.Counters.Fetched)
}

func TestStore_SaveThenLoadRoundTrips(t *testing.T) {
	store := newTestStore(newFakeKV())
	ctx := context.Background()

	state := models.NewCursorState("contributions", "")
	state.Section = 3
	state.Offset = 200
	state.Counters.Fetched = 500
	state.RecordSoftFailure("sub-1", "unparseable date", time.Date(2022, 3, 15, 0, 0, 0, 0, time.UTC))

	require.NoError(t, store.Save(ctx, state))

	loaded, err := store.Load(ctx, "contributions", "")
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Section)
	assert.Equal(t, 200, loaded.Offset)
	assert.Equal(t, int64(500), loaded.Counters.Fetched)
	require.Len(t, loaded.SoftFailures, 1)
	assert.Equal(t, "sub-1", loaded.SoftFailures[0].ID)
	assert.False(t, loaded.UpdatedAt.IsZero())
}

func TestStore_LoadCorruptReturnsDefault(t *testing.T) {
	kv := newFakeKV()
	kv.data[Key("ads", "")] = "{not json"
	store := newTestStore(kv)

	state, err := store.Load(context.Background(), "ads", "")
	require.NoError(t, err)
	assert.Equal(t, "ads", state.Job)
	assert.Equal(t, 0, state.Offset)
}

func TestStore_LoadTransportErrorPropagates(t *testing.T) {
	kv := newFakeKV()
	kv.getErr = assert.AnError
	store := newTestStore(kv)

	_, err := store.Load(context.Background(), "ads", "")
	assert.Error(t, err)
}

func TestStore_Merge(t *testing.T) {
	store := newTestStore(newFakeKV())
	ctx := context.Background()

	state := models.NewCursorState("lobbying", "")
	state.OptionIndex = 4
	require.NoError(t, store.Save(ctx, state))

	err := store.Merge(ctx, "lobbying", "", func(s *models.CursorState) {
		s.Counters.Skipped += 2
		s.RecordSoftFailure("https://example.com/filing/9", "fetch failed", time.Now())
	})
	require.NoError(t, err)

	loaded, err := store.Load(ctx, "lobbying", "")
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.OptionIndex, "merge preserves untouched fields")
	assert.Equal(t, int64(2), loaded.Counters.Skipped)
	assert.Len(t, loaded.SoftFailures, 1)
}

func TestCursorState_SoftFailures(t *testing.T) {
	now := time.Date(2022, 3, 15, 0, 0, 0, 0, time.UTC)
	state := models.NewCursorState("contributions", "")

	state.RecordSoftFailure("a", "unparseable date", now)
	state.RecordSoftFailure("a", "unparseable date", now.Add(time.Hour))
	state.RecordSoftFailure("b", "unknown entity type", now)

	require.Len(t, state.SoftFailures, 2)
	assert.Equal(t, 2, state.SoftFailures[0].Attempts)

	retired := state.RetireSoftFailures(2)
	require.Len(t, retired, 1)
	assert.Equal(t, "a", retired[0].ID)
	require.Len(t, state.SoftFailures, 1)
	assert.Equal(t, "b", state.SoftFailures[0].ID)
}
