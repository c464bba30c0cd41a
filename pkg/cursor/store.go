// Package cursor persists job resume state as one JSON document per job key.
package cursor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

const keyPrefix = "bramble:cursor"

// Key builds the cursor document key for a job and optional partition.
func Key(job, partition string) string {
	if partition == "" {
		return fmt.Sprintf("%s:%s", keyPrefix, job)
	}
	return fmt.Sprintf("%s:%s:%s", keyPrefix, job, partition)
}

// KV is the key-value surface the store needs. The Redis client satisfies it.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// Store loads and saves cursor documents.
type Store struct {
	kv     KV
	logger ectologger.Logger
	now    func() time.Time
}

// NewStore creates a cursor store over the given key-value client.
func NewStore(kv KV, logger ectologger.Logger) *Store {
	return &Store{
		kv:     kv,
		logger: logger,
		now:    time.Now,
	}
}

// Load returns the saved state for (job, partition), or a fresh default when
// no document exists or the stored document cannot be decoded. A corrupt
// document never blocks the job; it is logged and overwritten by the next
// Save.
func (s *Store) Load(ctx context.Context, job, partition string) (models.CursorState, error) {
	ctx, span := tracing.StartSpan(ctx, "cursor.Store.Load")
	defer span.End()

	key := Key(job, partition)

	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.NewCursorState(job, partition), nil
		}
		return models.CursorState{}, fmt.Errorf("failed to load cursor %s: %w", key, err)
	}

	var state models.CursorState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"cursor_key": key,
		}).Warn("Corrupt cursor document, starting from default state")
		return models.NewCursorState(job, partition), nil
	}

	return state, nil
}

// Save overwrites the cursor document.
func (s *Store) Save(ctx context.Context, state models.CursorState) error {
	ctx, span := tracing.StartSpan(ctx, "cursor.Store.Save")
	defer span.End()

	state.UpdatedAt = s.now().UTC()

	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode cursor state: %w", err)
	}

	key := Key(state.Job, state.Partition)
	if err := s.kv.Set(ctx, key, string(raw), 0); err != nil {
		return fmt.Errorf("failed to save cursor %s: %w", key, err)
	}

	return nil
}

// Merge applies a partial update to the stored document: load, mutate, save.
// Jobs use it for diagnostics that must survive even when the resume token
// does not advance.
func (s *Store) Merge(ctx context.Context, job, partition string, update func(*models.CursorState)) error {
	ctx, span := tracing.StartSpan(ctx, "cursor.Store.Merge")
	defer span.End()

	state, err := s.Load(ctx, job, partition)
	if err != nil {
		return err
	}

	update(&state)

	return s.Save(ctx, state)
}
