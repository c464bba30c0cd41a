package source

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// UngraphedFetcher is the staging repository surface the reader needs.
type UngraphedFetcher interface {
	FetchUngraphed(ctx context.Context, src, recordType string, limit int) ([]models.StagedRecord, error)
}

// StagingReader reads unprocessed records for one (source, record_type) from
// the Postgres staging store. The unprocessed filter is server-side
// (graphed_at IS NULL), so the reader always fetches from the front and needs
// no offset: completion write-back is what advances it. Safe under
// concurrent duplicate invocations for the same reason.
type StagingReader struct {
	repo       UngraphedFetcher
	source     string
	recordType string
	batchSize  int
	logger     ectologger.Logger
}

// NewStagingReader creates a reader over staged records.
func NewStagingReader(repo UngraphedFetcher, src, recordType string, batchSize int, logger ectologger.Logger) *StagingReader {
	return &StagingReader{
		repo:       repo,
		source:     src,
		recordType: recordType,
		batchSize:  batchSize,
		logger:     logger,
	}
}

// Fetch returns the next batch of ungraphed records.
func (r *StagingReader) Fetch(ctx context.Context, state models.CursorState) (Batch, models.CursorState, error) {
	ctx, span := tracing.StartSpan(ctx, "source.StagingReader.Fetch")
	defer span.End()

	records, err := r.repo.FetchUngraphed(ctx, r.source, r.recordType, r.batchSize)
	if err != nil {
		return Batch{}, state, fmt.Errorf("failed to fetch staged records: %w", err)
	}

	batch := Batch{Records: make([]RawRecord, len(records))}
	for i, rec := range records {
		batch.Records[i] = RawRecord{ID: rec.ID, Data: rec.Data}
	}

	next := state
	next.Exhausted = len(records) == 0

	return batch, next, nil
}
