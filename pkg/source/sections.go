package source

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// SectionReader walks an ordered list of record types within one staging
// source. A section is drained when a fetch returns nothing; the reader then
// advances to the next section and only reports exhaustion after the last
// one drains. The current section lives in the cursor, so a resumed run
// picks up mid-walk.
type SectionReader struct {
	repo      UngraphedFetcher
	source    string
	sections  []string
	batchSize int
	logger    ectologger.Logger
}

// NewSectionReader creates a reader over the given ordered sections.
func NewSectionReader(repo UngraphedFetcher, src string, sections []string, batchSize int, logger ectologger.Logger) *SectionReader {
	return &SectionReader{
		repo:      repo,
		source:    src,
		sections:  sections,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Fetch returns the next batch from the current section. An empty batch with
// Exhausted unset signals a section advance; the driver fetches again.
func (r *SectionReader) Fetch(ctx context.Context, state models.CursorState) (Batch, models.CursorState, error) {
	ctx, span := tracing.StartSpan(ctx, "source.SectionReader.Fetch")
	defer span.End()

	next := state
	if next.Section >= len(r.sections) {
		next.Exhausted = true
		return Batch{}, next, nil
	}

	recordType := r.sections[next.Section]
	records, err := r.repo.FetchUngraphed(ctx, r.source, recordType, r.batchSize)
	if err != nil {
		return Batch{}, state, err
	}

	if len(records) == 0 {
		r.logger.WithContext(ctx).WithFields(map[string]any{
			"source":  r.source,
			"section": recordType,
		}).Info("Section drained")
		next.Section++
		if next.Section >= len(r.sections) {
			next.Exhausted = true
		}
		return Batch{}, next, nil
	}

	batch := Batch{Records: make([]RawRecord, 0, len(records))}
	for _, record := range records {
		batch.Records = append(batch.Records, RawRecord{ID: record.ID, Data: record.Data})
	}
	return batch, next, nil
}

// Section returns the record type for a section index, for logging and
// normalizer dispatch.
func (r *SectionReader) Section(index int) string {
	if index < 0 || index >= len(r.sections) {
		return ""
	}
	return r.sections[index]
}
