package lobbying

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/bramble/pkg/driver"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/normalize"
	"github.com/Ramsey-B/bramble/pkg/source"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// dateFields are normalized to RFC3339 before a filing is staged. Upstream
// mixes half a dozen layouts across these fields.
var dateFields = []string{"signed_date", "effective_date", "termination_date"}

// UpsertRepository is the staging store surface the stager needs. The batch
// is expected to land atomically, so an aborted run stages nothing from it.
type UpsertRepository interface {
	UpsertBatch(ctx context.Context, reqs []models.CreateStagedRecordRequest) error
}

// Stager normalizes filing documents and upserts them into the staging
// store. It produces no graph plan; this job's output is staged records.
type Stager struct {
	repo   UpsertRepository
	logger ectologger.Logger
}

// NewStager creates a lobbying filing stager.
func NewStager(repo UpsertRepository, logger ectologger.Logger) *Stager {
	return &Stager{repo: repo, logger: logger}
}

// Normalize cleans each filing and stages the batch in one upsert. Filings
// with no identity or an unparseable date are skipped; the batch upsert
// failing aborts the run with nothing staged, since the store is unavailable
// rather than the records bad.
func (s *Stager) Normalize(ctx context.Context, batch source.Batch, _ models.CursorState) (driver.NormalizedBatch, error) {
	ctx, span := tracing.StartSpan(ctx, "lobbying.Stager.Normalize")
	defer span.End()

	var out driver.NormalizedBatch
	var reqs []models.CreateStagedRecordRequest
	var cleaned []string
	for _, record := range batch.Records {
		doc, err := cleanFiling(record.Data)
		if err != nil {
			out.Skipped = append(out.Skipped, driver.SkippedRecord{ID: record.ID, Reason: err.Error()})
			continue
		}

		data, err := json.Marshal(doc)
		if err != nil {
			out.Skipped = append(out.Skipped, driver.SkippedRecord{ID: record.ID, Reason: err.Error()})
			continue
		}

		reqs = append(reqs, models.CreateStagedRecordRequest{
			Source:     sourceName,
			RecordType: recordType,
			ExternalID: record.ID,
			Data:       data,
		})
		cleaned = append(cleaned, record.ID)
	}

	if len(reqs) > 0 {
		if err := s.repo.UpsertBatch(ctx, reqs); err != nil {
			return out, fmt.Errorf("failed to stage filings: %w", err)
		}
	}
	out.Completed = cleaned

	return out, nil
}

// cleanFiling validates identity and rewrites the known date fields to
// RFC3339 UTC.
func cleanFiling(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid filing document: %w", err)
	}
	if id, _ := doc["filing_uuid"].(string); id == "" {
		return nil, fmt.Errorf("filing document missing filing_uuid")
	}

	for _, field := range dateFields {
		raw, ok := doc[field].(string)
		if !ok || raw == "" {
			continue
		}
		parsed, err := normalize.ParseDate(raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field, err)
		}
		doc[field] = parsed.UTC().Format(time.RFC3339)
	}

	return doc, nil
}
