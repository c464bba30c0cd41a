package ads

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/bramble/pkg/driver"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/source"
)

const (
	// JobName is the trigger name of the ads loader.
	JobName = "ads"

	sourceName = "ads"
	recordType = "ad"

	defaultBatchSize = 100
)

// StagingRepository is the staging store surface the ads job needs.
type StagingRepository interface {
	FetchUngraphed(ctx context.Context, src, recordType string, limit int) ([]models.StagedRecord, error)
	MarkGraphed(ctx context.Context, ids []string) error
}

// Job loads staged ad archive records into the graph.
type Job struct {
	repo      StagingRepository
	logger    ectologger.Logger
	batchSize int
}

// NewJob creates the ads loader job. batchSize <= 0 uses the default.
func NewJob(repo StagingRepository, logger ectologger.Logger, batchSize int) *Job {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Job{
		repo:      repo,
		logger:    logger,
		batchSize: batchSize,
	}
}

// Name returns the trigger name.
func (j *Job) Name() string {
	return JobName
}

// Pipeline wires the staging reader, ads normalizer, and completion marker.
func (j *Job) Pipeline(models.JobParams) (driver.Pipeline, error) {
	return driver.Pipeline{
		Reader:     source.NewStagingReader(j.repo, sourceName, recordType, j.batchSize, j.logger),
		Normalizer: NewNormalizer(j.logger),
		Marker:     j.repo,
	}, nil
}
