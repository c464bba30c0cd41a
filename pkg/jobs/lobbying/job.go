package lobbying

import (
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/bramble/pkg/driver"
	"github.com/Ramsey-B/bramble/pkg/httpclient"
	"github.com/Ramsey-B/bramble/pkg/models"
)

const (
	// JobName is the trigger name of the lobbying ingest.
	JobName = "lobbying"

	sourceName = "lobbying"
	recordType = "disclosure"
)

// defaultReportTypes is the full quarterly report walk plus registrations.
var defaultReportTypes = []string{
	"1st Quarter Amendment Report", "1st Quarter Report", "1st Quarter Termination Amendment Report", "1st Quarter Termination Report",
	"2nd Quarter Amendment Report", "2nd Quarter Report", "2nd Quarter Termination Amendment Report", "2nd Quarter Termination Report",
	"3rd Quarter Amendment Report", "3rd Quarter Report", "3rd Quarter Termination Amendment Report", "3rd Quarter Termination Report",
	"4th Quarter Amendment Report", "4th Quarter Report", "4th Quarter Termination Amendment Report", "4th Quarter Termination Report",
	"Registration", "Registration Amendment",
}

var defaultOrders = []string{"asc", "desc"}

// Config holds the lobbying ingest settings. Empty walk fields fall back to
// the full default walk.
type Config struct {
	BaseURL     string
	APIKey      string
	PageSize    int
	MaxOffset   int
	MaxRetries  int
	RetryDelay  time.Duration
	Years       []int
	ReportTypes []string
	Orders      []string
}

// Job ingests lobbying disclosure filings into the staging store.
type Job struct {
	client *httpclient.Client
	repo   UpsertRepository
	config Config
	logger ectologger.Logger
	now    func() time.Time
}

// NewJob creates the lobbying ingest job.
func NewJob(client *httpclient.Client, repo UpsertRepository, cfg Config, logger ectologger.Logger) *Job {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.MaxOffset <= 0 {
		cfg.MaxOffset = defaultMaxOffset
	}
	if len(cfg.ReportTypes) == 0 {
		cfg.ReportTypes = defaultReportTypes
	}
	if len(cfg.Orders) == 0 {
		cfg.Orders = defaultOrders
	}
	return &Job{
		client: client,
		repo:   repo,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Name returns the trigger name.
func (j *Job) Name() string {
	return JobName
}

// Pipeline wires the option-walk reader with the staging upsert stager.
// There is no completion marker: the reader's option index is the only
// progress state. A date range in the params overrides the year walk.
func (j *Job) Pipeline(params models.JobParams) (driver.Pipeline, error) {
	years := j.config.Years
	if params.DateRange != nil {
		var err error
		years, err = yearsFromRange(*params.DateRange)
		if err != nil {
			return driver.Pipeline{}, err
		}
	}
	if len(years) == 0 {
		years = []int{j.now().UTC().Year()}
	}

	options := BuildOptions(years, j.config.ReportTypes, j.config.Orders, j.config.MaxOffset, j.config.PageSize)
	reader, err := NewReader(j.client, j.config, params, options, j.logger)
	if err != nil {
		return driver.Pipeline{}, err
	}
	return driver.Pipeline{
		Reader:     reader,
		Normalizer: NewStager(j.repo, j.logger),
	}, nil
}

func yearsFromRange(dr models.DateRange) ([]int, error) {
	start, err := time.Parse("2006-01-02", dr.Start)
	if err != nil {
		return nil, fmt.Errorf("invalid date range start %q: %w", dr.Start, err)
	}
	end, err := time.Parse("2006-01-02", dr.End)
	if err != nil {
		return nil, fmt.Errorf("invalid date range end %q: %w", dr.End, err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("date range end %s before start %s", dr.End, dr.Start)
	}

	var years []int
	for y := start.Year(); y <= end.Year(); y++ {
		years = append(years, y)
	}
	return years, nil
}
