// Package lobbying ingests lobbying disclosure filings from the upstream
// REST API into the staging store. It is the fetch-side job: no graph writes,
// just paged pulls staged for a later loader. The cursor tracks a single
// option index over the cross product of (year, report type, sort order,
// page offset), so a budget-capped run resumes exactly where it stopped.
package lobbying

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/bramble/pkg/httpclient"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/source"
)

const (
	defaultPageSize  = 100
	defaultMaxOffset = 9900
)

// Option is one query combination in the walk.
type Option struct {
	Year       int
	ReportType string
	Order      string
	Offset     int
}

// BuildOptions enumerates the full walk: offsets nested innermost so a short
// page can skip the remaining offsets of the same (year, type, order).
func BuildOptions(years []int, reportTypes, orders []string, maxOffset, pageSize int) []Option {
	var options []Option
	for _, y := range years {
		for _, rt := range reportTypes {
			for _, o := range orders {
				for f := 0; f <= maxOffset; f += pageSize {
					options = append(options, Option{Year: y, ReportType: rt, Order: o, Offset: f})
				}
			}
		}
	}
	return options
}

// Reader pages through the disclosures API following the option walk. The
// underlying API reader owns retries and record extraction; the walk logic
// here decides which page each option index maps to and how a short page
// skips the rest of its combination.
type Reader struct {
	api      *source.APIReader
	options  []Option
	pageSize int
}

// NewReader creates a reader over the given options. Trigger params narrow
// the walk to one registrant when set.
func NewReader(client *httpclient.Client, cfg Config, params models.JobParams, options []Option, logger ectologger.Logger) (*Reader, error) {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	r := &Reader{options: options, pageSize: cfg.PageSize}

	api, err := source.NewAPIReader(client, r.requestBuilder(cfg, params), source.APIReaderConfig{
		RecordsPath: "results",
		IDPath:      "filing_uuid",
		PageSize:    cfg.PageSize,
		MaxRetries:  cfg.MaxRetries,
		RetryDelay:  cfg.RetryDelay,
		Advance:     r.advance,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build filings reader: %w", err)
	}
	r.api = api

	return r, nil
}

// Fetch pulls the page for the current option and advances the option index.
func (r *Reader) Fetch(ctx context.Context, state models.CursorState) (source.Batch, models.CursorState, error) {
	return r.api.Fetch(ctx, state)
}

func (r *Reader) requestBuilder(cfg Config, params models.JobParams) source.RequestBuilder {
	return func(ctx context.Context, state models.CursorState, pageSize int) (*http.Request, error) {
		if state.OptionIndex >= len(r.options) {
			return nil, nil
		}
		opt := r.options[state.OptionIndex]

		q := url.Values{}
		q.Set("filing_year", strconv.Itoa(opt.Year))
		q.Set("filing_type", opt.ReportType)
		q.Set("ordering", opt.Order)
		q.Set("offset", strconv.Itoa(opt.Offset))
		q.Set("page_size", strconv.Itoa(pageSize))
		if params.Term != "" {
			q.Set("registrant_name", params.Term)
		}
		if params.EntityID != "" {
			q.Set("registrant_id", params.EntityID)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/filings/?%s", cfg.BaseURL, q.Encode()), nil)
		if err != nil {
			return nil, err
		}
		if cfg.APIKey != "" {
			req.Header.Set("Authorization", "Token "+cfg.APIKey)
		}
		return req, nil
	}
}

// advance moves the option index past the fetched page. A short page means
// the remaining offsets of the same (year, type, order) combination are
// empty, so they are skipped.
func (r *Reader) advance(state models.CursorState, pageLen int) models.CursorState {
	next := state
	if pageLen < r.pageSize {
		next.OptionIndex = r.skipCombination(next.OptionIndex)
	} else {
		next.OptionIndex++
	}
	if next.OptionIndex >= len(r.options) {
		next.Exhausted = true
	}
	return next
}

// skipCombination returns the index of the first option after idx whose
// (year, type, order) differs from the option at idx.
func (r *Reader) skipCombination(idx int) int {
	current := r.options[idx]
	for i := idx + 1; i < len(r.options); i++ {
		opt := r.options[i]
		if opt.Year != current.Year || opt.ReportType != current.ReportType || opt.Order != current.Order {
			return i
		}
	}
	return len(r.options)
}
