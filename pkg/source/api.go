package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmespath/go-jmespath"

	"github.com/Ramsey-B/bramble/pkg/httpclient"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// RequestBuilder builds the request for the page at the cursor's position.
// Returning a nil request (with a nil error) signals that the cursor is past
// the end of the walk; the fetch reports exhaustion without calling upstream.
type RequestBuilder func(ctx context.Context, state models.CursorState, pageSize int) (*http.Request, error)

// Advancer computes the next cursor from the current one and the length of
// the page just fetched. Walk-style sources use it to step through their
// query options.
type Advancer func(state models.CursorState, pageLen int) models.CursorState

// APIReaderConfig configures a paginated JSON API reader.
type APIReaderConfig struct {
	// RecordsPath is a JMESPath expression selecting the record array from
	// the response body, e.g. "results" or "filteredHits".
	RecordsPath string
	// IDPath is a JMESPath expression selecting each record's id, e.g.
	// "filing_uuid". Records where it selects nothing carry the page URL as
	// their id so a soft failure stays findable.
	IDPath     string
	PageSize   int
	MaxRetries int
	RetryDelay time.Duration
	// Advance overrides the default offset pagination (advance by page
	// length, exhaust on an empty page).
	Advance Advancer
}

// APIReader pages through a JSON REST API. Transient errors get bounded
// retries with a fixed delay; when retries are spent the fetch fails without
// advancing the cursor.
type APIReader struct {
	client      *httpclient.Client
	buildReq    RequestBuilder
	recordsExpr *jmespath.JMESPath
	idExpr      *jmespath.JMESPath
	config      APIReaderConfig
	logger      ectologger.Logger

	sleep func(time.Duration)
}

// NewAPIReader creates a paginated API reader.
func NewAPIReader(client *httpclient.Client, buildReq RequestBuilder, cfg APIReaderConfig, logger ectologger.Logger) (*APIReader, error) {
	recordsExpr, err := jmespath.Compile(cfg.RecordsPath)
	if err != nil {
		return nil, fmt.Errorf("invalid records path %q: %w", cfg.RecordsPath, err)
	}

	idExpr, err := jmespath.Compile(cfg.IDPath)
	if err != nil {
		return nil, fmt.Errorf("invalid id path %q: %w", cfg.IDPath, err)
	}

	return &APIReader{
		client:      client,
		buildReq:    buildReq,
		recordsExpr: recordsExpr,
		idExpr:      idExpr,
		config:      cfg,
		logger:      logger,
		sleep:       time.Sleep,
	}, nil
}

// Fetch requests the page at the cursor's position and advances the cursor
// past it.
func (r *APIReader) Fetch(ctx context.Context, state models.CursorState) (Batch, models.CursorState, error) {
	ctx, span := tracing.StartSpan(ctx, "source.APIReader.Fetch")
	defer span.End()

	req, err := r.buildReq(ctx, state, r.config.PageSize)
	if err != nil {
		return Batch{}, state, fmt.Errorf("failed to build request: %w", err)
	}
	if req == nil {
		next := state
		next.Exhausted = true
		return Batch{}, next, nil
	}

	resp, err := r.fetchWithRetries(ctx, req)
	if err != nil {
		return Batch{}, state, err
	}

	var body any
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return Batch{}, state, fmt.Errorf("failed to decode response body: %w", err)
	}

	result, err := r.recordsExpr.Search(body)
	if err != nil {
		return Batch{}, state, fmt.Errorf("failed to select records: %w", err)
	}

	items, _ := result.([]any)
	pageURL := req.URL.String()

	batch := Batch{Records: make([]RawRecord, 0, len(items))}
	for _, item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			return Batch{}, state, fmt.Errorf("failed to re-encode record: %w", err)
		}

		id := ""
		if idVal, err := r.idExpr.Search(item); err == nil {
			if s, ok := idVal.(string); ok {
				id = s
			} else if idVal != nil {
				id = fmt.Sprintf("%v", idVal)
			}
		}
		if id == "" {
			id = pageURL
		}

		batch.Records = append(batch.Records, RawRecord{ID: id, Data: raw})
	}

	next := state
	if r.config.Advance != nil {
		next = r.config.Advance(next, len(batch.Records))
	} else {
		next.Offset += len(batch.Records)
		next.Exhausted = len(batch.Records) == 0
	}

	return batch, next, nil
}

// fetchWithRetries retries transient failures with a fixed delay. Client
// errors other than 408/429 fail immediately; they will not heal on retry.
func (r *APIReader) fetchWithRetries(ctx context.Context, req *http.Request) (*httpclient.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			r.sleep(r.config.RetryDelay)
		}

		resp, err := r.client.Do(ctx, req)
		if err != nil {
			lastErr = err
			continue
		}

		if httpclient.IsSuccessStatus(resp.StatusCode) {
			return resp, nil
		}

		lastErr = fmt.Errorf("unexpected status %d", resp.StatusCode)
		if !httpclient.IsRetryableStatus(resp.StatusCode) {
			return nil, lastErr
		}

		r.logger.WithContext(ctx).WithFields(map[string]any{
			"url":     req.URL.String(),
			"attempt": attempt + 1,
			"status":  resp.StatusCode,
		}).Warn("Retrying source fetch")
	}

	return nil, fmt.Errorf("fetch failed after %d attempts: %w", r.config.MaxRetries+1, lastErr)
}
