package lobbying

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/bramble/pkg/httpclient"
	"github.com/Ramsey-B/bramble/pkg/models"
)

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func testClient() *httpclient.Client {
	return httpclient.NewClient(httpclient.DefaultConfig(), noopLogger())
}

// filingsHandler serves a fixed number of filings per (year, type, order)
// combination, paged by offset, and records every request it sees.
type filingsHandler struct {
	perCombination int
	pageSize       int
	requests       []string
	status         int
}

func (h *filingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.requests = append(h.requests, r.URL.RequestURI())
	if h.status != 0 {
		w.WriteHeader(h.status)
		return
	}

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	year := r.URL.Query().Get("filing_year")
	order := r.URL.Query().Get("ordering")

	var results []json.RawMessage
	for i := offset; i < h.perCombination && i < offset+h.pageSize; i++ {
		doc := fmt.Sprintf(`{"filing_uuid": "%s-%s-%d", "filing_year": %s}`, year, order, i, year)
		results = append(results, json.RawMessage(doc))
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
}

func TestBuildOptions(t *testing.T) {
	options := BuildOptions([]int{2021, 2022}, []string{"Registration"}, []string{"asc", "desc"}, 200, 100)

	// 2 years * 1 type * 2 orders * 3 offsets (0, 100, 200).
	require.Len(t, options, 12)
	assert.Equal(t, Option{Year: 2021, ReportType: "Registration", Order: "asc", Offset: 0}, options[0])
	assert.Equal(t, Option{Year: 2021, ReportType: "Registration", Order: "asc", Offset: 200}, options[2])
	assert.Equal(t, Option{Year: 2021, ReportType: "Registration", Order: "desc", Offset: 0}, options[3])
	assert.Equal(t, Option{Year: 2022, ReportType: "Registration", Order: "asc", Offset: 0}, options[6])
}

func newTestReader(t *testing.T, cfg Config, params models.JobParams, options []Option) *Reader {
	t.Helper()
	reader, err := NewReader(testClient(), cfg, params, options, noopLogger())
	require.NoError(t, err)
	return reader
}

func TestReader_ShortPageSkipsCombination(t *testing.T) {
	// 150 filings per combination with pages of 100: offset 0 is full,
	// offset 100 is short, so offsets 200+ of the combination are skipped.
	handler := &filingsHandler{perCombination: 150, pageSize: 100}
	server := httptest.NewServer(handler)
	defer server.Close()

	options := BuildOptions([]int{2022}, []string{"Registration"}, []string{"asc", "desc"}, 900, 100)
	require.Len(t, options, 20)
	reader := newTestReader(t, Config{BaseURL: server.URL, PageSize: 100}, models.JobParams{}, options)

	state := models.CursorState{}

	batch, state, err := reader.Fetch(context.Background(), state)
	require.NoError(t, err)
	assert.Len(t, batch.Records, 100)
	assert.Equal(t, 1, state.OptionIndex)
	assert.False(t, state.Exhausted)
	assert.Equal(t, "2022-asc-0", batch.Records[0].ID)

	batch, state, err = reader.Fetch(context.Background(), state)
	require.NoError(t, err)
	assert.Len(t, batch.Records, 50)
	// Skipped to the first "desc" option.
	assert.Equal(t, 10, state.OptionIndex)
	assert.False(t, state.Exhausted)

	batch, state, err = reader.Fetch(context.Background(), state)
	require.NoError(t, err)
	assert.Len(t, batch.Records, 100)
	assert.Equal(t, "2022-desc-0", batch.Records[0].ID)

	batch, state, err = reader.Fetch(context.Background(), state)
	require.NoError(t, err)
	assert.Len(t, batch.Records, 50)
	assert.True(t, state.Exhausted)

	require.Len(t, handler.requests, 4)
	assert.Contains(t, handler.requests[0], "filing_year=2022")
	assert.Contains(t, handler.requests[0], "filing_type=Registration")
	assert.Contains(t, handler.requests[0], "offset=0")
	assert.Contains(t, handler.requests[1], "offset=100")
	assert.Contains(t, handler.requests[2], "ordering=desc")
}

func TestReader_ExhaustedPastOptions(t *testing.T) {
	reader := newTestReader(t, Config{BaseURL: "http://unused", PageSize: 100}, models.JobParams{}, []Option{{Year: 2022}})

	batch, state, err := reader.Fetch(context.Background(), models.CursorState{OptionIndex: 1})
	require.NoError(t, err)
	assert.Empty(t, batch.Records)
	assert.True(t, state.Exhausted)
}

func TestReader_SendsAuthHeader(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"results": []}`))
	}))
	defer server.Close()

	reader := newTestReader(t, Config{BaseURL: server.URL, APIKey: "secret-key", PageSize: 100}, models.JobParams{}, []Option{{Year: 2022, ReportType: "Registration", Order: "asc"}})
	_, _, err := reader.Fetch(context.Background(), models.CursorState{})
	require.NoError(t, err)
	assert.Equal(t, "Token secret-key", gotAuth)
}

func TestReader_RetriesBeforeFailingWithoutAdvancing(t *testing.T) {
	handler := &filingsHandler{status: http.StatusBadGateway}
	server := httptest.NewServer(handler)
	defer server.Close()

	cfg := Config{BaseURL: server.URL, PageSize: 100, MaxRetries: 2}
	reader := newTestReader(t, cfg, models.JobParams{}, []Option{{Year: 2022, ReportType: "Registration", Order: "asc"}})

	before := models.CursorState{OptionIndex: 0}
	_, state, err := reader.Fetch(context.Background(), before)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Equal(t, before, state)
	// The transient error was attempted MaxRetries+1 times.
	assert.Len(t, handler.requests, 3)
}

func TestReader_RecoversFromTransientError(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"results": [{"filing_uuid": "f-1"}]}`))
	}))
	defer server.Close()

	cfg := Config{BaseURL: server.URL, PageSize: 100, MaxRetries: 3}
	reader := newTestReader(t, cfg, models.JobParams{}, []Option{{Year: 2022, ReportType: "Registration", Order: "asc"}})

	batch, state, err := reader.Fetch(context.Background(), models.CursorState{})
	require.NoError(t, err)
	require.Len(t, batch.Records, 1)
	assert.Equal(t, "f-1", batch.Records[0].ID)
	assert.True(t, state.Exhausted)
	assert.Equal(t, 2, calls)
}

func TestReader_ScopesWalkToRegistrant(t *testing.T) {
	handler := &filingsHandler{perCombination: 0, pageSize: 100}
	server := httptest.NewServer(handler)
	defer server.Close()

	params := models.JobParams{Term: "Acme Advocacy", EntityID: "R-123"}
	reader := newTestReader(t, Config{BaseURL: server.URL, PageSize: 100}, params, []Option{{Year: 2022, ReportType: "Registration", Order: "asc"}})

	_, _, err := reader.Fetch(context.Background(), models.CursorState{})
	require.NoError(t, err)
	require.Len(t, handler.requests, 1)
	assert.Contains(t, handler.requests[0], "registrant_name=Acme+Advocacy")
	assert.Contains(t, handler.requests[0], "registrant_id=R-123")
}

func TestReader_MissingUUIDFallsBackToPageURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": [{"filing_year": 2022}]}`))
	}))
	defer server.Close()

	reader := newTestReader(t, Config{BaseURL: server.URL, PageSize: 100}, models.JobParams{}, []Option{{Year: 2022, ReportType: "Registration", Order: "asc"}})
	batch, _, err := reader.Fetch(context.Background(), models.CursorState{})
	require.NoError(t, err)
	require.Len(t, batch.Records, 1)
	assert.Contains(t, batch.Records[0].ID, server.URL)
	assert.Contains(t, batch.Records[0].ID, "filing_year=2022")
}
