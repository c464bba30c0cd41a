package ads

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/bramble/pkg/fingerprint"
	"github.com/Ramsey-B/bramble/pkg/graph"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/source"
)

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func adRecord(t *testing.T, id string, doc map[string]any) source.RawRecord {
	t.Helper()
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return source.RawRecord{ID: id, Data: data}
}

func fullAd() map[string]any {
	return map[string]any{
		"id":                       "23841234",
		"ad_creation_time":         "2020-09-01T14:30:00+0000",
		"ad_delivery_start_time":   "2020-09-02",
		"ad_delivery_stop_time":    "2020-09-04",
		"ad_creative_body":         "Vote early this November.",
		"ad_creative_link_caption": "example.org",
		"page_id":                  "555001",
		"page_name":                "  Example   Campaign  ",
		"funding_entity":           "Example PAC, Inc.",
		"currency":                 "USD",
		"impressions":              map[string]string{"lower_bound": "1000", "upper_bound": "4999"},
		"spend":                    map[string]string{"lower_bound": "100", "upper_bound": "499"},
		"potential_reach":          map[string]string{"lower_bound": "10000", "upper_bound": "49999"},
		"regions":                  []string{"California", "texas"},
	}
}

func edgesByType(plan graph.Plan) map[string][]graph.Edge {
	out := make(map[string][]graph.Edge)
	for _, e := range plan.Edges {
		out[e.Type] = append(out[e.Type], e)
	}
	return out
}

func TestNormalizer_FullAd(t *testing.T) {
	batch := source.Batch{Records: []source.RawRecord{adRecord(t, "staged-1", fullAd())}}

	out, err := NewNormalizer(noopLogger()).Normalize(context.Background(), batch, models.CursorState{})
	require.NoError(t, err)
	require.Equal(t, []string{"staged-1"}, out.Completed)
	assert.Empty(t, out.Skipped)

	require.Len(t, out.Plan.Nodes, 2) // Ad and Page carry props, the rest are key-only
	ad := out.Plan.Nodes[0]
	assert.Equal(t, "Ad", ad.Label)
	assert.Equal(t, map[string]any{"id": "23841234"}, ad.Key)
	assert.Equal(t, "2020-09-01T14:30:00Z", ad.Props["creation_time"])
	assert.Equal(t, "2020-09-04T00:00:00Z", ad.Props["delivery_stop_time"])
	assert.Equal(t, "1000", ad.Props["impressions_lower_bound"])
	assert.Equal(t, "499", ad.Props["spend_upper_bound"])

	page := out.Plan.Nodes[1]
	assert.Equal(t, "Page", page.Label)
	assert.Equal(t, map[string]any{"name": "EXAMPLE CAMPAIGN"}, page.Props)

	edges := edgesByType(out.Plan)
	require.Len(t, edges["CREATED_ON"], 1)
	assert.Equal(t, map[string]any{"year": 2020, "month": 9, "day": 1}, edges["CREATED_ON"][0].To.Key)

	// Sept 2 through Sept 4 inclusive.
	require.Len(t, edges["DELIVERED_ON"], 3)
	assert.Equal(t, map[string]any{"year": 2020, "month": 9, "day": 2}, edges["DELIVERED_ON"][0].To.Key)
	assert.Equal(t, map[string]any{"year": 2020, "month": 9, "day": 4}, edges["DELIVERED_ON"][2].To.Key)

	require.Len(t, edges["CONTAINS"], 1)
	assert.Equal(t, fingerprint.Content("Vote early this November."), edges["CONTAINS"][0].To.Key["sha512"])

	require.Len(t, edges["PAID_BY"], 1)
	assert.Equal(t, "EXAMPLE PAC INC", edges["PAID_BY"][0].To.Key["name"])

	require.Len(t, edges["PUBLISHED_BY"], 1)
	require.Len(t, edges["ASSOCIATED_WITH"], 1)
	assert.Equal(t, "Page", edges["ASSOCIATED_WITH"][0].From.Label)
	assert.Equal(t, "Buyer", edges["ASSOCIATED_WITH"][0].To.Label)

	require.Len(t, edges["TARGETS"], 2)
	assert.Equal(t, "CALIFORNIA", edges["TARGETS"][0].To.Key["name"])
	assert.Equal(t, "TEXAS", edges["TARGETS"][1].To.Key["name"])
}

func TestNormalizer_MinimalAd(t *testing.T) {
	batch := source.Batch{Records: []source.RawRecord{adRecord(t, "staged-2", map[string]any{
		"id":                     "99",
		"ad_creation_time":       "2021-01-15",
		"ad_delivery_start_time": "2021-01-16",
	})}}

	out, err := NewNormalizer(noopLogger()).Normalize(context.Background(), batch, models.CursorState{})
	require.NoError(t, err)
	require.Equal(t, []string{"staged-2"}, out.Completed)

	edges := edgesByType(out.Plan)
	assert.Len(t, edges["CREATED_ON"], 1)
	// No stop time means no delivery day expansion.
	assert.Empty(t, edges["DELIVERED_ON"])
	assert.Empty(t, edges["CONTAINS"])
	assert.Empty(t, edges["PUBLISHED_BY"])
	assert.Empty(t, edges["PAID_BY"])
}

func TestNormalizer_NonUSDSpendDropped(t *testing.T) {
	doc := fullAd()
	doc["currency"] = "GBP"
	batch := source.Batch{Records: []source.RawRecord{adRecord(t, "staged-3", doc)}}

	out, err := NewNormalizer(noopLogger()).Normalize(context.Background(), batch, models.CursorState{})
	require.NoError(t, err)

	ad := out.Plan.Nodes[0]
	assert.NotContains(t, ad.Props, "spend_lower_bound")
	assert.Contains(t, ad.Props, "impressions_lower_bound")
}

func TestNormalizer_DayEdgesUseUTCDates(t *testing.T) {
	// Parsed in a -0700 zone these are still Sept 2 through Sept 4 in UTC,
	// and the Day edges must agree with the stored UTC timestamps.
	doc := map[string]any{
		"id":                     "23841234",
		"ad_creation_time":       "2020-09-01T22:30:00-0700",
		"ad_delivery_start_time": "2020-09-01T20:00:00-0700",
		"ad_delivery_stop_time":  "2020-09-03T20:00:00-0700",
		"page_id":                "555001",
	}
	batch := source.Batch{Records: []source.RawRecord{adRecord(t, "staged-1", doc)}}

	out, err := NewNormalizer(noopLogger()).Normalize(context.Background(), batch, models.CursorState{})
	require.NoError(t, err)
	require.Empty(t, out.Skipped)

	ad := out.Plan.Nodes[0]
	assert.Equal(t, "2020-09-02T05:30:00Z", ad.Props["creation_time"])

	edges := edgesByType(out.Plan)
	require.Len(t, edges["CREATED_ON"], 1)
	assert.Equal(t, map[string]any{"year": 2020, "month": 9, "day": 2}, edges["CREATED_ON"][0].To.Key)

	require.Len(t, edges["DELIVERED_ON"], 3)
	assert.Equal(t, map[string]any{"year": 2020, "month": 9, "day": 2}, edges["DELIVERED_ON"][0].To.Key)
	assert.Equal(t, map[string]any{"year": 2020, "month": 9, "day": 4}, edges["DELIVERED_ON"][2].To.Key)
}

func TestNormalizer_SkipsBadRecords(t *testing.T) {
	tests := []struct {
		name   string
		record source.RawRecord
		reason string
	}{
		{
			name:   "invalid json",
			record: source.RawRecord{ID: "bad-json", Data: json.RawMessage(`{nope`)},
			reason: "invalid ad document",
		},
		{
			name: "missing id",
			record: source.RawRecord{ID: "no-id", Data: json.RawMessage(
				`{"ad_creation_time": "2021-01-15", "ad_delivery_start_time": "2021-01-16"}`)},
			reason: "missing id",
		},
		{
			name: "unparseable creation time",
			record: source.RawRecord{ID: "bad-date", Data: json.RawMessage(
				`{"id": "1", "ad_creation_time": "sometime", "ad_delivery_start_time": "2021-01-16"}`)},
			reason: "unparseable creation time",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			good := adRecord(t, "staged-good", fullAd())
			batch := source.Batch{Records: []source.RawRecord{tt.record, good}}

			out, err := NewNormalizer(noopLogger()).Normalize(context.Background(), batch, models.CursorState{})
			require.NoError(t, err)

			// The bad record is skipped, the good one still completes.
			require.Len(t, out.Skipped, 1)
			assert.Equal(t, tt.record.ID, out.Skipped[0].ID)
			assert.Contains(t, out.Skipped[0].Reason, tt.reason)
			assert.Equal(t, []string{"staged-good"}, out.Completed)
		})
	}
}

func TestNormalizer_SameCreativeSharesMessage(t *testing.T) {
	first := fullAd()
	second := fullAd()
	second["id"] = "23849999"

	batch := source.Batch{Records: []source.RawRecord{
		adRecord(t, "staged-a", first),
		adRecord(t, "staged-b", second),
	}}

	out, err := NewNormalizer(noopLogger()).Normalize(context.Background(), batch, models.CursorState{})
	require.NoError(t, err)

	edges := edgesByType(out.Plan)
	require.Len(t, edges["CONTAINS"], 2)
	assert.Equal(t, edges["CONTAINS"][0].To.Key, edges["CONTAINS"][1].To.Key,
		"ads with identical creatives must point at one Message node")
}
