// Package ads loads political ad archive records into the graph. Each ad
// becomes an Ad node connected to the Day it was created, every Day it was
// delivered, its creative Message, the Page that published it, the Buyer
// that paid for it, and the States it targeted.
package ads

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/bramble/pkg/driver"
	"github.com/Ramsey-B/bramble/pkg/fingerprint"
	"github.com/Ramsey-B/bramble/pkg/graph"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/normalize"
	"github.com/Ramsey-B/bramble/pkg/source"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// bounds is the archive's lower/upper range shape for impressions, spend,
// and potential reach.
type bounds struct {
	LowerBound string `json:"lower_bound"`
	UpperBound string `json:"upper_bound"`
}

// adDocument is the upstream ad archive record shape.
type adDocument struct {
	ID                  string   `json:"id"`
	CreationTime        string   `json:"ad_creation_time"`
	DeliveryStartTime   string   `json:"ad_delivery_start_time"`
	DeliveryStopTime    string   `json:"ad_delivery_stop_time"`
	CreativeBody        string   `json:"ad_creative_body"`
	CreativeLinkCaption string   `json:"ad_creative_link_caption"`
	PageID              string   `json:"page_id"`
	PageName            string   `json:"page_name"`
	FundingEntity       string   `json:"funding_entity"`
	Currency            string   `json:"currency"`
	Impressions         *bounds  `json:"impressions"`
	Spend               *bounds  `json:"spend"`
	PotentialReach      *bounds  `json:"potential_reach"`
	Regions             []string `json:"regions"`
}

// Normalizer turns ad archive records into graph plan entries.
type Normalizer struct {
	logger ectologger.Logger
}

// NewNormalizer creates an ads normalizer.
func NewNormalizer(logger ectologger.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize builds the merge plan for one batch. Records with an unparseable
// creation or delivery start time are skipped, not fatal.
func (n *Normalizer) Normalize(ctx context.Context, batch source.Batch, _ models.CursorState) (driver.NormalizedBatch, error) {
	_, span := tracing.StartSpan(ctx, "ads.Normalizer.Normalize")
	defer span.End()

	var out driver.NormalizedBatch
	for _, record := range batch.Records {
		var doc adDocument
		if err := json.Unmarshal(record.Data, &doc); err != nil {
			out.Skipped = append(out.Skipped, driver.SkippedRecord{
				ID:     record.ID,
				Reason: fmt.Sprintf("invalid ad document: %v", err),
			})
			continue
		}
		if doc.ID == "" {
			out.Skipped = append(out.Skipped, driver.SkippedRecord{ID: record.ID, Reason: "ad document missing id"})
			continue
		}

		if err := n.addAd(&out.Plan, doc); err != nil {
			out.Skipped = append(out.Skipped, driver.SkippedRecord{ID: record.ID, Reason: err.Error()})
			continue
		}
		out.Completed = append(out.Completed, record.ID)
	}

	return out, nil
}

func (n *Normalizer) addAd(plan *graph.Plan, doc adDocument) error {
	creationTime, err := normalize.ParseDate(doc.CreationTime)
	if err != nil {
		return fmt.Errorf("unparseable creation time: %w", err)
	}
	deliveryStart, err := normalize.ParseDate(doc.DeliveryStartTime)
	if err != nil {
		return fmt.Errorf("unparseable delivery start time: %w", err)
	}
	// Day keys and stored timestamps must agree on the calendar date, so
	// everything downstream works on UTC.
	creationTime = creationTime.UTC()
	deliveryStart = deliveryStart.UTC()

	adRef := graph.NodeRef{Label: "Ad", Key: map[string]any{"id": doc.ID}}
	props := map[string]any{
		"creation_time":       creationTime.Format(time.RFC3339),
		"delivery_start_time": deliveryStart.Format(time.RFC3339),
	}
	if doc.CreativeLinkCaption != "" {
		props["creative_link_caption"] = doc.CreativeLinkCaption
	}
	if doc.Impressions != nil {
		props["impressions_lower_bound"] = doc.Impressions.LowerBound
		props["impressions_upper_bound"] = doc.Impressions.UpperBound
	}
	// Spend ranges are only comparable in a single currency.
	if doc.Spend != nil && doc.Currency == "USD" {
		props["spend_lower_bound"] = doc.Spend.LowerBound
		props["spend_upper_bound"] = doc.Spend.UpperBound
	}
	if doc.PotentialReach != nil {
		props["potential_reach_lower_bound"] = doc.PotentialReach.LowerBound
		props["potential_reach_upper_bound"] = doc.PotentialReach.UpperBound
	}

	var deliveryStop time.Time
	hasStop := doc.DeliveryStopTime != ""
	if hasStop {
		deliveryStop, err = normalize.ParseDate(doc.DeliveryStopTime)
		if err != nil {
			return fmt.Errorf("unparseable delivery stop time: %w", err)
		}
		deliveryStop = deliveryStop.UTC()
		props["delivery_stop_time"] = deliveryStop.Format(time.RFC3339)
	}

	plan.AddNode(graph.Node{Label: "Ad", Key: adRef.Key, Props: props})

	plan.AddEdge(graph.Edge{
		Type: "CREATED_ON",
		From: adRef,
		To:   graph.NodeRef{Label: "Day", Key: dayKey(creationTime)},
	})

	if hasStop {
		for _, day := range normalize.DaysBetween(deliveryStart, deliveryStop) {
			plan.AddEdge(graph.Edge{
				Type: "DELIVERED_ON",
				From: adRef,
				To:   graph.NodeRef{Label: "Day", Key: dayKey(day)},
			})
		}
	}

	if doc.CreativeBody != "" {
		plan.AddEdge(graph.Edge{
			Type: "CONTAINS",
			From: adRef,
			To:   graph.NodeRef{Label: "Message", Key: map[string]any{"sha512": fingerprint.Content(doc.CreativeBody)}},
		})
	}

	var buyerName string
	if doc.FundingEntity != "" {
		buyerName = normalize.Key(doc.FundingEntity)
		plan.AddEdge(graph.Edge{
			Type: "PAID_BY",
			From: adRef,
			To:   graph.NodeRef{Label: "Buyer", Key: map[string]any{"name": buyerName}},
		})
	}

	if doc.PageID != "" {
		pageRef := graph.NodeRef{Label: "Page", Key: map[string]any{"id": doc.PageID}}
		if doc.PageName != "" {
			plan.AddNode(graph.Node{
				Label: "Page",
				Key:   pageRef.Key,
				Props: map[string]any{"name": normalize.Key(doc.PageName)},
			})
		}
		plan.AddEdge(graph.Edge{Type: "PUBLISHED_BY", From: adRef, To: pageRef})
		if buyerName != "" {
			plan.AddEdge(graph.Edge{
				Type: "ASSOCIATED_WITH",
				From: pageRef,
				To:   graph.NodeRef{Label: "Buyer", Key: map[string]any{"name": buyerName}},
			})
		}
	}

	for _, region := range doc.Regions {
		region = strings.ToUpper(strings.TrimSpace(region))
		if region == "" {
			continue
		}
		plan.AddEdge(graph.Edge{
			Type: "TARGETS",
			From: adRef,
			To:   graph.NodeRef{Label: "State", Key: map[string]any{"name": region}},
		})
	}

	return nil
}

func dayKey(t time.Time) map[string]any {
	return map[string]any{
		"year":  t.Year(),
		"month": int(t.Month()),
		"day":   t.Day(),
	}
}
