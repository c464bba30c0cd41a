// Package contributions loads FEC-style campaign finance records into the
// graph. One job walks the source in sections: candidates, committees,
// linkages, contributions, and independent expenditures. Each section drains
// before the next begins, so contribution edges always land on candidate and
// committee nodes that already exist.
package contributions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/bramble/pkg/driver"
	"github.com/Ramsey-B/bramble/pkg/graph"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/normalize"
	"github.com/Ramsey-B/bramble/pkg/source"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// Section order within the fec source. Indexes match CursorState.Section.
var Sections = []string{
	SectionCandidates,
	SectionCommittees,
	SectionLinkages,
	SectionContributions,
	SectionExpenditures,
}

const (
	SectionCandidates    = "candidate"
	SectionCommittees    = "committee"
	SectionLinkages      = "linkage"
	SectionContributions = "contribution"
	SectionExpenditures  = "expenditure"
)

type candidateDoc struct {
	CandID             string `json:"cand_id"`
	CandName           string `json:"cand_name"`
	CandPtyAffiliation string `json:"cand_pty_affiliation"`
	CandElectionYr     int    `json:"cand_election_yr"`
	CandOfficeSt       string `json:"cand_office_st"`
	CandOffice         string `json:"cand_office"`
	CandOfficeDistrict string `json:"cand_office_district"`
	CandICI            string `json:"cand_ici"`
}

type committeeDoc struct {
	CmteID             string `json:"cmte_id"`
	CmteNm             string `json:"cmte_nm"`
	CmteDsgn           string `json:"cmte_dsgn"`
	CmteTp             string `json:"cmte_tp"`
	CmtePtyAffiliation string `json:"cmte_pty_affiliation"`
	OrgTp              string `json:"org_tp"`
	ConnectedOrgNm     string `json:"connected_org_nm"`
}

type linkageDoc struct {
	CmteID         string `json:"cmte_id"`
	CandID         string `json:"cand_id"`
	CandElectionYr int    `json:"cand_election_yr"`
	LinkageID      int64  `json:"linkage_id"`
}

type contributionDoc struct {
	EntityTp       string  `json:"entity_tp"`
	Name           string  `json:"name"`
	State          string  `json:"state"`
	ZipCode        string  `json:"zip_code"`
	Employer       string  `json:"employer"`
	Occupation     string  `json:"occupation"`
	Source         string  `json:"source"`
	Target         string  `json:"target"`
	TransactionDt  string  `json:"transaction_dt"`
	TransactionAmt float64 `json:"transaction_amt"`
	AmndtInd       string  `json:"amndt_ind"`
	RptTp          string  `json:"rpt_tp"`
	TransactionPgi string  `json:"transaction_pgi"`
	TransactionTp  string  `json:"transaction_tp"`
	ImageNum       string  `json:"image_num"`
	FileNum        int64   `json:"file_num"`
	TranID         string  `json:"tran_id"`
	SubID          string  `json:"sub_id"`
}

type expenditureDoc struct {
	CandID      string  `json:"cand_id"`
	CmteID      string  `json:"cmte_id"`
	ExpAmt      float64 `json:"exp_amt"`
	ExpDt       string  `json:"exp_dt"`
	SupOpp      string  `json:"sup_opp"`
	Purpose     string  `json:"purpose"`
	Payee       string  `json:"payee"`
	AmndtInd    string  `json:"amndt_ind"`
	ImageNum    string  `json:"image_num"`
	TranID      string  `json:"tran_id"`
	FileNum     int64   `json:"file_num"`
	PrevFileNum *int64  `json:"prev_file_num"`
}

// Normalizer dispatches on the cursor section to build plan entries for each
// record type.
type Normalizer struct {
	logger ectologger.Logger
}

// NewNormalizer creates a contributions normalizer.
func NewNormalizer(logger ectologger.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize builds the merge plan for one batch of the current section.
func (n *Normalizer) Normalize(ctx context.Context, batch source.Batch, state models.CursorState) (driver.NormalizedBatch, error) {
	_, span := tracing.StartSpan(ctx, "contributions.Normalizer.Normalize")
	defer span.End()

	if state.Section < 0 || state.Section >= len(Sections) {
		return driver.NormalizedBatch{}, fmt.Errorf("unknown section index %d", state.Section)
	}
	section := Sections[state.Section]

	var out driver.NormalizedBatch
	for _, record := range batch.Records {
		var err error
		switch section {
		case SectionCandidates:
			err = addCandidate(&out.Plan, record.Data)
		case SectionCommittees:
			err = addCommittee(&out.Plan, record.Data)
		case SectionLinkages:
			err = addLinkage(&out.Plan, record.Data)
		case SectionContributions:
			err = addContribution(&out.Plan, record.Data)
		case SectionExpenditures:
			err = addExpenditure(&out.Plan, record.Data)
		}
		if err != nil {
			out.Skipped = append(out.Skipped, driver.SkippedRecord{ID: record.ID, Reason: err.Error()})
			continue
		}
		out.Completed = append(out.Completed, record.ID)
	}

	return out, nil
}

func addCandidate(plan *graph.Plan, data json.RawMessage) error {
	var doc candidateDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid candidate document: %w", err)
	}
	if doc.CandID == "" {
		return fmt.Errorf("candidate document missing cand_id")
	}

	candRef := graph.NodeRef{Label: "Candidate", Key: map[string]any{"cand_id": doc.CandID}}
	plan.AddNode(graph.Node{
		Label: "Candidate",
		Key:   candRef.Key,
		Props: map[string]any{
			"cand_name":            doc.CandName,
			"cand_pty_affiliation": doc.CandPtyAffiliation,
			"cand_election_yr":     doc.CandElectionYr,
			"cand_office_st":       doc.CandOfficeSt,
			"cand_office":          doc.CandOffice,
			"cand_office_district": doc.CandOfficeDistrict,
			"cand_ici":             doc.CandICI,
		},
	})

	if doc.CandOfficeSt != "" {
		stateRef := graph.NodeRef{Label: "State", Key: map[string]any{"abbreviation": doc.CandOfficeSt}}
		plan.AddEdge(graph.Edge{Type: "RUNNING_IN", From: candRef, To: stateRef})

		raceRef := graph.NodeRef{Label: "Race", Key: map[string]any{
			"type":            "federal",
			"election_yr":     doc.CandElectionYr,
			"office_st":       doc.CandOfficeSt,
			"office":          doc.CandOffice,
			"office_district": doc.CandOfficeDistrict,
		}}
		plan.AddEdge(graph.Edge{Type: "RUNNING_FOR", From: candRef, To: raceRef})
		plan.AddEdge(graph.Edge{Type: "ASSOCIATED_WITH", From: raceRef, To: stateRef})
	}

	if doc.CandPtyAffiliation != "" {
		plan.AddEdge(graph.Edge{
			Type: "ASSOCIATED_WITH",
			From: candRef,
			To:   graph.NodeRef{Label: "Party", Key: map[string]any{"abbreviation": doc.CandPtyAffiliation}},
		})
	}

	return nil
}

func addCommittee(plan *graph.Plan, data json.RawMessage) error {
	var doc committeeDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid committee document: %w", err)
	}
	if doc.CmteID == "" {
		return fmt.Errorf("committee document missing cmte_id")
	}

	cmteRef := graph.NodeRef{Label: "Committee", Key: map[string]any{"cmte_id": doc.CmteID}}
	plan.AddNode(graph.Node{
		Label: "Committee",
		Key:   cmteRef.Key,
		Props: map[string]any{
			"cmte_nm":              doc.CmteNm,
			"cmte_dsgn":            doc.CmteDsgn,
			"cmte_tp":              doc.CmteTp,
			"cmte_pty_affiliation": doc.CmtePtyAffiliation,
			"org_tp":               doc.OrgTp,
			"connected_org_nm":     doc.ConnectedOrgNm,
		},
	})

	if doc.CmtePtyAffiliation != "" {
		plan.AddEdge(graph.Edge{
			Type: "ASSOCIATED_WITH",
			From: cmteRef,
			To:   graph.NodeRef{Label: "Party", Key: map[string]any{"abbreviation": doc.CmtePtyAffiliation}},
		})
	}
	if org := normalize.Key(doc.ConnectedOrgNm); org != "" {
		plan.AddEdge(graph.Edge{
			Type: "ASSOCIATED_WITH",
			From: cmteRef,
			To:   graph.NodeRef{Label: "Employer", Key: map[string]any{"name": org}},
		})
	}

	return nil
}

func addLinkage(plan *graph.Plan, data json.RawMessage) error {
	var doc linkageDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid linkage document: %w", err)
	}
	if doc.CmteID == "" || doc.CandID == "" {
		return fmt.Errorf("linkage document missing cmte_id or cand_id")
	}

	// The linkage id discriminates parallel committee/candidate links, so a
	// committee linked across election cycles keeps one edge per linkage.
	plan.AddEdge(graph.Edge{
		Type:  "ASSOCIATED_WITH",
		From:  graph.NodeRef{Label: "Committee", Key: map[string]any{"cmte_id": doc.CmteID}},
		To:    graph.NodeRef{Label: "Candidate", Key: map[string]any{"cand_id": doc.CandID}},
		Key:   map[string]any{"subtype": "linkage", "linkage_id": doc.LinkageID},
		Props: map[string]any{"cand_election_yr": doc.CandElectionYr},
	})

	return nil
}

func addContribution(plan *graph.Plan, data json.RawMessage) error {
	var doc contributionDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid contribution document: %w", err)
	}
	if doc.SubID == "" {
		return fmt.Errorf("contribution document missing sub_id")
	}
	if doc.Target == "" {
		return fmt.Errorf("contribution document missing target committee")
	}

	kind, err := normalize.ClassifyContributor(doc.EntityTp)
	if err != nil {
		return err
	}

	transactionAt, err := contributionDate(doc.TransactionDt)
	if err != nil {
		return err
	}

	contribRef := graph.NodeRef{Label: "Contribution", Key: map[string]any{"sub_id": doc.SubID}}
	props := map[string]any{
		"transaction_amt": doc.TransactionAmt,
		"amndt_ind":       doc.AmndtInd,
		"rpt_tp":          doc.RptTp,
		"transaction_pgi": doc.TransactionPgi,
		"transaction_tp":  doc.TransactionTp,
		"image_num":       doc.ImageNum,
		"file_num":        doc.FileNum,
		"tran_id":         doc.TranID,
	}
	if transactionAt != nil {
		props["datetime"] = transactionAt.Format(time.RFC3339)
	}
	plan.AddNode(graph.Node{Label: "Contribution", Key: contribRef.Key, Props: props})

	targetRef := graph.NodeRef{Label: "Committee", Key: map[string]any{"cmte_id": doc.Target}}

	var fromRef graph.NodeRef
	switch kind {
	case normalize.ContributorCommittee:
		if doc.Source == "" {
			return fmt.Errorf("committee contribution missing source id")
		}
		fromRef = graph.NodeRef{Label: "Committee", Key: map[string]any{"cmte_id": doc.Source}}
	case normalize.ContributorCandidate:
		if doc.Source == "" {
			return fmt.Errorf("candidate contribution missing source id")
		}
		fromRef = graph.NodeRef{Label: "Candidate", Key: map[string]any{"cand_id": doc.Source}}
	default:
		fromRef = addDonor(plan, contribRef, doc, kind)
	}

	plan.AddEdge(graph.Edge{Type: "CONTRIBUTED_TO", From: fromRef, To: contribRef})
	plan.AddEdge(graph.Edge{Type: "CONTRIBUTED_TO", From: contribRef, To: targetRef})

	if transactionAt != nil {
		plan.AddEdge(graph.Edge{
			Type: "HAPPENED_ON",
			From: contribRef,
			To:   graph.NodeRef{Label: "Day", Key: dayKey(*transactionAt)},
		})
	}

	return nil
}

// addDonor merges the Donor node and its individual/organization side edges,
// returning the contribution source ref.
func addDonor(plan *graph.Plan, contribRef graph.NodeRef, doc contributionDoc, kind normalize.ContributorKind) graph.NodeRef {
	donorRef := graph.NodeRef{Label: "Donor", Key: map[string]any{
		"name":     normalize.Key(doc.Name),
		"zip_code": normalize.Zip(doc.ZipCode),
	}}

	props := map[string]any{
		"entity_tp": doc.EntityTp,
		"state":     doc.State,
	}

	if kind == normalize.ContributorIndividual {
		props["employer"] = doc.Employer
		props["occupation"] = doc.Occupation

		if employer := normalize.Key(doc.Employer); employer != "" {
			employerRef := graph.NodeRef{Label: "Employer", Key: map[string]any{"name": employer}}
			plan.AddEdge(graph.Edge{Type: "ASSOCIATED_WITH", From: contribRef, To: employerRef})
			plan.AddEdge(graph.Edge{Type: "ASSOCIATED_WITH", From: donorRef, To: employerRef})
		}
		if occupation := normalize.Key(doc.Occupation); occupation != "" {
			jobRef := graph.NodeRef{Label: "Job", Key: map[string]any{"name": occupation}}
			plan.AddEdge(graph.Edge{Type: "ASSOCIATED_WITH", From: contribRef, To: jobRef})
			plan.AddEdge(graph.Edge{Type: "ASSOCIATED_WITH", From: donorRef, To: jobRef})
		}
	}

	// Organization donors double as employers in their own right.
	if kind == normalize.ContributorOrganization {
		if org := normalize.Key(doc.Name); org != "" {
			plan.AddEdge(graph.Edge{
				Type: "ASSOCIATED_WITH",
				From: donorRef,
				To:   graph.NodeRef{Label: "Employer", Key: map[string]any{"name": org}},
			})
		}
	}

	if doc.State != "" {
		plan.AddEdge(graph.Edge{
			Type: "LIVES_IN",
			From: donorRef,
			To:   graph.NodeRef{Label: "State", Key: map[string]any{"abbreviation": doc.State}},
		})
	}
	if zip := normalize.Zip(doc.ZipCode); zip != "" {
		plan.AddEdge(graph.Edge{
			Type: "LIVES_IN",
			From: donorRef,
			To:   graph.NodeRef{Label: "Zip", Key: map[string]any{"zip_code": zip}},
		})
	}

	plan.AddNode(graph.Node{Label: "Donor", Key: donorRef.Key, Props: props})
	return donorRef
}

func addExpenditure(plan *graph.Plan, data json.RawMessage) error {
	var doc expenditureDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid expenditure document: %w", err)
	}
	if doc.CandID == "" || doc.CmteID == "" {
		return fmt.Errorf("expenditure document missing cand_id or cmte_id")
	}
	if doc.TranID == "" {
		return fmt.Errorf("expenditure document missing tran_id")
	}

	expenditureAt, err := contributionDate(doc.ExpDt)
	if err != nil {
		return err
	}

	// An amendment deletes the superseded filing before the replacement
	// merges. Replacements run first in the plan, so both land in the same
	// write transaction. A missing prior filing is a no-op.
	if doc.PrevFileNum != nil {
		plan.AddReplacement(graph.Replacement{
			Label: "Expenditure",
			Match: map[string]any{
				"type":     "independent",
				"file_num": *doc.PrevFileNum,
				"tran_id":  doc.TranID,
			},
		})
	}

	expRef := graph.NodeRef{Label: "Expenditure", Key: map[string]any{
		"type":     "independent",
		"file_num": doc.FileNum,
		"tran_id":  doc.TranID,
	}}
	props := map[string]any{
		"exp_amt":   doc.ExpAmt,
		"sup_opp":   doc.SupOpp,
		"purpose":   normalize.Key(doc.Purpose),
		"amndt_ind": doc.AmndtInd,
		"image_num": doc.ImageNum,
	}
	if expenditureAt != nil {
		props["datetime"] = expenditureAt.Format(time.RFC3339)
	}
	plan.AddNode(graph.Node{Label: "Expenditure", Key: expRef.Key, Props: props})

	plan.AddEdge(graph.Edge{
		Type: "SPENT",
		From: graph.NodeRef{Label: "Committee", Key: map[string]any{"cmte_id": doc.CmteID}},
		To:   expRef,
	})
	plan.AddEdge(graph.Edge{
		Type: "IDENTIFIES",
		From: expRef,
		To:   graph.NodeRef{Label: "Candidate", Key: map[string]any{"cand_id": doc.CandID}},
	})

	if payee := normalize.Key(doc.Payee); payee != "" {
		plan.AddEdge(graph.Edge{
			Type: "PAID",
			From: expRef,
			To:   graph.NodeRef{Label: "Payee", Key: map[string]any{"name": payee}},
		})
	}

	if expenditureAt != nil {
		plan.AddEdge(graph.Edge{
			Type: "HAPPENED_ON",
			From: expRef,
			To:   graph.NodeRef{Label: "Day", Key: dayKey(*expenditureAt)},
		})
	}

	return nil
}

// contributionDate parses an optional transaction date. An empty value is
// fine (the record merges without a Day edge); a present but unparseable
// value fails the record.
func contributionDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := normalize.ParseDate(value)
	if err != nil {
		return nil, err
	}
	utc := parsed.UTC()
	return &utc, nil
}

func dayKey(t time.Time) map[string]any {
	return map[string]any{
		"year":  t.Year(),
		"month": int(t.Month()),
		"day":   t.Day(),
	}
}
