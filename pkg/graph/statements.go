package graph

import (
	"fmt"
	"strings"
)

// Statement is a rendered Cypher statement plus its UNWIND batch.
type Statement struct {
	Cypher string
	Batch  []map[string]any
}

// nodeStatement renders one statement for a group of nodes sharing label, key
// fields, and prop fields.
//
//	UNWIND $batch AS i
//	MERGE (n:Donor {name: i.key.name, zip_code: i.key.zip_code})
//	SET n.state = i.props.state
func nodeStatement(group []Node) Statement {
	first := group[0]

	var b strings.Builder
	b.WriteString("UNWIND $batch AS i ")
	b.WriteString(fmt.Sprintf("MERGE (n:%s {%s})", sanitizeLabel(first.Label), keyPattern(first.Key, "i.key")))

	if len(first.Props) > 0 {
		assignments := make([]string, 0, len(first.Props))
		for _, p := range sortedKeys(first.Props) {
			assignments = append(assignments, fmt.Sprintf("n.%s = i.props.%s", p, p))
		}
		b.WriteString(" SET " + strings.Join(assignments, ", "))
	}

	batch := make([]map[string]any, len(group))
	for i, n := range group {
		batch[i] = map[string]any{"key": n.Key, "props": n.Props}
	}

	return Statement{Cypher: b.String(), Batch: batch}
}

// edgeStatement renders one statement for a group of edges sharing type,
// endpoint shapes, key fields, and prop fields. Endpoints are merged so the
// edge can never dangle; uuid is assigned only when the edge is created.
func edgeStatement(group []Edge) Statement {
	first := group[0]

	var b strings.Builder
	b.WriteString("UNWIND $batch AS i ")
	b.WriteString(fmt.Sprintf("MERGE (a:%s {%s}) ", sanitizeLabel(first.From.Label), keyPattern(first.From.Key, "i.from")))
	b.WriteString(fmt.Sprintf("MERGE (b:%s {%s}) ", sanitizeLabel(first.To.Label), keyPattern(first.To.Key, "i.to")))

	if len(first.Key) > 0 {
		b.WriteString(fmt.Sprintf("MERGE (a)-[r:%s {%s}]->(b)", sanitizeLabel(first.Type), keyPattern(first.Key, "i.key")))
	} else {
		b.WriteString(fmt.Sprintf("MERGE (a)-[r:%s]->(b)", sanitizeLabel(first.Type)))
	}

	b.WriteString(" ON CREATE SET r.uuid = i.uuid")

	if len(first.Props) > 0 {
		assignments := make([]string, 0, len(first.Props))
		for _, p := range sortedKeys(first.Props) {
			assignments = append(assignments, fmt.Sprintf("r.%s = i.props.%s", p, p))
		}
		b.WriteString(" SET " + strings.Join(assignments, ", "))
	}

	batch := make([]map[string]any, len(group))
	for i, e := range group {
		batch[i] = map[string]any{
			"from":  e.From.Key,
			"to":    e.To.Key,
			"key":   e.Key,
			"props": e.Props,
		}
	}

	return Statement{Cypher: b.String(), Batch: batch}
}

// replacementStatement renders the delete half of an amendment. MATCH drops
// rows with no prior node, so a missing record is a no-op.
//
//	UNWIND $batch AS i
//	MATCH (old:Expenditure {file_num: i.match.file_num, tran_id: i.match.tran_id})
//	DETACH DELETE old
func replacementStatement(group []Replacement) Statement {
	first := group[0]

	cypher := fmt.Sprintf(
		"UNWIND $batch AS i MATCH (old:%s {%s}) DETACH DELETE old",
		sanitizeLabel(first.Label), keyPattern(first.Match, "i.match"),
	)

	batch := make([]map[string]any, len(group))
	for i, r := range group {
		batch[i] = map[string]any{"match": r.Match}
	}

	return Statement{Cypher: cypher, Batch: batch}
}

// keyPattern renders the property-match part of a MERGE/MATCH pattern, with
// fields in sorted order.
func keyPattern(key map[string]any, prefix string) string {
	fields := make([]string, 0, len(key))
	for _, k := range sortedKeys(key) {
		fields = append(fields, fmt.Sprintf("%s: %s.%s", k, prefix, k))
	}
	return strings.Join(fields, ", ")
}

// sanitizeLabel ensures a label or relationship type is safe to interpolate
// into Cypher. Only alphanumerics and underscore survive.
func sanitizeLabel(label string) string {
	var b strings.Builder
	for _, c := range label {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteRune(c)
		}
	}
	if b.Len() == 0 {
		return "Record"
	}
	return b.String()
}
