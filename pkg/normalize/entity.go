package normalize

import "strings"

// ContributorKind is the classification of a transaction's source side.
type ContributorKind string

const (
	ContributorCommittee    ContributorKind = "committee"
	ContributorCandidate    ContributorKind = "candidate"
	ContributorIndividual   ContributorKind = "individual"
	ContributorOrganization ContributorKind = "organization"
)

// entityTypeKinds maps FEC entity_tp codes to contributor kinds. The four
// classification words are accepted directly for sources that pre-classify.
var entityTypeKinds = map[string]ContributorKind{
	"CAN": ContributorCandidate,
	"CCM": ContributorCommittee,
	"COM": ContributorCommittee,
	"PAC": ContributorCommittee,
	"PTY": ContributorCommittee,
	"IND": ContributorIndividual,
	"ORG": ContributorOrganization,

	"COMMITTEE":    ContributorCommittee,
	"CANDIDATE":    ContributorCandidate,
	"INDIVIDUAL":   ContributorIndividual,
	"ORGANIZATION": ContributorOrganization,
}

// ClassifyContributor resolves an entity-type discriminator to a contributor
// kind. Unknown values return an UnknownEntityTypeError so the record can be
// reported rather than silently skipped.
func ClassifyContributor(entityType string) (ContributorKind, error) {
	kind, ok := entityTypeKinds[strings.ToUpper(strings.TrimSpace(entityType))]
	if !ok {
		return "", &UnknownEntityTypeError{EntityType: entityType}
	}
	return kind, nil
}
