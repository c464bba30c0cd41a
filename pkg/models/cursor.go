package models

import "time"

// CursorState is the persisted resume point for one job. It is stored as a
// single JSON document per job key and survives across invocations.
type CursorState struct {
	Job       string `json:"job"`
	Partition string `json:"partition,omitempty"`

	// Resume token. Section is the loader's phase index (e.g. candidates,
	// committees, linkages, contributions, expenditures), Offset the position
	// within it. OptionIndex is used by fetch-side jobs that walk a fixed
	// list of query options instead of sections.
	Section     int    `json:"section"`
	Offset      int    `json:"offset"`
	OptionIndex int    `json:"option_index"`
	LastID      string `json:"last_id,omitempty"`

	Exhausted bool `json:"exhausted"`

	Counters     CursorCounters `json:"counters"`
	SoftFailures []SoftFailure  `json:"soft_failures,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// CursorCounters are diagnostic totals accumulated across invocations.
type CursorCounters struct {
	Fetched int64 `json:"fetched"`
	Merged  int64 `json:"merged"`
	Marked  int64 `json:"marked"`
	Skipped int64 `json:"skipped"`
}

// SoftFailure records a record or URL that could not be processed but should
// not fail the invocation. Attempts is bumped each time it is seen again.
type SoftFailure struct {
	ID          string    `json:"id"`
	Reason      string    `json:"reason"`
	Attempts    int       `json:"attempts"`
	LastAttempt time.Time `json:"last_attempt"`
}

// NewCursorState returns the default state a job starts from when no cursor
// document exists yet.
func NewCursorState(job, partition string) CursorState {
	return CursorState{
		Job:       job,
		Partition: partition,
	}
}

// RecordSoftFailure adds or bumps the soft-failure entry for id.
func (s *CursorState) RecordSoftFailure(id, reason string, now time.Time) {
	for i := range s.SoftFailures {
		if s.SoftFailures[i].ID == id {
			s.SoftFailures[i].Attempts++
			s.SoftFailures[i].Reason = reason
			s.SoftFailures[i].LastAttempt = now
			return
		}
	}
	s.SoftFailures = append(s.SoftFailures, SoftFailure{
		ID:          id,
		Reason:      reason,
		Attempts:    1,
		LastAttempt: now,
	})
}

// RetireSoftFailures drops entries that have reached maxAttempts and returns
// the retired entries so the caller can log them.
func (s *CursorState) RetireSoftFailures(maxAttempts int) []SoftFailure {
	if maxAttempts <= 0 {
		return nil
	}
	var kept, retired []SoftFailure
	for _, f := range s.SoftFailures {
		if f.Attempts >= maxAttempts {
			retired = append(retired, f)
			continue
		}
		kept = append(kept, f)
	}
	s.SoftFailures = kept
	return retired
}
