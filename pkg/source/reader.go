// Package source reads raw records from staging stores and external APIs.
package source

import (
	"context"
	"encoding/json"

	"github.com/Ramsey-B/bramble/pkg/models"
)

// RawRecord is one source record ready for normalization.
type RawRecord struct {
	ID   string
	Data json.RawMessage
}

// Batch is one fetch's worth of records.
type Batch struct {
	Records []RawRecord
}

func (b Batch) Len() int {
	return len(b.Records)
}

// Reader fetches the next batch for a cursor position. Exhaustion is an empty
// batch with Exhausted set on the returned state; the input state is never
// mutated. A failed fetch returns the input state unchanged so the caller
// does not advance past unread records.
type Reader interface {
	Fetch(ctx context.Context, state models.CursorState) (Batch, models.CursorState, error)
}
