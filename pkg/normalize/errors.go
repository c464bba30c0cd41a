package normalize

import "fmt"

// UnparseableDateError is returned when a date string matches none of the
// known upstream layouts. Callers treat it as a soft failure on the record,
// not an invocation failure.
type UnparseableDateError struct {
	Value string
}

func (e *UnparseableDateError) Error() string {
	return fmt.Sprintf("unparseable date %q", e.Value)
}

// UnknownEntityTypeError is returned when a record's entity-type discriminator
// is not one of the known contributor kinds.
type UnknownEntityTypeError struct {
	EntityType string
}

func (e *UnknownEntityTypeError) Error() string {
	return fmt.Sprintf("unknown entity type %q", e.EntityType)
}
