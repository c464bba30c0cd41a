package models

import (
	"encoding/json"
	"time"
)

// StagedRecord is a raw source record waiting to be loaded into the graph.
// Field order matches schema: id, source, record_type, external_id, ...
type StagedRecord struct {
	ID          string          `json:"id" db:"id"`
	Source      string          `json:"source" db:"source"`           // dataset: ads, fec, lobbying
	RecordType  string          `json:"record_type" db:"record_type"` // section discriminator within the dataset
	ExternalID  string          `json:"external_id" db:"external_id"` // upstream identifier, unique per (source, record_type)
	Data        json.RawMessage `json:"data" db:"data"`
	Fingerprint string          `json:"fingerprint" db:"fingerprint"`
	GraphedAt   *time.Time      `json:"graphed_at,omitempty" db:"graphed_at"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// IsGraphed reports whether the record has already been loaded.
func (r *StagedRecord) IsGraphed() bool {
	return r.GraphedAt != nil
}

// CreateStagedRecordRequest is the request for upserting a staged record.
// Upserts are keyed on (source, record_type, external_id); a changed payload
// resets graphed_at so the record is re-loaded, an identical payload is a no-op.
type CreateStagedRecordRequest struct {
	Source     string          `json:"source" validate:"required"`
	RecordType string          `json:"record_type" validate:"required"`
	ExternalID string          `json:"external_id" validate:"required"`
	Data       json.RawMessage `json:"data" validate:"required"`
}

// StagedRecordListResponse is the response for listing staged records.
type StagedRecordListResponse struct {
	Items      []StagedRecord `json:"items"`
	TotalCount int            `json:"total_count"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
}
