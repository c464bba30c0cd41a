// Package stagedrecord persists raw source records in the Postgres staging
// store until they are loaded into the graph.
package stagedrecord

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"github.com/Ramsey-B/bramble/pkg/database"
	"github.com/Ramsey-B/bramble/pkg/fingerprint"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

const columns = "id, source, record_type, external_id, data, fingerprint, graphed_at, created_at, updated_at"

// rowGetter is the slice of database.DB and database.Tx the upsert needs, so
// the same statement runs standalone or inside a transaction.
type rowGetter interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

// Repository handles staged record persistence.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new staged record repository.
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// UpsertBatch stages a whole batch in one transaction. A mid-batch failure
// rolls everything back, so a replayed fetch starts from a clean slate.
func (r *Repository) UpsertBatch(ctx context.Context, reqs []models.CreateStagedRecordRequest) error {
	ctx, span := tracing.StartSpan(ctx, "stagedrecord.Repository.UpsertBatch")
	defer span.End()

	if len(reqs) == 0 {
		return nil
	}

	txCtx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin staging transaction")
	}
	// Rollback with the outer context, so a commit further down wins.
	defer func() { _ = tx.Rollback(ctx) }()

	for _, req := range reqs {
		if _, err := r.upsert(txCtx, tx, req); err != nil {
			return err
		}
	}

	if err := tx.Commit(txCtx); err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit staged records")
	}
	return nil
}

// upsert creates or updates one record keyed on (source, record_type,
// external_id). An unchanged payload keeps graphed_at as is; a changed one
// clears it so the loader picks the record up again.
func (r *Repository) upsert(ctx context.Context, q rowGetter, req models.CreateStagedRecordRequest) (*models.StagedRecord, error) {
	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"source":      req.Source,
		"record_type": req.RecordType,
		"external_id": req.ExternalID,
	})

	fp, err := fingerprint.GenerateFromJSON(req.Data)
	if err != nil {
		log.WithError(err).Error("Failed to fingerprint record data")
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "invalid record data")
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO staged_records (
			id, source, record_type, external_id, data, fingerprint, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (source, record_type, external_id)
		DO UPDATE SET
			data = EXCLUDED.data,
			fingerprint = EXCLUDED.fingerprint,
			updated_at = EXCLUDED.updated_at,
			graphed_at = CASE
				WHEN staged_records.fingerprint = EXCLUDED.fingerprint THEN staged_records.graphed_at
				ELSE NULL
			END
		RETURNING ` + columns

	var record models.StagedRecord
	err = q.GetContext(ctx, &record, query,
		uuid.New().String(), req.Source, req.RecordType, req.ExternalID,
		req.Data, fp, now, now,
	)
	if err != nil {
		log.WithError(err).Error("Failed to upsert staged record")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert staged record")
	}

	return &record, nil
}

// FetchUngraphed returns up to limit unprocessed records for (source,
// record_type), oldest first. The filter is server-side so concurrent
// duplicate invocations converge on the same remaining work.
func (r *Repository) FetchUngraphed(ctx context.Context, src, recordType string, limit int) ([]models.StagedRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "stagedrecord.Repository.FetchUngraphed")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("staged_records")
	sb.Where(
		sb.Equal("source", src),
		sb.Equal("record_type", recordType),
		sb.IsNull("graphed_at"),
	)
	sb.OrderBy("created_at", "id")
	sb.Limit(limit)

	query, args := sb.Build()
	var records []models.StagedRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"source":      src,
			"record_type": recordType,
		}).Error("Failed to fetch ungraphed records")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to fetch ungraphed records")
	}
	return records, nil
}

// MarkGraphed stamps graphed_at for the given ids. The stamp is never
// reverted; re-merging an already graphed record is harmless.
func (r *Repository) MarkGraphed(ctx context.Context, ids []string) error {
	ctx, span := tracing.StartSpan(ctx, "stagedrecord.Repository.MarkGraphed")
	defer span.End()

	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In("UPDATE staged_records SET graphed_at = ? WHERE id IN (?)", time.Now().UTC(), ids)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to build mark query")
	}
	query = r.db.Rebind(query)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"count": len(ids),
		}).Error("Failed to mark records graphed")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark records graphed")
	}

	return nil
}

// CountUngraphed returns the remaining unprocessed records for (source,
// record_type). Used for section drain checks and job status.
func (r *Repository) CountUngraphed(ctx context.Context, src, recordType string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "stagedrecord.Repository.CountUngraphed")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("staged_records")
	sb.Where(
		sb.Equal("source", src),
		sb.Equal("record_type", recordType),
		sb.IsNull("graphed_at"),
	)

	query, args := sb.Build()
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count ungraphed records")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count ungraphed records")
	}
	return count, nil
}

// List returns a page of staged records for the ops API.
func (r *Repository) List(ctx context.Context, src, recordType string, page, pageSize int) (*models.StagedRecordListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "stagedrecord.Repository.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 500 {
		pageSize = 50
	}

	countSB := sqlbuilder.PostgreSQL.NewSelectBuilder()
	countSB.Select("COUNT(*)")
	countSB.From("staged_records")
	applyListFilters(countSB, src, recordType)

	countQuery, countArgs := countSB.Build()
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count staged records")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count staged records")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("staged_records")
	applyListFilters(sb, src, recordType)
	sb.OrderBy("created_at DESC")
	sb.Limit(pageSize)
	sb.Offset((page - 1) * pageSize)

	query, args := sb.Build()
	var records []models.StagedRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list staged records")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list staged records")
	}

	return &models.StagedRecordListResponse{
		Items:      records,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

func applyListFilters(sb *sqlbuilder.SelectBuilder, src, recordType string) {
	if src != "" {
		sb.Where(sb.Equal("source", src))
	}
	if recordType != "" {
		sb.Where(sb.Equal("record_type", recordType))
	}
}
