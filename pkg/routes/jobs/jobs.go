// Package jobs exposes the operational surface of the loader: cursor
// inspection, staged-record backlog, and manual triggering.
package jobs

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/bramble/internal/repositories/stagedrecord"
	"github.com/Ramsey-B/bramble/pkg/cursor"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/processor"
)

// TriggerPublisher publishes job triggers. The Kafka producer satisfies it.
type TriggerPublisher interface {
	PublishTrigger(ctx context.Context, trigger *models.TriggerMessage) error
}

// Register registers job routes
func Register(g *echo.Group) {
	g.GET("", ListJobs)
	g.GET("/:job/cursor", GetCursor)
	g.POST("/:job/trigger", Trigger)
	g.GET("/staged", ListStagedRecords)
	g.GET("/staged/backlog", GetBacklog)
}

// ListJobs lists the registered job names
func ListJobs(c echo.Context) error {
	ctx := c.Request().Context()

	_, proc, err := ectoinject.GetContext[*processor.Processor](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	return c.JSON(http.StatusOK, map[string]any{"jobs": proc.Jobs()})
}

// GetCursor returns the saved cursor for a job, the live resume point and
// accumulated counters included
func GetCursor(c echo.Context) error {
	ctx := c.Request().Context()

	job := c.Param("job")
	partition := c.QueryParam("partition")

	ctx, store, err := ectoinject.GetContext[*cursor.Store](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	state, err := store.Load(ctx, job, partition)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, state)
}

// TriggerRequest is the manual trigger request body
type TriggerRequest struct {
	Params models.JobParams `json:"params"`
}

// Trigger publishes a trigger for the named job. The run happens on the
// consumer like any scheduled invocation; this endpoint only enqueues it.
func Trigger(c echo.Context) error {
	ctx := c.Request().Context()

	job := c.Param("job")
	if job == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "job name is required")
	}

	var req TriggerRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx, publisher, err := ectoinject.GetContext[TriggerPublisher](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	trigger := &models.TriggerMessage{
		Job:       job,
		Params:    req.Params,
		Timestamp: time.Now().UTC(),
	}
	if err := publisher.PublishTrigger(ctx, trigger); err != nil {
		return err
	}

	return c.JSON(http.StatusAccepted, trigger)
}

// ListStagedRecords pages through staged records for a source and type
func ListStagedRecords(c echo.Context) error {
	ctx := c.Request().Context()

	src := c.QueryParam("source")
	recordType := c.QueryParam("record_type")
	if src == "" || recordType == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "source and record_type are required")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))

	ctx, repo, err := ectoinject.GetContext[*stagedrecord.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	records, err := repo.List(ctx, src, recordType, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, records)
}

// GetBacklog returns the count of staged records not yet merged to the graph
func GetBacklog(c echo.Context) error {
	ctx := c.Request().Context()

	src := c.QueryParam("source")
	recordType := c.QueryParam("record_type")
	if src == "" || recordType == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "source and record_type are required")
	}

	ctx, repo, err := ectoinject.GetContext[*stagedrecord.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	count, err := repo.CountUngraphed(ctx, src, recordType)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"source":      src,
		"record_type": recordType,
		"ungraphed":   count,
	})
}
