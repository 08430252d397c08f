package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-records/internal/export"
	jobmetrics "github.com/odyssey-erp/odyssey-records/internal/jobs"
	"github.com/odyssey-erp/odyssey-records/internal/records"
)

// TableExporter writes a table snapshot to disk.
type TableExporter interface {
	Export(ctx context.Context, table string) (export.Result, error)
}

// ExportTableJob handles TaskTypeExportTable tasks.
type ExportTableJob struct {
	Exporter TableExporter
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewExportTableJob initialises the export handler.
func NewExportTableJob(exporter TableExporter, logger *slog.Logger, metrics *jobmetrics.Metrics) *ExportTableJob {
	return &ExportTableJob{Exporter: exporter, Logger: logger, Metrics: metrics}
}

// Handle exports the table named in the payload. Unknown tables and malformed payloads
// are not retried; store outages are.
func (j *ExportTableJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Exporter == nil {
		return errors.New("export table: handler not configured")
	}
	var payload ExportTablePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("export table: decode payload: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskTypeExportTable)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.logger().With(slog.String("table", payload.Table))
	result, err := j.Exporter.Export(ctx, payload.Table)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			logger.Warn("export table skipped", slog.Any("error", err))
			return fmt.Errorf("export table: %w: %w", err, asynq.SkipRetry)
		}
		logger.Error("export table failed", slog.Any("error", err), slog.Bool("transient", records.IsTransient(err)))
		return err
	}
	logger.Info("export table completed", slog.String("file", result.File), slog.Int("rows", result.Rows))
	return nil
}

func (j *ExportTableJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
