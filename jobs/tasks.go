package jobs

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeExportTable writes a table snapshot to the export directory.
	TaskTypeExportTable = "records:export"
)

// ExportTablePayload names the table to export.
type ExportTablePayload struct {
	Table string `json:"table"`
}

// NewExportTableTask constructs an Asynq task exporting table.
func NewExportTableTask(table string) (*asynq.Task, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, errors.New("jobs: export task requires a table")
	}
	data, err := json.Marshal(ExportTablePayload{Table: table})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeExportTable, data,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(5),
		asynq.Timeout(2*time.Minute),
	), nil
}
