package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-records/internal/export"
	jobmetrics "github.com/odyssey-erp/odyssey-records/internal/jobs"
	"github.com/odyssey-erp/odyssey-records/internal/records"
)

type stubExporter struct {
	tables []string
	err    error
}

func (s *stubExporter) Export(_ context.Context, table string) (export.Result, error) {
	s.tables = append(s.tables, table)
	if s.err != nil {
		return export.Result{}, s.err
	}
	return export.Result{Message: "Data exported to " + table + "_data.csv", File: table + "_data.csv", Rows: 2}, nil
}

func TestNewExportTableTask(t *testing.T) {
	task, err := NewExportTableTask(" orders ")
	require.NoError(t, err)
	assert.Equal(t, TaskTypeExportTable, task.Type())

	var payload ExportTablePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "orders", payload.Table)

	_, err = NewExportTableTask("")
	assert.Error(t, err)
}

func TestExportTableJobHandle(t *testing.T) {
	exporter := &stubExporter{}
	job := NewExportTableJob(exporter, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewExportTableTask("customer")
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, []string{"customer"}, exporter.tables)
}

func TestExportTableJobSkipsRetryForUnknownTable(t *testing.T) {
	exporter := &stubExporter{err: records.ErrNotFound}
	job := NewExportTableJob(exporter, nil, nil)
	task, err := NewExportTableTask("users")
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.ErrorIs(t, err, records.ErrNotFound)
}

func TestExportTableJobRetriesTransientFailure(t *testing.T) {
	transient := &records.StoreError{Op: "list", Table: "orders", Kind: records.ErrUnavailable, Err: errors.New("conn reset")}
	job := NewExportTableJob(&stubExporter{err: transient}, nil, nil)
	task, err := NewExportTableTask("orders")
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.ErrorIs(t, err, records.ErrUnavailable)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestExportTableJobRejectsMalformedPayload(t *testing.T) {
	job := NewExportTableJob(&stubExporter{}, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskTypeExportTable, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestExportCron(t *testing.T) {
	entries, err := ExportCron("", []string{"orders"})
	require.NoError(t, err)
	assert.Empty(t, entries)

	entries, err = ExportCron("0 2 * * *", []string{"orders", "payment"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "0 2 * * *", entries[0].Spec)
	assert.Equal(t, TaskTypeExportTable, entries[1].Task.Type())
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestHealthReportsQueueDepth(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(stubInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 3, Retry: 1}}, nil).MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"default","pending":3,"active":0,"scheduled":0,"retry":1,"archived":0}`, rec.Body.String())
}

func TestHealthUnavailable(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(stubInspector{err: errors.New("redis down")}, nil).MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthTreatsMissingQueueAsEmpty(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(stubInspector{err: fmt.Errorf("inspect: %w", asynq.ErrQueueNotFound)}, nil).MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0,"active":0,"scheduled":0,"retry":0,"archived":0}`, rec.Body.String())
}
