package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-records/internal/records"
)

// Lister returns the full row set of a table.
type Lister interface {
	List(ctx context.Context, table records.Table) (records.RowSet, error)
}

// Recorder receives export outcomes.
type Recorder interface {
	RecordExport(table string, rows int, err error)
}

// Result is the confirmation returned after a file export.
type Result struct {
	Message string `json:"message"`
	File    string `json:"file"`
	Rows    int    `json:"rows"`
}

// exportTimeout bounds a shared export run independently of the callers waiting on it.
const exportTimeout = 2 * time.Minute

// Exporter writes table snapshots as CSV files into a directory.
type Exporter struct {
	lister  Lister
	dir     string
	logger  *slog.Logger
	metrics Recorder
	group   singleflight.Group
}

// NewExporter constructs an Exporter writing into dir. metrics may be nil.
func NewExporter(lister Lister, dir string, logger *slog.Logger, metrics Recorder) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	if dir == "" {
		dir = "."
	}
	return &Exporter{lister: lister, dir: dir, logger: logger, metrics: metrics}
}

// Export writes <table>_data.csv with a header row followed by every row in listing
// order. The file is replaced atomically; a failed export leaves any previous file intact.
// Concurrent exports of the same table share one run, which keeps going when the caller
// that started it goes away.
func (e *Exporter) Export(ctx context.Context, name string) (Result, error) {
	table, err := records.LookupTable(name)
	if err != nil {
		return Result{}, err
	}
	v, err, _ := e.group.Do(table.Name, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), exportTimeout)
		defer cancel()
		return e.export(runCtx, table)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

// Stream writes the CSV for table to w without touching the export directory.
func (e *Exporter) Stream(ctx context.Context, w io.Writer, name string) (records.Table, error) {
	table, err := records.LookupTable(name)
	if err != nil {
		return records.Table{}, err
	}
	rs, err := e.lister.List(ctx, table)
	if err != nil {
		return table, err
	}
	return table, WriteCSV(w, rs)
}

func (e *Exporter) export(ctx context.Context, table records.Table) (Result, error) {
	rs, err := e.lister.List(ctx, table)
	if err == nil {
		err = e.writeFile(table, rs)
	}
	if e.metrics != nil {
		e.metrics.RecordExport(table.Name, rs.Len(), err)
	}
	if err != nil {
		return Result{}, err
	}

	file := table.ExportFile()
	e.logger.Info("table exported",
		slog.String("table", table.Name),
		slog.String("path", filepath.Join(e.dir, file)),
		slog.Int("rows", rs.Len()),
	)
	return Result{Message: "Data exported to " + file, File: file, Rows: rs.Len()}, nil
}

func (e *Exporter) writeFile(table records.Table, rs records.RowSet) (err error) {
	tmp, err := os.CreateTemp(e.dir, "."+table.Name+"-*.csv.tmp")
	if err != nil {
		return fmt.Errorf("export %s: %w", table.Name, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = WriteCSV(tmp, rs); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("export %s: %w", table.Name, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("export %s: %w", table.Name, err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("export %s: %w", table.Name, err)
	}
	if err = os.Rename(tmp.Name(), filepath.Join(e.dir, table.ExportFile())); err != nil {
		return fmt.Errorf("export %s: %w", table.Name, err)
	}
	return nil
}

// WriteCSV writes the column header followed by every row.
func WriteCSV(w io.Writer, rs records.RowSet) error {
	if len(rs.Columns) == 0 {
		return errors.New("export: row set has no columns")
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(rs.Columns); err != nil {
		return err
	}
	for _, row := range rs.Rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
