package export

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-records/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-records/internal/records"
)

// Enqueuer schedules an asynchronous export and returns the task ID.
type Enqueuer interface {
	EnqueueExport(ctx context.Context, table string) (string, error)
}

// Handler exposes export endpoints.
type Handler struct {
	exporter *Exporter
	queue    Enqueuer
	logger   *slog.Logger
}

// NewHandler constructs a Handler. queue may be nil when no worker is configured.
func NewHandler(exporter *Exporter, queue Enqueuer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{exporter: exporter, queue: queue, logger: logger}
}

// MountRoutes registers export routes under /export.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/export/{table}", func(r chi.Router) {
		r.Get("/", h.export)
		r.Get("/download", h.download)
		r.Post("/jobs", h.enqueue)
	})
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	result, err := h.exporter.Export(r.Context(), chi.URLParam(r, "table"))
	if err != nil {
		h.fail(w, r, "export table", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	table, err := h.exporter.Stream(r.Context(), &buf, chi.URLParam(r, "table"))
	if err != nil {
		h.fail(w, r, "download table", err)
		return
	}
	httpx.Attachment(w, table.ExportFile(), "text/csv; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

type enqueueResponse struct {
	Table  string `json:"table"`
	TaskID string `json:"task_id"`
}

func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request) {
	table, err := records.LookupTable(chi.URLParam(r, "table"))
	if err != nil {
		h.fail(w, r, "enqueue export", err)
		return
	}
	if h.queue == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, http.StatusText(http.StatusServiceUnavailable), "background exports are not configured")
		return
	}
	id, err := h.queue.EnqueueExport(r.Context(), table.Name)
	if err != nil {
		h.logger.Error("enqueue export", slog.Any("error", err), slog.String("table", table.Name))
		httpx.RespondError(w, http.StatusServiceUnavailable, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, enqueueResponse{Table: table.Name, TaskID: id})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := records.StatusCode(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, slog.Any("error", err), slog.String("path", r.URL.Path))
	}
	httpx.RespondError(w, status, err)
}
