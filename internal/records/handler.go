package records

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-records/internal/shared"
	"github.com/odyssey-erp/odyssey-records/internal/view"
)

// Service is the gateway surface used by the HTTP handler.
type Service interface {
	Handle(ctx context.Context, table Table, action Action, form map[string]string) (RowSet, error)
	Count(ctx context.Context, table Table) (int64, error)
}

// Handler serves the dashboard and the per-table manage pages.
type Handler struct {
	logger    *slog.Logger
	service   Service
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf}
}

// TableCount pairs a table with its current row count.
type TableCount struct {
	Table Table
	Rows  int64
}

type dashboardPage struct {
	Counts []TableCount
}

// Dashboard renders every table with its row count.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	counts := make([]TableCount, len(Tables))
	g, ctx := errgroup.WithContext(r.Context())
	for i, table := range Tables {
		g.Go(func() error {
			n, err := h.service.Count(ctx, table)
			if err != nil {
				return err
			}
			counts[i] = TableCount{Table: table, Rows: n}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.fail(w, r, "count rows", err)
		return
	}
	h.render(w, r, http.StatusOK, "Dashboard", "pages/dashboard.html", dashboardPage{Counts: counts}, nil)
}

// Manage lists a table and, on POST, applies the submitted action first.
func (h *Handler) Manage(w http.ResponseWriter, r *http.Request) {
	table, err := LookupTable(chi.URLParam(r, "table"))
	if err != nil {
		h.fail(w, r, "lookup table", err)
		return
	}

	action := ActionList
	var form map[string]string
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		action, err = ParseAction(r.PostFormValue("action"))
		if err != nil {
			h.fail(w, r, "parse action", err)
			return
		}
		form = formValues(r.PostForm)
	}

	rows, err := h.service.Handle(r.Context(), table, action, form)
	if err != nil {
		if action != ActionList && errors.Is(err, ErrRejected) {
			h.logger.Warn("record mutation rejected",
				slog.String("table", table.Name),
				slog.String("action", string(action)),
				slog.Any("error", err))
			h.rejected(w, r, table, action)
			return
		}
		h.fail(w, r, "manage records", err)
		return
	}

	var flash *shared.FlashMessage
	if action != ActionList {
		flash = &shared.FlashMessage{Kind: "success", Message: successMessage(action)}
	}
	h.render(w, r, http.StatusOK, table.Label, "pages/manage.html", rows, flash)
}

func (h *Handler) rejected(w http.ResponseWriter, r *http.Request, table Table, action Action) {
	rows, err := h.service.Handle(r.Context(), table, ActionList, nil)
	if err != nil {
		h.fail(w, r, "manage records", err)
		return
	}
	flash := &shared.FlashMessage{Kind: "danger", Message: "Could not " + string(action) + " record: the database rejected the submitted values"}
	h.render(w, r, http.StatusUnprocessableEntity, table.Label, "pages/manage.html", rows, flash)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, title, template string, data any, flash *shared.FlashMessage) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	if flash == nil && sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		User:        shared.UserFromContext(r.Context()),
		Data:        data,
	}
	if err := h.templates.RenderStatus(w, status, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err), slog.String("template", template))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := StatusCode(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, slog.Any("error", err), slog.String("path", r.URL.Path))
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}
	http.Error(w, http.StatusText(status), status)
}

// StatusCode maps gateway errors onto HTTP status codes.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidAction):
		return http.StatusBadRequest
	case errors.Is(err, ErrRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func successMessage(action Action) string {
	switch action {
	case ActionAdd:
		return "Record added"
	case ActionUpdate:
		return "Record updated"
	default:
		return "Record deleted"
	}
}

func formValues(values url.Values) map[string]string {
	form := make(map[string]string, len(values))
	for key, v := range values {
		if key == shared.CSRFFormField || key == "action" || len(v) == 0 {
			continue
		}
		form[key] = v[0]
	}
	return form
}
