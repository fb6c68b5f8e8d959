// AngelaMos | 2026
// handler.go

package report

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/leadboard/internal/core"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts /reports behind the given middleware, applied in
// order.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	middlewares ...func(http.Handler) http.Handler,
) {
	r.Route("/reports", func(r chi.Router) {
		r.Use(middlewares...)

		r.Get("/{dataset}", h.View)
		r.Get("/{dataset}/counts/{field}", h.Counts)
		r.Get("/{dataset}/credit-distribution", h.CreditDistribution)
		r.Get("/{dataset}/lead-summary", h.LeadSummary)
		r.Get("/{dataset}/timeline", h.Timeline)
		r.Get("/{dataset}/overview", h.Overview)
	})
}

func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	dataset := chi.URLParam(r, "dataset")

	q, err := ParseViewQuery(
		r.URL.Query(),
		h.service.Now(),
		h.service.Location(),
		h.service.MaxPageSize(),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	if q.Format == FormatCSV {
		h.export(w, r, dataset, q)
		return
	}

	page, err := h.service.View(r.Context(), dataset, q)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, page)
}

func (h *Handler) export(
	w http.ResponseWriter,
	r *http.Request,
	dataset string,
	q ViewQuery,
) {
	rows, err := h.service.Export(r.Context(), dataset, q)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set(
		"Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", dataset+".csv"),
	)
	w.WriteHeader(http.StatusOK)

	if err := WriteCSV(w, rows); err != nil {
		slog.ErrorContext(r.Context(), "csv export failed",
			"dataset", dataset,
			"error", err,
		)
	}
}

func (h *Handler) Counts(w http.ResponseWriter, r *http.Request) {
	dateRange, ok := h.resolveRange(w, r, "")
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit")) //nolint:errcheck // defaults on parse failure

	series, err := h.service.Counts(
		r.Context(),
		chi.URLParam(r, "dataset"),
		chi.URLParam(r, "field"),
		dateRange,
		limit,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, series)
}

func (h *Handler) CreditDistribution(w http.ResponseWriter, r *http.Request) {
	dateRange, ok := h.resolveRange(w, r, "")
	if !ok {
		return
	}

	series, err := h.service.CreditDistribution(
		r.Context(),
		chi.URLParam(r, "dataset"),
		dateRange,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, series)
}

func (h *Handler) LeadSummary(w http.ResponseWriter, r *http.Request) {
	dateRange, ok := h.resolveRange(w, r, RangeThisWeek)
	if !ok {
		return
	}

	summary, err := h.service.LeadSummary(
		r.Context(),
		chi.URLParam(r, "dataset"),
		dateRange,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, summary)
}

// Timeline defaults to the current month.
func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	dateRange, ok := h.resolveRange(w, r, RangeThisMonth)
	if !ok {
		return
	}

	series, err := h.service.Timeline(
		r.Context(),
		chi.URLParam(r, "dataset"),
		dateRange,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, series)
}

func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	dateRange, ok := h.resolveRange(w, r, "")
	if !ok {
		return
	}

	overview, err := h.service.Overview(
		r.Context(),
		chi.URLParam(r, "dataset"),
		dateRange,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, overview)
}

func (h *Handler) resolveRange(
	w http.ResponseWriter,
	r *http.Request,
	fallback string,
) (*DateRange, bool) {
	query := r.URL.Query()

	kind := query.Get("dateRange")
	if kind == "" {
		kind = fallback
	}

	dateRange, err := ResolveRange(
		kind,
		firstNonEmpty(query.Get("customStartDate"), query.Get("startDate")),
		firstNonEmpty(query.Get("customEndDate"), query.Get("endDate")),
		h.service.Now(),
		h.service.Location(),
	)
	if err != nil {
		writeError(w, err)
		return nil, false
	}

	return dateRange, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnknownDataset):
		core.NotFound(w, "dataset")
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, err.Error())
	default:
		core.InternalServerError(w, err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
