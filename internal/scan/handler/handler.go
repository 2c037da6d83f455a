package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"luftscan/internal/results"
	"luftscan/internal/scan"
	"luftscan/internal/sensitivity"
	"luftscan/pkg/domain"
	dErrors "luftscan/pkg/domain-errors"
	"luftscan/pkg/platform/httputil"
	"luftscan/pkg/requestcontext"
)

// Service defines the scan operations the HTTP API exposes.
type Service interface {
	Run(ctx context.Context, req scan.Request, sinks ...results.Sink) (*results.Table, *scan.Record, error)
	Get(ctx context.Context, id domain.ScanID) (*scan.Record, error)
	List(ctx context.Context, limit int) ([]*scan.Record, error)
	Export(ctx context.Context, id domain.ScanID, sink results.Sink) error
	Sensitivity(ctx context.Context, id domain.ScanID, method sensitivity.Method) (*sensitivity.Matrix, error)
	Summary(ctx context.Context, id domain.ScanID) (sensitivity.Summary, error)
}

// Handler wires scan endpoints to the scan service.
type Handler struct {
	service Service
	logger  *slog.Logger
	// createMiddleware guards POST /scans only, the one endpoint that
	// costs CPU in proportion to the request.
	createMiddleware []func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithCreateMiddleware wraps POST /scans, e.g. with a rate limit.
func WithCreateMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) { h.createMiddleware = append(h.createMiddleware, mw...) }
}

func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: service, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts scan endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.With(h.createMiddleware...).Post("/scans", h.HandleCreateScan)
	r.Get("/scans", h.HandleListScans)
	r.Get("/scans/{id}", h.HandleGetScan)
	r.Get("/scans/{id}/rows", h.HandleExportRows)
	r.Get("/scans/{id}/sensitivity", h.HandleSensitivity)
	r.Get("/scans/{id}/summary", h.HandleSummary)
	r.Post("/criterion", h.HandleCriterion)
}

// HandleCreateScan handles POST /scans. The scan runs synchronously; a
// client disconnect truncates it.
func (h *Handler) HandleCreateScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	scenario, err := httputil.DecodeJSON[scan.Scenario](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := scenario.Request()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	table, rec, err := h.service.Run(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "scan failed",
			"request_id", requestID,
			"subject", requestcontext.Subject(ctx),
			"samples", req.Samples,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	summary, err := sensitivity.Summarize(table)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "scan created",
		"request_id", requestID,
		"subject", requestcontext.Subject(ctx),
		"scan_id", rec.ID.String(),
		"status", string(rec.Status),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	w.Header().Set("Location", "/scans/"+rec.ID.String())
	httputil.WriteJSON(w, http.StatusCreated, ScanResponse{Scan: rec, Summary: &summary})
}

// HandleListScans handles GET /scans?limit=.
func (h *Handler) HandleListScans(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeBadRequest, "invalid limit %q", raw))
			return
		}
		limit = n
	}
	recs, err := h.service.List(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Scans: recs, Count: len(recs)})
}

// HandleGetScan handles GET /scans/{id}.
func (h *Handler) HandleGetScan(w http.ResponseWriter, r *http.Request) {
	id, ok := h.scanID(w, r)
	if !ok {
		return
	}
	rec, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ScanResponse{Scan: rec})
}

// HandleExportRows handles GET /scans/{id}/rows?format=csv|jsonl and
// streams the stored rows.
func (h *Handler) HandleExportRows(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.scanID(w, r)
	if !ok {
		return
	}
	rec, err := h.service.Get(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var sink results.Sink
	switch format := r.URL.Query().Get("format"); format {
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv")
		sink = results.NewCSVWriter(w, rec.Schema())
	case "jsonl":
		w.Header().Set("Content-Type", "application/x-ndjson")
		sink = results.NewJSONLWriter(w, rec.Schema())
	default:
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeBadRequest, "unknown format %q", format))
		return
	}
	w.WriteHeader(http.StatusOK)

	// Headers are sent; a failure can only be logged.
	if err := h.service.Export(ctx, id, sink); err != nil {
		h.logger.ErrorContext(ctx, "row export aborted",
			"request_id", requestcontext.RequestID(ctx),
			"scan_id", id.String(),
			"error", err,
		)
	}
}

// HandleSensitivity handles GET /scans/{id}/sensitivity?method=.
func (h *Handler) HandleSensitivity(w http.ResponseWriter, r *http.Request) {
	id, ok := h.scanID(w, r)
	if !ok {
		return
	}
	method, err := sensitivity.ParseMethod(r.URL.Query().Get("method"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	m, err := h.service.Sensitivity(r.Context(), id, method)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

// HandleSummary handles GET /scans/{id}/summary.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := h.scanID(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Summary(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

// HandleCriterion handles POST /criterion for a single encounter.
func (h *Handler) HandleCriterion(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.DecodeJSON[CriterionRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}
	report, err := req.Model().Report(req.Inputs(), req.threshold())
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "criterion undefined"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) scanID(w http.ResponseWriter, r *http.Request) (domain.ScanID, bool) {
	id, err := domain.ParseScanID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return domain.ScanID{}, false
	}
	return id, true
}
