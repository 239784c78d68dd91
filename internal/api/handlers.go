package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/numeral/internal/chartservice"
	"github.com/starford/numeral/internal/harmony"
)

const analysisSuffix = "/analysis"

// Handler holds API route handlers.
type Handler struct {
	svc *chartservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *chartservice.Service) *Handler {
	return &Handler{svc: svc}
}

// chartPath extracts the chart path from the URL (everything after /api/charts/).
// Supports encoded slashes from OpenAPI clients (e.g. standards%2Fblues.chart).
func chartPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// Analyze handles POST /api/analyze.
//
//	@Summary		Label a chord progression with Roman numerals
//	@Tags			analysis
//	@Accept			json
//	@Produce		json
//	@Param			body	body		AnalyzeRequest	true	"Progression"
//	@Success		200		{object}	AnalyzeResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/analyze [post]
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if !readJSON(w, r, &req) {
		return
	}
	key := h.svc.KeyOr(req.Key)
	labels, err := h.svc.Analyze(r.Context(), req.Chords, key, req.Display.apply(h.svc.Display()))
	if err != nil {
		writeError(w, "analyze", err)
		return
	}
	writeJSON(w, http.StatusOK, AnalyzeResponse{Key: key, Chords: req.Chords, Labels: labels})
}

// Explain handles POST /api/analyze/explain.
//
//	@Summary		Show every candidate function with its final weight
//	@Tags			analysis
//	@Accept			json
//	@Produce		json
//	@Param			body	body		AnalyzeRequest	true	"Progression"
//	@Success		200		{object}	ExplainResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/analyze/explain [post]
func (h *Handler) Explain(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if !readJSON(w, r, &req) {
		return
	}
	key := h.svc.KeyOr(req.Key)
	slots, err := h.svc.Explain(r.Context(), req.Chords, key, req.Display.apply(h.svc.Display()))
	if err != nil {
		writeError(w, "explain", err)
		return
	}
	writeJSON(w, http.StatusOK, ExplainResponse{Key: key, Slots: slots})
}

// AnalyzeBatch handles POST /api/analyze/batch.
func (h *Handler) AnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !readJSON(w, r, &req) {
		return
	}
	results, err := h.svc.AnalyzeBatch(r.Context(), req.Progressions, req.Display.apply(h.svc.Display()))
	if err != nil {
		writeError(w, "analyze batch", err)
		return
	}
	writeJSON(w, http.StatusOK, BatchResponse{Results: results})
}

// ListCharts handles GET /api/charts.
//
//	@Summary		List charts with optional pagination and filtering
//	@Tags			charts
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			sort	query		string	false	"Sort field"	Enums(path, title, updated, bars)
//	@Success		200		{object}	ChartListResponse
//	@Security		BearerAuth
//	@Router			/charts [get]
func (h *Handler) ListCharts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListCharts(r.Context(), limit, offset, q.Get("tag"), q.Get("sort"))
	if err != nil {
		writeError(w, "list charts", err)
		return
	}
	writeJSON(w, http.StatusOK, ChartListResponse{Charts: items, Total: total})
}

// GetChart handles GET /api/charts/* and GET /api/charts/*/analysis.
//
//	@Summary		Get a single chart by path
//	@Tags			charts
//	@Produce		json
//	@Param			path	path		string	true	"Chart path"
//	@Success		200		{object}	ChartDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/charts/{path} [get]
func (h *Handler) GetChart(w http.ResponseWriter, r *http.Request) {
	path := chartPath(r)
	if p, ok := strings.CutSuffix(path, analysisSuffix); ok {
		h.ChartAnalysis(w, r, p)
		return
	}
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	c, err := h.svc.GetChart(r.Context(), path)
	if err != nil {
		writeError(w, "get chart", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ChartAnalysis serves GET /api/charts/{path}/analysis. The query flags
// functions, original and top override the default display.
//
//	@Summary		Label a stored chart and lay it out in bars
//	@Tags			charts
//	@Produce		json
//	@Param			path		path		string	true	"Chart path"
//	@Param			functions	query		bool	false	"Functional labels"
//	@Param			original	query		bool	false	"Prefix labels with chord symbols"
//	@Param			top			query		bool	false	"Show the runner-up function"
//	@Success		200			{object}	ChartAnalysis
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/charts/{path}/analysis [get]
func (h *Handler) ChartAnalysis(w http.ResponseWriter, r *http.Request, path string) {
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	d := displayFromQuery(h.svc.Display(), r.URL.Query())
	res, err := h.svc.AnalyzeChart(r.Context(), path, d)
	if err != nil {
		writeError(w, "analyze chart", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func displayFromQuery(d harmony.Display, q url.Values) harmony.Display {
	flag := func(dst *bool, name string) {
		if v, err := strconv.ParseBool(q.Get(name)); err == nil {
			*dst = v
		}
	}
	flag(&d.ShowFunctions, "functions")
	flag(&d.ShowOriginalChords, "original")
	flag(&d.AllHarmonicFunctions, "top")
	return d
}

// CreateChart handles POST /api/charts.
//
//	@Summary		Create a new chart
//	@Tags			charts
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateChartRequest	true	"Chart to create"
//	@Success		201		{object}	ChartDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/charts [post]
func (h *Handler) CreateChart(w http.ResponseWriter, r *http.Request) {
	var req CreateChartRequest
	if !readJSON(w, r, &req) {
		return
	}
	c, err := h.svc.CreateChart(r.Context(), req.Path, []byte(req.Content))
	if err != nil {
		writeError(w, "create chart", err, slog.String("path", req.Path))
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// UpdateChart handles PUT /api/charts/*.
//
//	@Summary		Update a chart with optimistic concurrency
//	@Tags			charts
//	@Accept			json
//	@Produce		json
//	@Param			path		path	string				true	"Chart path"
//	@Param			If-Match	header	string				false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body	UpdateChartRequest	true	"Updated content"
//	@Success		200		{object}	ChartDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/charts/{path} [put]
func (h *Handler) UpdateChart(w http.ResponseWriter, r *http.Request) {
	path := chartPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req UpdateChartRequest
	if !readJSON(w, r, &req) {
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	c, err := h.svc.UpdateChart(r.Context(), path, []byte(req.Content), ifMatch)
	if err != nil {
		writeError(w, "update chart", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteChart handles DELETE /api/charts/*.
//
//	@Summary		Delete a chart
//	@Tags			charts
//	@Param			path	path	string	true	"Chart path"
//	@Success		204		"Chart deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/charts/{path} [delete]
func (h *Handler) DeleteChart(w http.ResponseWriter, r *http.Request) {
	path := chartPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.DeleteChart(r.Context(), path); err != nil {
		writeError(w, "delete chart", err, slog.String("path", path))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across charts
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err, slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// ChartsInKey handles GET /api/keys/{key}/charts.
func (h *Handler) ChartsInKey(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if decoded, err := url.PathUnescape(key); err == nil {
		key = decoded
	}
	paths, err := h.svc.ChartsInKey(r.Context(), key)
	if err != nil {
		writeError(w, "charts in key", err, slog.String("key", key))
		return
	}
	writeJSON(w, http.StatusOK, KeyChartsResponse{Key: key, Charts: paths})
}
