package http

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "rotationdash/internal/errors"
	"rotationdash/internal/signals"
)

// MaxTopN bounds the n query parameter of the top-scores endpoint
const MaxTopN = 50

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DashboardHandler serves artifact status and the pipeline's output tables
type DashboardHandler struct {
	service      DashboardServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDashboardHandler creates a dashboard handler
func NewDashboardHandler(service DashboardServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger, false)
	}
	return &DashboardHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "dashboard_handler")),
		errorHandler: errorHandler,
	}
}

// Routes mounts the read-only endpoints under /api
func (h *DashboardHandler) Routes(r chi.Router) {
	r.Get("/artifacts", h.GetArtifacts)
	r.Get("/overview", h.GetOverview)
	r.Get("/scores/top", h.GetTopScores)
	r.Get("/returns/stats", h.GetReturnStats)
	r.Route("/signals", func(r chi.Router) {
		r.Get("/stats", h.GetSignalStats)
		r.Get("/symbols", h.GetSymbols)
		r.Get("/markers", h.GetMarkers)
		r.Get("/markers.xlsx", h.DownloadMarkers)
	})
}

// GetArtifacts handles GET /api/artifacts
func (h *DashboardHandler) GetArtifacts(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Artifacts(r.Context()))
}

// GetOverview handles GET /api/overview
func (h *DashboardHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.service.Overview(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, ov)
}

// GetTopScores handles GET /api/scores/top?n=
func (h *DashboardHandler) GetTopScores(w http.ResponseWriter, r *http.Request) {
	n := 0
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > MaxTopN {
			h.errorHandler.HandleError(w, r,
				apierrors.InvalidParameter("n", fmt.Sprintf("must be an integer between 1 and %d", MaxTopN)))
			return
		}
		n = v
	}

	top, err := h.service.TopScores(r.Context(), n)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, top)
}

// GetReturnStats handles GET /api/returns/stats
func (h *DashboardHandler) GetReturnStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.ReturnStats(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, stats)
}

// GetSignalStats handles GET /api/signals/stats
func (h *DashboardHandler) GetSignalStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.SignalStats(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, stats)
}

// GetSymbols handles GET /api/signals/symbols
func (h *DashboardHandler) GetSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.service.Symbols(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if symbols == nil {
		symbols = []string{}
	}
	render.JSON(w, r, symbols)
}

// GetMarkers handles GET /api/signals/markers?symbol=
func (h *DashboardHandler) GetMarkers(w http.ResponseWriter, r *http.Request) {
	set, err := h.service.Markers(r.Context(), r.URL.Query().Get("symbol"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, set)
}

// DownloadMarkers handles GET /api/signals/markers.xlsx?symbol=
func (h *DashboardHandler) DownloadMarkers(w http.ResponseWriter, r *http.Request) {
	set, err := h.service.Markers(r.Context(), r.URL.Query().Get("symbol"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	// Build the workbook first so a failure can still produce a problem response
	var buf bytes.Buffer
	if err := signals.ExportMarkers(&buf, set.Markers); err != nil {
		h.errorHandler.HandleError(w, r, fmt.Errorf("export markers: %w", err))
		return
	}

	filename := fmt.Sprintf("markers_%s.xlsx", sanitizeFilename(set.Symbol))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "markers_download_interrupted",
			slog.String("symbol", set.Symbol),
			slog.String("error", err.Error()))
	}
}

func sanitizeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, s)
}
