package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apierrors "rotationdash/internal/errors"
	"rotationdash/internal/middleware"
	"rotationdash/internal/operations"
)

var requestValidator = validator.New()

// RunRequest is the body of POST /api/pipeline/run
type RunRequest struct {
	Sequence string `json:"sequence" validate:"omitempty,max=64,excludesall=/"`
}

// Bind implements render.Binder
func (r *RunRequest) Bind(_ *http.Request) error {
	r.Sequence = strings.TrimSpace(r.Sequence)
	return requestValidator.Struct(r)
}

// StageView is a catalog entry with its 1-based position
type StageView struct {
	Position int `json:"position"`
	operations.Stage
}

// PipelineHandler exposes the stage catalog and the run triggers
type PipelineHandler struct {
	service      PipelineServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	tracer       trace.Tracer
}

// NewPipelineHandler creates a pipeline handler
func NewPipelineHandler(service PipelineServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *PipelineHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger, false)
	}
	return &PipelineHandler{
		service:      service,
		logger:       logger.With(slog.String("handler", "pipeline")),
		errorHandler: errorHandler,
		tracer:       otel.Tracer("pipeline-handler"),
	}
}

// Routes returns a chi router for pipeline endpoints
func (h *PipelineHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/stages", h.ListStages)
	r.Get("/sequences", h.ListSequences)
	r.Get("/status", h.GetStatus)
	r.Post("/run", h.RunSequence)
	r.Post("/stages/{index}/run", h.RunStage)
	return r
}

// ListStages handles GET /api/pipeline/stages
func (h *PipelineHandler) ListStages(w http.ResponseWriter, r *http.Request) {
	stages := h.service.Stages()
	views := make([]StageView, len(stages))
	for i, s := range stages {
		views[i] = StageView{Position: i + 1, Stage: s}
	}
	render.JSON(w, r, views)
}

// ListSequences handles GET /api/pipeline/sequences
func (h *PipelineHandler) ListSequences(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Sequences())
}

// GetStatus handles GET /api/pipeline/status
func (h *PipelineHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Status())
}

// RunSequence handles POST /api/pipeline/run. The response is sent when the
// run finishes; stage progress is streamed on /ws meanwhile.
func (h *PipelineHandler) RunSequence(w http.ResponseWriter, r *http.Request) {
	req := &RunRequest{}
	if r.ContentLength != 0 {
		if err := render.Bind(r, req); err != nil {
			h.errorHandler.HandleError(w, r, bindError(err))
			return
		}
	}

	ctx, span := h.tracer.Start(r.Context(), "pipeline_handler.run_sequence",
		trace.WithAttributes(
			attribute.String("request_id", middleware.GetReqID(r.Context())),
			attribute.String("pipeline.sequence", req.Sequence),
		),
	)
	defer span.End()

	h.logger.InfoContext(ctx, "pipeline_run_requested",
		slog.String("sequence", req.Sequence),
		slog.String("request_id", middleware.GetReqID(ctx)))

	run, err := h.service.RunSequence(ctx, req.Sequence)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.errorHandler.HandleError(w, r, err)
		return
	}

	span.SetAttributes(
		attribute.String("pipeline.run_id", run.ID),
		attribute.Bool("pipeline.succeeded", run.Succeeded),
	)
	render.JSON(w, r, run)
}

// RunStage handles POST /api/pipeline/stages/{index}/run
func (h *PipelineHandler) RunStage(w http.ResponseWriter, r *http.Request) {
	position, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidParameter("index", "must be an integer stage position"))
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "pipeline_handler.run_stage",
		trace.WithAttributes(attribute.Int("pipeline.stage_position", position)),
	)
	defer span.End()

	result, err := h.service.RunStage(ctx, position)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.errorHandler.HandleError(w, r, err)
		return
	}

	span.SetAttributes(attribute.Bool("pipeline.succeeded", result.Succeeded))
	render.JSON(w, r, result)
}

// bindError keeps validator errors intact so the error handler can list the
// failing fields; decoding errors become a plain invalid request.
func bindError(err error) error {
	if _, ok := err.(validator.ValidationErrors); ok {
		return err
	}
	return apierrors.InvalidRequestWithError(err)
}
