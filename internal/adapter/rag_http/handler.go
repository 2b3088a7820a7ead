package rag_http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"legal-rag/internal/domain"
	"legal-rag/internal/usecase"
	"legal-rag/internal/usecase/analysis"

	"github.com/labstack/echo/v4"
)

// ReadinessCheck reports whether a backing service can take traffic.
type ReadinessCheck func(ctx context.Context) error

// Dependencies wires the handler to the use cases it exposes.
type Dependencies struct {
	Analyze   usecase.AnalyzeUsecase
	Summarize usecase.SummarizeUsecase
	Ingest    usecase.IngestJudgmentUsecase
	Index     usecase.IndexRebuildUsecase
	Jobs      domain.IngestJobRepository
	Extractor *analysis.EntityExtractor
	Detector  *analysis.DarkZoneDetector
	Enhancer  *analysis.QueryEnhancer
	Ready     ReadinessCheck
	Logger    *slog.Logger
}

type Handler struct {
	deps Dependencies
}

func NewHandler(deps Dependencies) *Handler {
	return &Handler{deps: deps}
}

// Register mounts every route on e.
func (h *Handler) Register(e *echo.Echo) {
	e.POST("/v1/analyze", h.Analyze)
	e.POST("/v1/entities", h.Entities)
	e.POST("/v1/dark-zones", h.DarkZones)
	e.POST("/v1/enhance", h.Enhance)
	e.POST("/v1/summarize", h.Summarize)

	e.POST("/internal/ingest", h.Ingest)
	e.POST("/internal/index/rebuild", h.RebuildIndex)
	e.GET("/internal/index/status", h.IndexStatus)

	e.GET("/healthz", h.Healthz)
	e.GET("/readyz", h.Readyz)
}

type textRequest struct {
	Text string `json:"text"`
}

type analyzeRequest struct {
	Text             string `json:"text"`
	TopK             int    `json:"top_k"`
	RetrieveStatutes *bool  `json:"retrieve_statutes"`
	JudgmentID       int64  `json:"judgment_id"`
}

func (r analyzeRequest) input() usecase.AnalyzeInput {
	in := usecase.NewAnalyzeInput(r.Text)
	in.TopK = r.TopK
	in.JudgmentID = r.JudgmentID
	if r.RetrieveStatutes != nil {
		in.RetrieveStatutes = *r.RetrieveStatutes
	}
	return in
}

type summarizeRequest struct {
	analyzeRequest
	Focus     string `json:"focus"`
	MaxTokens int    `json:"max_tokens"`
}

type enhanceRequest struct {
	Text           string `json:"text"`
	ExpandSynonyms bool   `json:"expand_synonyms"`
}

type enhanceResponse struct {
	analysis.EnhancedQuery
	ExpandedQuery string `json:"expanded_query,omitempty"`
}

type ingestRequest struct {
	SourceName string `json:"source_name"`
	Text       string `json:"text"`
	Async      bool   `json:"async"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Analyze runs the full pipeline and returns the annotated context.
// (POST /v1/analyze)
func (h *Handler) Analyze(c echo.Context) error {
	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	out, err := h.deps.Analyze.Execute(c.Request().Context(), req.input())
	if err != nil {
		return h.writeError(c, "analyze_failed", err)
	}
	return c.JSON(http.StatusOK, out)
}

// (POST /v1/entities)
func (h *Handler) Entities(c echo.Context) error {
	text, err := bindText(c)
	if err != nil {
		return h.writeError(c, "extract_failed", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"entities": nonNil(h.deps.Extractor.Extract(text))})
}

// (POST /v1/dark-zones)
func (h *Handler) DarkZones(c echo.Context) error {
	text, err := bindText(c)
	if err != nil {
		return h.writeError(c, "detect_failed", err)
	}
	zones := h.deps.Detector.Detect(text)
	return c.JSON(http.StatusOK, map[string]any{
		"dark_zones":       nonNil(zones),
		"resolution_query": h.deps.Detector.ResolutionQuery(zones),
	})
}

// (POST /v1/enhance)
func (h *Handler) Enhance(c echo.Context) error {
	var req enhanceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	if strings.TrimSpace(req.Text) == "" {
		return h.writeError(c, "enhance_failed", domain.ErrInvalidInput)
	}
	resp := enhanceResponse{EnhancedQuery: h.deps.Enhancer.Enhance(req.Text)}
	if req.ExpandSynonyms {
		resp.ExpandedQuery = h.deps.Enhancer.ExpandWithSynonyms(resp.Query)
	}
	return c.JSON(http.StatusOK, resp)
}

// (POST /v1/summarize)
func (h *Handler) Summarize(c echo.Context) error {
	var req summarizeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	out, err := h.deps.Summarize.Execute(c.Request().Context(), usecase.SummarizeInput{
		Analyze:   req.input(),
		Focus:     req.Focus,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return h.writeError(c, "summarize_failed", err)
	}
	return c.JSON(http.StatusOK, out)
}

// Ingest stores a judgment now, or queues it for the worker when async is set.
// (POST /internal/ingest)
func (h *Handler) Ingest(c echo.Context) error {
	var req ingestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	if strings.TrimSpace(req.Text) == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "missing text"})
	}
	ctx := c.Request().Context()

	if req.Async {
		job := &domain.IngestJob{
			JobType: domain.JobTypeIngestJudgment,
			Payload: domain.IngestPayload{SourceName: req.SourceName, Text: req.Text},
		}
		if err := h.deps.Jobs.Enqueue(ctx, job); err != nil {
			return h.writeError(c, "ingest_enqueue_failed", err)
		}
		return c.JSON(http.StatusAccepted, map[string]string{"job_id": job.ID.String(), "status": "queued"})
	}

	res, err := h.deps.Ingest.Ingest(ctx, usecase.IngestInput{SourceName: req.SourceName, Text: req.Text})
	if err != nil {
		return h.writeError(c, "ingest_failed", err)
	}
	status := http.StatusCreated
	if res.Skipped {
		status = http.StatusOK
	}
	return c.JSON(status, res)
}

// (POST /internal/index/rebuild)
func (h *Handler) RebuildIndex(c echo.Context) error {
	st, err := h.deps.Index.Rebuild(c.Request().Context())
	if err != nil {
		return h.writeError(c, "index_rebuild_failed", err)
	}
	return c.JSON(http.StatusOK, st)
}

// (GET /internal/index/status)
func (h *Handler) IndexStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.deps.Index.Status())
}

func (h *Handler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz requires a built lexical index and a reachable database.
func (h *Handler) Readyz(c echo.Context) error {
	if st := h.deps.Index.Status(); st.State != "indexed" {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "index " + st.State})
	}
	if h.deps.Ready != nil {
		if err := h.deps.Ready(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "db down", "error": err.Error()})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

// bindText accepts blank text; extraction and detection answer it with empty lists.
func bindText(c echo.Context) (string, error) {
	var req textRequest
	if err := c.Bind(&req); err != nil {
		return "", domain.ErrInvalidInput
	}
	return req.Text, nil
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrIndexNotReady),
		errors.Is(err, domain.ErrRetrievalUnavailable),
		errors.Is(err, domain.ErrCollaboratorUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(c echo.Context, event string, err error) error {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.deps.Logger.ErrorContext(c.Request().Context(), event,
			slog.String("path", c.Path()),
			slog.String("error", err.Error()))
	}
	return c.JSON(status, errorResponse{Error: err.Error()})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
