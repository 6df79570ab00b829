package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/videopipeline/orchestrator/internal/orchestrator"
	"github.com/videopipeline/orchestrator/internal/pipeline"
	"github.com/videopipeline/orchestrator/internal/platform/logger"
)

// StageProvider returns the declared, ordered stage list a submitted
// pipeline will run. Concrete stage bodies are out of scope for this repo
// (spec.md §1 Non-goals); callers wire in their own implementations and
// register the resulting factory with the handler.
type StageProvider func(config pipeline.PipelineConfiguration) []pipeline.Stage

type submitRequest struct {
	VideoPath         string                    `json:"videoPath" binding:"required"`
	ModelVersion      string                    `json:"modelVersion"`
	BatchSize         int                       `json:"batchSize"`
	GPUEnabled        bool                      `json:"gpuEnabled"`
	CheckpointEnabled bool                      `json:"checkpointEnabled"`
	// MaxRetries is a pointer so an omitted field (use the default) can be
	// told apart from an explicit 0 (no retries).
	MaxRetries     *int                      `json:"maxRetries"`
	TimeoutSeconds int                       `json:"timeoutSeconds"`
	StageConfigs   map[string]map[string]any `json:"stageConfigs"`
}

type submitResponse struct {
	PipelineID string `json:"pipelineId"`
	VideoID    string `json:"videoId"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// PipelineHandler exposes the request-submission, status-query, and cancel
// endpoints (spec.md §6) over the PipelineOrchestrator.
type PipelineHandler struct {
	log    *logger.Logger
	orch   *orchestrator.Orchestrator
	stages StageProvider
}

func NewPipelineHandler(log *logger.Logger, orch *orchestrator.Orchestrator, stages StageProvider) *PipelineHandler {
	return &PipelineHandler{
		log:    log.With("handler", "PipelineHandler"),
		orch:   orch,
		stages: stages,
	}
}

// POST /api/pipelines
func (h *PipelineHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	config := pipeline.PipelineConfiguration{
		ModelVersion:      req.ModelVersion,
		BatchSize:         req.BatchSize,
		GPUEnabled:        req.GPUEnabled,
		CheckpointEnabled: req.CheckpointEnabled,
		MaxRetries:        req.MaxRetries,
		TimeoutSeconds:    req.TimeoutSeconds,
		StageConfigs:      req.StageConfigs,
	}.WithDefaults()

	videoID := pipeline.NewVideoID()
	correlationID := c.GetHeader("X-Correlation-Id")

	p, err := h.orch.SubmitPipelineAsync(videoID, req.VideoPath, config, h.stages(config), correlationID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "submit_failed", err)
		return
	}

	RespondOK(c, submitResponse{
		PipelineID: p.ID().String(),
		VideoID:    videoID.String(),
		Status:     "started",
		Message:    "pipeline accepted",
	})
}

// GET /api/pipelines/:id
func (h *PipelineHandler) GetStatus(c *gin.Context) {
	id := c.Param("id")
	view, ok := h.orch.GetPipelineStatus(id)
	if !ok {
		RespondError(c, http.StatusNotFound, "pipeline_not_found", nil)
		return
	}
	RespondOK(c, view)
}

// POST /api/pipelines/:id/cancel
func (h *PipelineHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	var req cancelRequest
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "user"
	}

	if err := h.orch.CancelPipeline(c.Request.Context(), id, req.Reason); err != nil {
		if err == orchestrator.ErrPipelineNotFound {
			RespondError(c, http.StatusNotFound, "pipeline_not_found", err)
			return
		}
		RespondError(c, http.StatusConflict, "cancel_failed", err)
		return
	}
	RespondOK(c, gin.H{"pipelineId": id, "status": "cancelling"})
}
