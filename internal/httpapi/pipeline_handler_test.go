package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/videopipeline/orchestrator/internal/checkpoint"
	"github.com/videopipeline/orchestrator/internal/eventbus"
	"github.com/videopipeline/orchestrator/internal/orchestrator"
	"github.com/videopipeline/orchestrator/internal/pipeline"
	"github.com/videopipeline/orchestrator/internal/platform/logger"
	"github.com/videopipeline/orchestrator/internal/progress"
)

func instantStage(name string) pipeline.Stage {
	return pipeline.StageFunc{
		StageNameValue: name,
		Fn: func(ctx context.Context, inputData, stageConfig map[string]any) (pipeline.StageResult, error) {
			return pipeline.StageResult{StageName: name, Status: pipeline.StatusCompleted}, nil
		},
	}
}

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	o := orchestrator.New(logger.Nop(), eventbus.NewMemoryBus(), checkpoint.NewMemoryStore(), progress.NewRecordingNotifier())
	handler := NewPipelineHandler(logger.Nop(), o, func(pipeline.PipelineConfiguration) []pipeline.Stage {
		return []pipeline.Stage{instantStage("A")}
	})
	return NewRouter(RouterConfig{Pipeline: handler})
}

func TestSubmit_ReturnsStartedWithPipelineID(t *testing.T) {
	router := testRouter(t)

	body, _ := json.Marshal(map[string]any{"videoPath": "s3://bucket/video.mp4"})
	req := httptest.NewRequest(http.MethodPost, "/api/pipelines", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var out submitResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Status != "started" || out.PipelineID == "" || out.VideoID == "" {
		t.Fatalf("unexpected response: %+v", out)
	}
}

func TestSubmit_RejectsMissingVideoPath(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/pipelines", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rr.Code)
	}
}

func TestGetStatus_UnknownPipelineReturns404(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/pipelines/does-not-exist", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d, want 404", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	router := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/healthcheck", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}
