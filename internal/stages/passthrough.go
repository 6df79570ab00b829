// Package stages holds the only concrete Stage implementation this repo
// ships: a passthrough used for wiring and local smoke-testing. Real stage
// bodies (decode, detect, track, encode, ...) are out of scope (spec.md §1
// Non-goals) and are supplied by the deployment embedding this orchestrator.
package stages

import (
	"context"

	"github.com/videopipeline/orchestrator/internal/pipeline"
)

// NewPassthrough returns a Stage that immediately completes, copying its
// input through as output and adding "<name>_output": true.
func NewPassthrough(name string, deps ...string) pipeline.Stage {
	return pipeline.StageFunc{
		StageNameValue: name,
		Deps:           deps,
		Fn: func(ctx context.Context, inputData, stageConfig map[string]any) (pipeline.StageResult, error) {
			out := make(map[string]any, len(inputData)+1)
			for k, v := range inputData {
				out[k] = v
			}
			out[name+"_output"] = true
			return pipeline.StageResult{
				StageName:  name,
				Status:     pipeline.StatusCompleted,
				OutputData: out,
				Metadata:   map[string]any{"stage": name},
			}, nil
		},
	}
}
