package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode standardizes the orchestrator's failure taxonomy, adapted from
// the teacher's domain/aggregates error-code pattern.
type ErrorCode string

const (
	CodeInvalidState       ErrorCode = "invalid_state"
	CodeUnknownStage       ErrorCode = "unknown_stage"
	CodeIncompleteStage    ErrorCode = "incomplete_stage"
	CodeIncompatibleStages ErrorCode = "incompatible_stages"
	CodeStageExecution     ErrorCode = "stage_execution"
	CodeDependencyNotMet   ErrorCode = "dependency_not_met"
	CodeEventPublish       ErrorCode = "event_publish"
	CodeCheckpointIO       ErrorCode = "checkpoint_io"
	CodeTimeout            ErrorCode = "timeout"
)

// Error is the canonical orchestrator/aggregate error wrapper.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Code)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Code)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{Code: code, Op: strings.TrimSpace(op), Message: strings.TrimSpace(message), Cause: cause}
}

func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(code, op, err.Error(), err)
}

func IsCode(err error, code ErrorCode) bool {
	var pErr *Error
	if !errors.As(err, &pErr) {
		return false
	}
	return pErr.Code == code
}

func CodeOf(err error) ErrorCode {
	var pErr *Error
	if !errors.As(err, &pErr) {
		return ""
	}
	return pErr.Code
}

// Convenience constructors mirroring spec.md §7's named errors.

func InvalidStateError(op, message string) error {
	return NewError(CodeInvalidState, op, message, nil)
}

func UnknownStageError(name string) error {
	return NewError(CodeUnknownStage, "stage lookup", fmt.Sprintf("unknown stage %q", name), nil)
}

func IncompleteStageError(name string) error {
	return NewError(CodeIncompleteStage, "completePipeline", fmt.Sprintf("stage %q is not completed", name), nil)
}

func IncompatibleStagesError(message string) error {
	return NewError(CodeIncompatibleStages, "restore", message, nil)
}

func StageExecutionError(name string, cause error) error {
	return NewError(CodeStageExecution, "stage "+name, "stage execution failed", cause)
}

func DependencyNotMetError(name string) error {
	return NewError(CodeDependencyNotMet, "stage "+name, "dependencies not met", nil)
}

func EventPublishError(cause error) error {
	return NewError(CodeEventPublish, "publish", "event bus rejected publish", cause)
}

func CheckpointIOError(op string, cause error) error {
	return NewError(CodeCheckpointIO, op, "checkpoint store failed", cause)
}

func TimeoutErrorOf(pipelineID string) error {
	return NewError(CodeTimeout, "timeout", fmt.Sprintf("pipeline %s exceeded its configured timeout", pipelineID), nil)
}
