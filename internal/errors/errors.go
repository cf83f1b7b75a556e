// Package errors defines the error taxonomy for the rangeagent execution core.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of agent error.
type ErrorCode string

const (
	// ErrCodeLaunchFailure indicates the worker process could not be started.
	// Fatal: aborts the run after best-effort cleanup.
	ErrCodeLaunchFailure ErrorCode = "launch_failure"
	// ErrCodeMessageParse indicates a malformed outcome message. Local to one
	// range: logged and dropped, never aborts the run.
	ErrCodeMessageParse ErrorCode = "message_parse"
	// ErrCodeStageOutTransmission indicates the reporting service could not be
	// reached or rejected a report. The batch is retried, not discarded.
	ErrCodeStageOutTransmission ErrorCode = "stageout_transmission"
	// ErrCodeArtifactRemoval indicates a per-file cleanup failure. Logged and
	// ignored.
	ErrCodeArtifactRemoval ErrorCode = "artifact_removal"
	// ErrCodeConfiguration indicates invalid or missing configuration, such as
	// an unresolvable payload.
	ErrCodeConfiguration ErrorCode = "configuration"
	// ErrCodeUnclassified covers any other failure in the control loop. Caught
	// at the top level, exit code forced to the sentinel failure value.
	ErrCodeUnclassified ErrorCode = "unclassified"
	// ErrCodeConflict indicates a conflict with existing data.
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeTimeout indicates a timeout occurred.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "internal"
)

// AgentError is a structured error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is/As.
type AgentError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error (optional)
	Cause error
}

// Error implements the error interface.
func (e *AgentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AgentError) Unwrap() error {
	return e.Cause
}

// LaunchFailure creates a launch failure error wrapping cause.
func LaunchFailure(message string, cause error) *AgentError {
	return &AgentError{Code: ErrCodeLaunchFailure, Message: message, Cause: cause}
}

// MessageParse creates a malformed-message error wrapping cause.
func MessageParse(message string, cause error) *AgentError {
	return &AgentError{Code: ErrCodeMessageParse, Message: message, Cause: cause}
}

// StageOutTransmission creates a stage-out transmission error wrapping cause.
func StageOutTransmission(message string, cause error) *AgentError {
	return &AgentError{Code: ErrCodeStageOutTransmission, Message: message, Cause: cause}
}

// ArtifactRemoval creates an artifact removal error wrapping cause.
func ArtifactRemoval(message string, cause error) *AgentError {
	return &AgentError{Code: ErrCodeArtifactRemoval, Message: message, Cause: cause}
}

// Configuration creates a configuration error.
func Configuration(message string) *AgentError {
	return &AgentError{Code: ErrCodeConfiguration, Message: message}
}

// Configurationf creates a configuration error with formatted message.
func Configurationf(format string, args ...any) *AgentError {
	return &AgentError{Code: ErrCodeConfiguration, Message: fmt.Sprintf(format, args...)}
}

// Unclassified wraps any other control-loop failure.
func Unclassified(message string, cause error) *AgentError {
	return &AgentError{Code: ErrCodeUnclassified, Message: message, Cause: cause}
}

// CodeOf returns the code of err if it is (or wraps) an AgentError, and
// ErrCodeUnclassified otherwise. Used for logging and metric tags.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var ae *AgentError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ErrCodeUnclassified
}

// IsCode reports whether err is (or wraps) an AgentError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var ae *AgentError
	return errors.As(err, &ae) && ae.Code == code
}
