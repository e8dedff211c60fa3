package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrAlreadyClaimed     = errors.New("work item already claimed")
	ErrBatchInProgress    = errors.New("batch already in progress")
	ErrUnknownProvider    = errors.New("unknown ai provider")
	ErrEmptyRequest       = errors.New("work item has no request text")
	ErrReadDatabaseRow    = errors.New("could not read database row")
	ErrInvalidExecContext = errors.New("invalid database execution context")
	ErrForbidden          = errors.New("forbidden")
)

// UpstreamStage names the step of an assistant round trip that failed.
type UpstreamStage string

const (
	StageCreateThread  UpstreamStage = "create_thread"
	StagePostMessage   UpstreamStage = "post_message"
	StageStartRun      UpstreamStage = "start_run"
	StageRunFailed     UpstreamStage = "run_failed"
	StageEmptyResponse UpstreamStage = "empty_response"
	StageTimeout       UpstreamStage = "timeout"
)

// UpstreamError is returned by the assistant runner. It is recoverable per work item.
type UpstreamError struct {
	Stage  UpstreamStage
	Detail string
	Err    error
}

func (e *UpstreamError) Error() string {
	msg := "assistant " + string(e.Stage)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsStage reports whether err is an UpstreamError at the given stage.
func IsStage(err error, stage UpstreamStage) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Stage == stage
}

// ProviderError is a failed chat completion against one provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: http %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ConfigurationError means required configuration is missing. It is fatal for an invocation.
type ConfigurationError struct {
	Key string
}

func (e *ConfigurationError) Error() string {
	return "missing configuration: " + e.Key
}

func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
