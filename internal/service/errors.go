package service

import (
	"errors"
	"fmt"

	"github.com/timmy/hireflow/internal/retry"
)

var (
	ErrApplicationNotFound  = errors.New("application not found")
	ErrRequirementNotFound  = errors.New("job requirement not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrAnalysisInProgress   = errors.New("analysis already in progress")
	ErrParseFailure         = errors.New("malformed scorer output")
	ErrEmptyResume          = errors.New("resume text is empty")
	ErrInvalidStatus        = errors.New("invalid application status")
	ErrRetryLimitReached    = errors.New("notification retry limit reached")
	ErrNotRetryable         = errors.New("notification is not retryable")
	ErrResumeNotStored      = errors.New("resume file is not stored")
)

// Stage names a pipeline step for error reporting.
type Stage string

const (
	StageExtract Stage = "extract"
	StageScore   Stage = "score"
	StageParse   Stage = "parse"
	StagePersist Stage = "persist"
	StageNotify  Stage = "notify"
)

// StageError records which pipeline stage failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// FailedStage returns the stage recorded in err, or "" if there is none.
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// IsRateLimited reports whether err is a retryable rate-limit failure.
func IsRateLimited(err error) bool {
	return retry.IsRetryable(err)
}
