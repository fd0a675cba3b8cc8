package domain

import (
	"errors"
	"fmt"
)

// ErrPollStopped is returned when the poll pacing policy gives up before a
// terminal status was seen.
var ErrPollStopped = errors.New("polling stopped before a terminal status")

// APIRequestError is a GitLab call that did not come back with a 2xx status.
// StatusCode is 0 when no response was received at all; Err then holds the
// transport failure.
type APIRequestError struct {
	Method     string
	URI        string
	StatusCode int
	Reason     string
	Err        error
}

func (e *APIRequestError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("gitlab %s %s: %v", e.Method, e.URI, e.Err)
	}
	return fmt.Sprintf("gitlab %s %s: status %d %s", e.Method, e.URI, e.StatusCode, e.Reason)
}

func (e *APIRequestError) Unwrap() error { return e.Err }

// statusOf extracts status code and reason from an underlying APIRequestError.
func statusOf(err error) (int, string) {
	var ae *APIRequestError
	if errors.As(err, &ae) {
		return ae.StatusCode, ae.Reason
	}
	return 0, ""
}

type PipelineCreationError struct {
	ProjectID  int64
	Branch     string
	StatusCode int
	Reason     string
	Err        error
}

// NewPipelineCreationError copies status and reason out of err when it is an
// APIRequestError.
func NewPipelineCreationError(projectID int64, branch string, err error) *PipelineCreationError {
	code, reason := statusOf(err)
	return &PipelineCreationError{ProjectID: projectID, Branch: branch, StatusCode: code, Reason: reason, Err: err}
}

func (e *PipelineCreationError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("failed to create pipeline on branch %q using project id %d: %v", e.Branch, e.ProjectID, e.Err)
	}
	return fmt.Sprintf("failed to create pipeline on branch %q using project id %d: status %d %s: %v",
		e.Branch, e.ProjectID, e.StatusCode, e.Reason, e.Err)
}

func (e *PipelineCreationError) Unwrap() error { return e.Err }

type PipelineFetchError struct {
	ProjectID  int64
	PipelineID int64
	Err        error
}

func (e *PipelineFetchError) Error() string {
	return fmt.Sprintf("failed to get pipeline with id %d from project with id %d: %v", e.PipelineID, e.ProjectID, e.Err)
}

func (e *PipelineFetchError) Unwrap() error { return e.Err }

type JobListError struct {
	ProjectID  int64
	PipelineID int64
	Err        error
}

func (e *JobListError) Error() string {
	return fmt.Sprintf("failed to get jobs from pipeline with id %d from project with id %d: %v", e.PipelineID, e.ProjectID, e.Err)
}

func (e *JobListError) Unwrap() error { return e.Err }

type JobNotFoundError struct {
	Name       string
	PipelineID int64
}

func (e *JobNotFoundError) Error() string {
	return fmt.Sprintf("no job found with name %q on pipeline with id %d", e.Name, e.PipelineID)
}

type JobPlayError struct {
	ProjectID int64
	JobID     int64
	Err       error
}

func (e *JobPlayError) Error() string {
	return fmt.Sprintf("failed to start job with id %d on project with id %d: %v", e.JobID, e.ProjectID, e.Err)
}

func (e *JobPlayError) Unwrap() error { return e.Err }

type JobFetchError struct {
	ProjectID int64
	JobID     int64
	Err       error
}

func (e *JobFetchError) Error() string {
	return fmt.Sprintf("failed to get job with id %d on project with id %d: %v", e.JobID, e.ProjectID, e.Err)
}

func (e *JobFetchError) Unwrap() error { return e.Err }

// PipelineExecutionError means the pipeline finished failed or canceled.
type PipelineExecutionError struct {
	ProjectID  int64
	PipelineID int64
	Status     Status
}

func (e *PipelineExecutionError) Error() string {
	return fmt.Sprintf("pipeline %d of project %d did not succeed: %s", e.PipelineID, e.ProjectID, e.Status)
}

// JobExecutionError means the job finished failed or canceled.
type JobExecutionError struct {
	ProjectID int64
	JobID     int64
	Name      string
	Status    Status
}

func (e *JobExecutionError) Error() string {
	return fmt.Sprintf("job %q (%d) of project %d did not succeed: %s", e.Name, e.JobID, e.ProjectID, e.Status)
}
