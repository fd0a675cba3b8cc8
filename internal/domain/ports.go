package domain

import "context"

type GitlabClient interface {
	CreatePipeline(ctx context.Context, projectID int64, branch, triggerToken string) (Pipeline, error)
	GetPipeline(ctx context.Context, projectID, pipelineID int64) (Pipeline, error)
	ListJobs(ctx context.Context, projectID, pipelineID int64) ([]Job, error)
	PlayJob(ctx context.Context, projectID, jobID int64) error
	GetJob(ctx context.Context, projectID, jobID int64) (Job, error)
}

// Notifier announces a finished run; ok is false for runs that did not succeed.
type Notifier interface {
	Notify(ctx context.Context, title, body, url string, ok bool) error
}

type StateStore interface {
	Write(ctx context.Context, s Snapshot) error
	Last(ctx context.Context, pr ProjectRef) (Snapshot, bool, error)
}
