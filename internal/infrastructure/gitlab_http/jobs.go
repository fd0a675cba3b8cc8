package gitlab_http

import (
	"context"
	"fmt"

	"github.com/davarch/gitlab-ci-runner/internal/domain"
)

// ListJobs returns the jobs of a pipeline in the order GitLab sends them.
func (c *Client) ListJobs(ctx context.Context, projectID, pipelineID int64) ([]domain.Job, error) {
	b, err := c.get(ctx, fmt.Sprintf("/projects/%d/pipelines/%d/jobs", projectID, pipelineID))
	if err != nil {
		return nil, &domain.JobListError{ProjectID: projectID, PipelineID: pipelineID, Err: err}
	}

	jobs, err := decodeJobs(b)
	if err != nil {
		return nil, &domain.JobListError{ProjectID: projectID, PipelineID: pipelineID, Err: fmt.Errorf("decode jobs: %w", err)}
	}
	return jobs, nil
}

// PlayJob starts a manual job. The response body is ignored.
func (c *Client) PlayJob(ctx context.Context, projectID, jobID int64) error {
	if _, err := c.post(ctx, fmt.Sprintf("/projects/%d/jobs/%d/play", projectID, jobID), nil); err != nil {
		return &domain.JobPlayError{ProjectID: projectID, JobID: jobID, Err: err}
	}
	return nil
}

func (c *Client) GetJob(ctx context.Context, projectID, jobID int64) (domain.Job, error) {
	b, err := c.get(ctx, fmt.Sprintf("/projects/%d/jobs/%d", projectID, jobID))
	if err != nil {
		return domain.Job{}, &domain.JobFetchError{ProjectID: projectID, JobID: jobID, Err: err}
	}

	j, err := decodeJob(b)
	if err != nil {
		return domain.Job{}, &domain.JobFetchError{ProjectID: projectID, JobID: jobID, Err: fmt.Errorf("decode job: %w", err)}
	}
	return j, nil
}
