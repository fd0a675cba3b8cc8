package gitlab_http

import (
	"context"
	"fmt"
	"net/url"

	"github.com/davarch/gitlab-ci-runner/internal/domain"
)

// CreatePipeline starts a pipeline on branch through the trigger API.
func (c *Client) CreatePipeline(ctx context.Context, projectID int64, branch, triggerToken string) (domain.Pipeline, error) {
	form := url.Values{}
	form.Set("ref", branch)
	form.Set("token", triggerToken)

	b, err := c.post(ctx, fmt.Sprintf("/projects/%d/trigger/pipeline", projectID), form)
	if err != nil {
		return domain.Pipeline{}, domain.NewPipelineCreationError(projectID, branch, err)
	}

	p, err := decodePipeline(b)
	if err != nil {
		return domain.Pipeline{}, domain.NewPipelineCreationError(projectID, branch, fmt.Errorf("decode trigger response: %w", err))
	}
	return p, nil
}

func (c *Client) GetPipeline(ctx context.Context, projectID, pipelineID int64) (domain.Pipeline, error) {
	b, err := c.get(ctx, fmt.Sprintf("/projects/%d/pipelines/%d", projectID, pipelineID))
	if err != nil {
		return domain.Pipeline{}, &domain.PipelineFetchError{ProjectID: projectID, PipelineID: pipelineID, Err: err}
	}

	p, err := decodePipeline(b)
	if err != nil {
		return domain.Pipeline{}, &domain.PipelineFetchError{ProjectID: projectID, PipelineID: pipelineID, Err: fmt.Errorf("decode pipeline: %w", err)}
	}
	return p, nil
}
