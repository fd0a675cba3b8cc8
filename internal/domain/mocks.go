package domain

import (
	"context"
	"strconv"
)

// MockGitLab replays scripted statuses. Each GetPipeline/GetJob call consumes
// the next entry of PipelineStatuses/JobStatuses; the last entry repeats.
type MockGitLab struct {
	Created          Pipeline
	CreateErr        error
	PipelineStatuses []Status
	PipelineErr      error

	Jobs        []Job
	ListErr     error
	PlayErr     error
	JobStatuses []Status
	JobErr      error

	CreateCalls      int
	GetPipelineCalls int
	ListCalls        int
	PlayCalls        int
	GetJobCalls      int
	Played           []int64
}

func (m *MockGitLab) CreatePipeline(ctx context.Context, projectID int64, branch, triggerToken string) (Pipeline, error) {
	m.CreateCalls++
	if m.CreateErr != nil {
		return Pipeline{}, m.CreateErr
	}
	return m.Created, nil
}

func (m *MockGitLab) GetPipeline(ctx context.Context, projectID, pipelineID int64) (Pipeline, error) {
	m.GetPipelineCalls++
	if m.PipelineErr != nil {
		return Pipeline{}, m.PipelineErr
	}
	p := m.Created
	p.ID = pipelineID
	p.Status = pick(m.PipelineStatuses, m.GetPipelineCalls)
	return p, nil
}

func (m *MockGitLab) ListJobs(ctx context.Context, projectID, pipelineID int64) ([]Job, error) {
	m.ListCalls++
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Jobs, nil
}

func (m *MockGitLab) PlayJob(ctx context.Context, projectID, jobID int64) error {
	m.PlayCalls++
	m.Played = append(m.Played, jobID)
	return m.PlayErr
}

func (m *MockGitLab) GetJob(ctx context.Context, projectID, jobID int64) (Job, error) {
	m.GetJobCalls++
	if m.JobErr != nil {
		return Job{}, m.JobErr
	}
	j := Job{ID: jobID}
	for _, known := range m.Jobs {
		if known.ID == jobID {
			j = known
		}
	}
	j.Status = pick(m.JobStatuses, m.GetJobCalls)
	return j, nil
}

func pick(s []Status, call int) Status {
	if len(s) == 0 {
		return StatusRunning
	}
	if call > len(s) {
		return s[len(s)-1]
	}
	return s[call-1]
}

type MockNotifier struct {
	Messages []string
	Err      error
}

func (n *MockNotifier) Notify(ctx context.Context, title, body, url string, ok bool) error {
	n.Messages = append(n.Messages, title+"|"+body+"|"+url+"|"+strconv.FormatBool(ok))
	return n.Err
}

type MockState struct {
	Snapshots []Snapshot
	Err       error
}

func (c *MockState) Write(ctx context.Context, s Snapshot) error {
	if c.Err != nil {
		return c.Err
	}
	c.Snapshots = append(c.Snapshots, s)
	return nil
}

func (c *MockState) Last(ctx context.Context, pr ProjectRef) (Snapshot, bool, error) {
	if c.Err != nil {
		return Snapshot{}, false, c.Err
	}
	for i := len(c.Snapshots) - 1; i >= 0; i-- {
		if c.Snapshots[i].Project == pr {
			return c.Snapshots[i], true, nil
		}
	}
	return Snapshot{}, false, nil
}
