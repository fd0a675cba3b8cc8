package application

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/davarch/gitlab-ci-runner/internal/domain"
	"github.com/davarch/gitlab-ci-runner/internal/infrastructure/gitlab_http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

// newTestRunner uses the default interval with a sleep that returns at once.
func newTestRunner(log *zap.Logger, gl domain.GitlabClient, note domain.Notifier, state domain.StateStore) *Runner {
	r := NewRunner(log, gl, note, state, 0)
	r.sleep = (&sleepRecorder{}).sleep
	return r
}

func TestRunPipeline_EndToEnd(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/projects/42/trigger/pipeline":
			_ = r.ParseForm()
			assert.Equal(t, "main", r.PostForm.Get("ref"))
			_, _ = io.WriteString(w, `{"id":100,"ref":"main","sha":"abc123","status":"pending"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/projects/42/pipelines/100":
			if polls.Add(1) == 1 {
				_, _ = io.WriteString(w, `{"id":100,"ref":"main","sha":"abc123","status":"running"}`)
				return
			}
			_, _ = io.WriteString(w, `{"id":100,"ref":"main","sha":"abc123","status":"success"}`)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	log, logs := observed()
	rec := &sleepRecorder{}
	state := &domain.MockState{}
	r := NewRunner(log, gitlab_http.New(srv.URL, "secret", 5*time.Second), nil, state, DefaultInterval)
	r.sleep = rec.sleep

	id, err := r.RunPipeline(context.Background(), PipelineRequest{ProjectID: 42, Ref: "main", TriggerToken: "trig"})
	require.NoError(t, err)
	assert.Equal(t, int64(100), id)
	assert.Equal(t, int32(2), polls.Load())
	assert.Equal(t, []time.Duration{15 * time.Second, 15 * time.Second}, rec.slept)

	require.Len(t, state.Snapshots, 1)
	assert.Equal(t, domain.StatusSuccess, state.Snapshots[0].Pipeline.Status)
	assert.Equal(t, domain.ProjectRef{ProjectID: 42, Ref: "main"}, state.Snapshots[0].Project)

	assert.Equal(t, 1, logs.FilterMessage("executing gitlab pipeline").Len())
	assert.Equal(t, 1, logs.FilterMessage("pipeline succeeded").Len())
	assert.Equal(t, 1, logs.FilterMessage("finished executing gitlab pipeline").Len())
}

func TestRunJob_EndToEndFailure(t *testing.T) {
	var played, polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/projects/42/pipelines/100/jobs":
			_, _ = io.WriteString(w, `[{"id":3,"name":"build","status":"success"},{"id":7,"name":"deploy","status":"manual"}]`)
		case r.Method == http.MethodPost && r.URL.Path == "/projects/42/jobs/7/play":
			played.Add(1)
			_, _ = io.WriteString(w, `{"id":7,"name":"deploy","status":"pending"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/projects/42/jobs/7":
			polls.Add(1)
			_, _ = io.WriteString(w, `{"id":7,"name":"deploy","status":"failed"}`)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	log, logs := observed()
	r := NewRunner(log, gitlab_http.New(srv.URL, "secret", 5*time.Second), nil, nil, 0)
	r.sleep = (&sleepRecorder{}).sleep

	err := r.RunJob(context.Background(), JobRequest{ProjectID: 42, Ref: "main", PipelineID: 100, JobName: "deploy"})

	var je *domain.JobExecutionError
	require.True(t, errors.As(err, &je))
	assert.Equal(t, int64(7), je.JobID)
	assert.Equal(t, domain.StatusFailed, je.Status)
	assert.Equal(t, int32(1), played.Load())
	assert.Equal(t, int32(1), polls.Load())

	assert.Equal(t, 1, logs.FilterMessage("job failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("job run failed").Len())
	assert.Zero(t, logs.FilterMessage("finished executing gitlab job").Len())
}

func TestRunPipeline_CreationErrorPropagates(t *testing.T) {
	cause := domain.NewPipelineCreationError(42, "main", &domain.APIRequestError{StatusCode: 401, Reason: "Unauthorized"})
	gl := &domain.MockGitLab{CreateErr: cause}
	log, logs := observed()

	id, err := newTestRunner(log, gl, nil, nil).RunPipeline(context.Background(), PipelineRequest{ProjectID: 42, Ref: "main"})
	assert.Zero(t, id)
	assert.Same(t, cause, err)
	assert.Zero(t, gl.GetPipelineCalls)

	entries := logs.FilterMessage("pipeline run failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
}

func TestRunPipeline_CanceledIsExecutionError(t *testing.T) {
	gl := &domain.MockGitLab{
		Created:          domain.Pipeline{ID: 5, Ref: "dev", Status: domain.StatusPending},
		PipelineStatuses: []domain.Status{domain.StatusRunning, domain.StatusCanceled},
	}
	state := &domain.MockState{}
	note := &domain.MockNotifier{}
	log, _ := observed()

	id, err := newTestRunner(log, gl, note, state).RunPipeline(context.Background(), PipelineRequest{ProjectID: 1, Ref: "dev"})
	assert.Equal(t, int64(5), id)

	var pe *domain.PipelineExecutionError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, domain.StatusCanceled, pe.Status)
	assert.Equal(t, 2, gl.GetPipelineCalls)

	require.Len(t, state.Snapshots, 1, "failed runs are recorded too")
	require.Len(t, note.Messages, 1)
	assert.Contains(t, note.Messages[0], "canceled")
}

func TestRunJob_NotFoundNeverPlays(t *testing.T) {
	gl := &domain.MockGitLab{Jobs: []domain.Job{{ID: 1, Name: "build"}}}
	log, _ := observed()

	err := newTestRunner(log, gl, nil, nil).RunJob(context.Background(), JobRequest{ProjectID: 1, PipelineID: 9, JobName: "deploy"})

	var nf *domain.JobNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, int64(9), nf.PipelineID)
	assert.Zero(t, gl.PlayCalls)
	assert.Zero(t, gl.GetJobCalls)
}

func TestRunJob_CaseInsensitiveAndSkipped(t *testing.T) {
	gl := &domain.MockGitLab{
		Jobs:        []domain.Job{{ID: 11, Name: "Build", Status: domain.StatusManual}},
		JobStatuses: []domain.Status{domain.StatusSkipped},
	}
	log, _ := observed()

	err := newTestRunner(log, gl, nil, nil).RunJob(context.Background(), JobRequest{ProjectID: 1, PipelineID: 9, JobName: "build"})
	require.NoError(t, err)
	assert.Equal(t, []int64{11}, gl.Played)
}

func TestRunJob_PlayErrorStopsBeforeWait(t *testing.T) {
	playErr := &domain.JobPlayError{ProjectID: 1, JobID: 11, Err: &domain.APIRequestError{StatusCode: 403}}
	gl := &domain.MockGitLab{Jobs: []domain.Job{{ID: 11, Name: "deploy"}}, PlayErr: playErr}
	log, _ := observed()

	err := newTestRunner(log, gl, nil, nil).RunJob(context.Background(), JobRequest{ProjectID: 1, PipelineID: 9, JobName: "deploy"})
	assert.Same(t, playErr, err)
	assert.Zero(t, gl.GetJobCalls)
}

func TestRunJob_UsesRecordedPipeline(t *testing.T) {
	gl := &domain.MockGitLab{
		Jobs:        []domain.Job{{ID: 11, Name: "deploy"}},
		JobStatuses: []domain.Status{domain.StatusSuccess},
	}
	state := &domain.MockState{Snapshots: []domain.Snapshot{
		{Project: domain.ProjectRef{ProjectID: 1, Ref: "main"}, Pipeline: domain.Pipeline{ID: 77}},
	}}
	log, _ := observed()
	r := newTestRunner(log, gl, nil, state)

	require.NoError(t, r.RunJob(context.Background(), JobRequest{ProjectID: 1, Ref: "main", JobName: "deploy"}))
	assert.Equal(t, 1, gl.ListCalls)

	err := r.RunJob(context.Background(), JobRequest{ProjectID: 1, Ref: "other", JobName: "deploy"})
	assert.ErrorIs(t, err, ErrNoRecordedPipeline)
	assert.Equal(t, 1, gl.ListCalls)
}

func TestRunner_ZeroIntervalPausesDefault(t *testing.T) {
	gl := &domain.MockGitLab{
		Created:          domain.Pipeline{ID: 5},
		PipelineStatuses: []domain.Status{domain.StatusRunning, domain.StatusSuccess},
	}
	log, _ := observed()
	rec := &sleepRecorder{}
	r := NewRunner(log, gl, nil, nil, 0)
	r.sleep = rec.sleep

	_, err := r.RunPipeline(context.Background(), PipelineRequest{ProjectID: 1, Ref: "main"})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{DefaultInterval, DefaultInterval}, rec.slept)
}

func TestRunner_WithPolicyBoundsPolls(t *testing.T) {
	gl := &domain.MockGitLab{
		Created:          domain.Pipeline{ID: 5},
		PipelineStatuses: []domain.Status{domain.StatusRunning},
	}
	log, _ := observed()
	rec := &sleepRecorder{}
	r := NewRunner(log, gl, nil, nil, time.Minute).WithPolicy(FixedPolicy(time.Second, 3))
	r.sleep = rec.sleep

	id, err := r.RunPipeline(context.Background(), PipelineRequest{ProjectID: 1, Ref: "main"})
	assert.Equal(t, int64(5), id)
	assert.ErrorIs(t, err, domain.ErrPollStopped)
	assert.Equal(t, 3, gl.GetPipelineCalls)
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, rec.slept)
}

func TestRunner_NotifyPassesOutcome(t *testing.T) {
	gl := &domain.MockGitLab{
		Created:          domain.Pipeline{ID: 5, WebURL: "https://gl/p/5"},
		PipelineStatuses: []domain.Status{domain.StatusSuccess},
	}
	note := &domain.MockNotifier{}
	log, _ := observed()

	_, err := newTestRunner(log, gl, note, nil).RunPipeline(context.Background(), PipelineRequest{ProjectID: 1, Ref: "main"})
	require.NoError(t, err)
	assert.Equal(t, []string{"✅ CI: success|pipeline #5 (main): success|https://gl/p/5|true"}, note.Messages)
}

func TestRunner_NotifyErrorSurfaces(t *testing.T) {
	gl := &domain.MockGitLab{
		Created:          domain.Pipeline{ID: 5},
		PipelineStatuses: []domain.Status{domain.StatusSuccess},
		Jobs:             []domain.Job{{ID: 11, Name: "deploy"}},
		JobStatuses:      []domain.Status{domain.StatusFailed},
	}
	noDaemon := errors.New("no daemon")
	note := &domain.MockNotifier{Err: noDaemon}
	log, logs := observed()
	r := newTestRunner(log, gl, note, nil)

	_, err := r.RunPipeline(context.Background(), PipelineRequest{ProjectID: 1, Ref: "main"})
	assert.ErrorIs(t, err, noDaemon)
	assert.Equal(t, 1, logs.FilterMessage("desktop notification failed").Len())

	err = r.RunJob(context.Background(), JobRequest{ProjectID: 1, PipelineID: 5, JobName: "deploy"})
	var je *domain.JobExecutionError
	require.True(t, errors.As(err, &je), "execution error wins over the notify error")
	require.Len(t, note.Messages, 2)
	assert.Contains(t, note.Messages[1], "|false")
}
