package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/davarch/gitlab-ci-runner/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNoRecordedPipeline = errors.New("no recorded pipeline")

type PipelineRequest struct {
	ProjectID    int64
	Ref          string
	TriggerToken string
}

// JobRequest names a job inside an existing pipeline. A zero PipelineID
// means the last pipeline recorded for ProjectID/Ref.
type JobRequest struct {
	ProjectID  int64
	Ref        string
	PipelineID int64
	JobName    string
}

// Runner drives a pipeline or a single job to completion. note and state
// are optional.
type Runner struct {
	log    *zap.Logger
	gl     domain.GitlabClient
	note   domain.Notifier
	state  domain.StateStore
	every  time.Duration
	policy func() backoff.BackOff
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRunner polls every interval; a non-positive interval means DefaultInterval.
func NewRunner(l *zap.Logger, gl domain.GitlabClient, note domain.Notifier, state domain.StateStore, every time.Duration) *Runner {
	return &Runner{log: l, gl: gl, note: note, state: state, every: every}
}

// WithPolicy sets the pacing policy used by every wait of this runner, see
// FixedPolicy.
func (r *Runner) WithPolicy(policy func() backoff.BackOff) *Runner {
	r.policy = policy
	return r
}

func (r *Runner) waiter(l *zap.Logger) *Waiter {
	w := NewWaiter(l, r.gl, r.every).WithPolicy(r.policy)
	if r.sleep != nil {
		w.sleep = r.sleep
	}
	return w
}

// RunPipeline triggers a pipeline and blocks until it finishes. The pipeline
// id is returned whenever the pipeline was created, also on failure.
func (r *Runner) RunPipeline(ctx context.Context, req PipelineRequest) (id int64, err error) {
	log := r.log.With(
		zap.String("run_id", uuid.NewString()),
		zap.Int64("project_id", req.ProjectID),
		zap.String("ref", req.Ref),
	)
	log.Info("executing gitlab pipeline")

	defer func() {
		if err != nil {
			log.Error("pipeline run failed", zap.Error(err))
		}
	}()

	p, err := r.gl.CreatePipeline(ctx, req.ProjectID, req.Ref, req.TriggerToken)
	if err != nil {
		return 0, err
	}

	log = log.With(zap.Int64("pipeline_id", p.ID))
	log.Info("pipeline created", zap.String("status", string(p.Status)), zap.String("web_url", p.WebURL))

	out, err := r.waiter(log).WaitForPipeline(ctx, req.ProjectID, p)
	if err != nil {
		return p.ID, err
	}

	p.Status = out.Status
	r.record(ctx, log, domain.ProjectRef{ProjectID: req.ProjectID, Ref: req.Ref}, p)
	noteErr := r.notify(ctx, log, "pipeline #"+strconv.FormatInt(p.ID, 10)+" ("+req.Ref+")", out, p.WebURL)

	if !out.OK() {
		return p.ID, &domain.PipelineExecutionError{ProjectID: req.ProjectID, PipelineID: p.ID, Status: out.Status}
	}
	if noteErr != nil {
		return p.ID, noteErr
	}

	log.Info("finished executing gitlab pipeline", zap.String("status", string(out.Status)))
	return p.ID, nil
}

// RunJob plays a job of a pipeline and blocks until it finishes.
func (r *Runner) RunJob(ctx context.Context, req JobRequest) (err error) {
	log := r.log.With(
		zap.String("run_id", uuid.NewString()),
		zap.Int64("project_id", req.ProjectID),
		zap.String("ref", req.Ref),
		zap.String("job", req.JobName),
	)
	log.Info("executing gitlab job", zap.Int64("pipeline_id", req.PipelineID))

	defer func() {
		if err != nil {
			log.Error("job run failed", zap.Error(err))
		}
	}()

	pipelineID := req.PipelineID
	if pipelineID == 0 {
		if pipelineID, err = r.lastPipeline(ctx, domain.ProjectRef{ProjectID: req.ProjectID, Ref: req.Ref}); err != nil {
			return err
		}
		log.Info("using recorded pipeline", zap.Int64("recorded_pipeline_id", pipelineID))
	}

	log = log.With(zap.Int64("pipeline_id", pipelineID))

	jobs, err := r.gl.ListJobs(ctx, req.ProjectID, pipelineID)
	if err != nil {
		return err
	}

	job, err := FindJobByName(jobs, req.JobName, pipelineID)
	if err != nil {
		return err
	}

	log = log.With(zap.Int64("job_id", job.ID))
	log.Info("starting job", zap.String("stage", job.Stage), zap.String("status", string(job.Status)))

	if err := r.gl.PlayJob(ctx, req.ProjectID, job.ID); err != nil {
		return err
	}

	out, err := r.waiter(log).WaitForJob(ctx, req.ProjectID, job.ID)
	if err != nil {
		return err
	}

	noteErr := r.notify(ctx, log, "job "+job.Name+" #"+strconv.FormatInt(job.ID, 10), out, job.WebURL)

	if !out.OK() {
		return &domain.JobExecutionError{ProjectID: req.ProjectID, JobID: job.ID, Name: job.Name, Status: out.Status}
	}
	if noteErr != nil {
		return noteErr
	}

	log.Info("finished executing gitlab job", zap.String("status", string(out.Status)))
	return nil
}

func (r *Runner) lastPipeline(ctx context.Context, pr domain.ProjectRef) (int64, error) {
	if r.state == nil {
		return 0, fmt.Errorf("%w for project %d ref %q", ErrNoRecordedPipeline, pr.ProjectID, pr.Ref)
	}

	s, ok, err := r.state.Last(ctx, pr)
	if err != nil {
		return 0, fmt.Errorf("read run state: %w", err)
	}
	if !ok || s.Pipeline.ID == 0 {
		return 0, fmt.Errorf("%w for project %d ref %q", ErrNoRecordedPipeline, pr.ProjectID, pr.Ref)
	}
	return s.Pipeline.ID, nil
}

func (r *Runner) record(ctx context.Context, log *zap.Logger, pr domain.ProjectRef, p domain.Pipeline) {
	if r.state == nil {
		return
	}

	err := r.state.Write(ctx, domain.Snapshot{Project: pr, Pipeline: p, Retrieved: time.Now().Unix()})
	if err != nil {
		log.Warn("run state write failed", zap.Error(err))
	}
}

// notify returns the notifier's error; a soft notifier never has one. An
// execution error of the run takes precedence over it.
func (r *Runner) notify(ctx context.Context, log *zap.Logger, what string, out domain.Outcome, url string) error {
	if r.note == nil {
		return nil
	}
	if err := r.note.Notify(ctx, titleFor(out.State), what+": "+string(out.Status), url, out.OK()); err != nil {
		log.Warn("desktop notification failed", zap.Error(err))
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

func titleFor(s domain.PollState) string {
	switch s {
	case domain.Succeeded:
		return "✅ CI: success"
	case domain.Failed:
		return "❌ CI: failed"
	case domain.Canceled:
		return "⛔ CI: canceled"
	case domain.Skipped:
		return "⏭️ CI: skipped"
	default:
		return "ℹ️ CI: " + s.String()
	}
}
