package application

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/davarch/gitlab-ci-runner/internal/domain"
	"go.uber.org/zap"
)

// DefaultInterval is the pause before every status fetch.
const DefaultInterval = 15 * time.Second

// Waiter polls a pipeline or job until GitLab reports a terminal status.
// There is no overall deadline: the wait ends on a terminal status, a failed
// fetch, or ctx being done.
type Waiter struct {
	log    *zap.Logger
	gl     domain.GitlabClient
	policy func() backoff.BackOff
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewWaiter paces polls every interval; a non-positive interval means
// DefaultInterval.
func NewWaiter(l *zap.Logger, gl domain.GitlabClient, every time.Duration) *Waiter {
	return &Waiter{
		log:    l,
		gl:     gl,
		policy: FixedPolicy(every, 0),
		sleep:  sleepContext,
	}
}

// FixedPolicy pauses every interval before each fetch. maxPolls > 0 bounds
// the number of fetches, after which the wait ends with ErrPollStopped.
func FixedPolicy(every time.Duration, maxPolls uint64) func() backoff.BackOff {
	if every <= 0 {
		every = DefaultInterval
	}
	return func() backoff.BackOff {
		var b backoff.BackOff = backoff.NewConstantBackOff(every)
		if maxPolls > 0 {
			b = backoff.WithMaxRetries(b, maxPolls)
		}
		return b
	}
}

// WithPolicy replaces the pacing policy. A policy returning backoff.Stop
// ends the wait with ErrPollStopped.
func (w *Waiter) WithPolicy(policy func() backoff.BackOff) *Waiter {
	if policy != nil {
		w.policy = policy
	}
	return w
}

func (w *Waiter) WaitForPipeline(ctx context.Context, projectID int64, p domain.Pipeline) (domain.Outcome, error) {
	return w.wait(ctx, "pipeline", func(ctx context.Context) (domain.Status, error) {
		cur, err := w.gl.GetPipeline(ctx, projectID, p.ID)
		if err != nil {
			return "", err
		}
		return cur.Status, nil
	})
}

func (w *Waiter) WaitForJob(ctx context.Context, projectID, jobID int64) (domain.Outcome, error) {
	return w.wait(ctx, "job", func(ctx context.Context) (domain.Status, error) {
		j, err := w.gl.GetJob(ctx, projectID, jobID)
		if err != nil {
			return "", err
		}
		return j.Status, nil
	})
}

func (w *Waiter) wait(ctx context.Context, kind string, fetch func(context.Context) (domain.Status, error)) (domain.Outcome, error) {
	b := w.policy()
	b.Reset()

	var last domain.Status
	for {
		d := b.NextBackOff()
		if d == backoff.Stop {
			return domain.Outcome{Status: last, State: domain.InProgress}, domain.ErrPollStopped
		}

		if err := w.sleep(ctx, d); err != nil {
			return domain.Outcome{Status: last, State: domain.InProgress}, err
		}

		w.log.Info("checking " + kind + " status")
		status, err := fetch(ctx)
		if err != nil {
			return domain.Outcome{Status: last, State: domain.InProgress}, err
		}
		last = status

		st := domain.Transition(status)
		if !st.Terminal() {
			w.log.Debug(kind+" in progress", zap.String("status", string(status)))
			continue
		}

		w.log.Info(terminalMessage(kind, st), zap.String("status", string(status)))
		return domain.Outcome{Status: status, State: st}, nil
	}
}

func terminalMessage(kind string, st domain.PollState) string {
	switch st {
	case domain.Succeeded:
		return kind + " succeeded"
	case domain.Failed:
		return kind + " failed"
	case domain.Canceled:
		return kind + " was canceled"
	default:
		return kind + " was skipped"
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
