package notify_libnotify

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Notifier shells out to notify-send. A soft notifier swallows failures, for
// hosts without a notification daemon; a strict one returns them.
type Notifier struct {
	soft bool
	opt  Options
	exec func(ctx context.Context, name string, args ...string) error
}

// Options.FailureUrgency is used for runs that did not succeed and falls back
// to Urgency when empty.
type Options struct {
	Urgency        string
	FailureUrgency string
	Expire         time.Duration
}

func New(opt Options) *Notifier     { return &Notifier{soft: false, opt: opt, exec: run} }
func NewSoft(opt Options) *Notifier { return &Notifier{soft: true, opt: opt, exec: run} }

func (n *Notifier) Notify(ctx context.Context, title, body, url string, ok bool) error {
	if err := n.exec(ctx, "notify-send", n.args(title, body, url, ok)...); err != nil {
		if n.soft {
			return nil
		}
		return err
	}
	return nil
}

func (n *Notifier) args(title, body, url string, ok bool) []string {
	if strings.TrimSpace(url) != "" {
		if body == "" {
			body = url
		} else {
			body = body + "\n" + url
		}
	}

	args := []string{"--app-name=gitlab-ci-runner"}
	urgency := n.opt.Urgency
	if !ok && n.opt.FailureUrgency != "" {
		urgency = n.opt.FailureUrgency
	}
	if urgency != "" {
		args = append(args, "--urgency="+urgency)
	}
	if n.opt.Expire > 0 {
		ms := strconv.Itoa(int(n.opt.Expire / time.Millisecond))
		args = append(args, "--expire-time="+ms)
	}
	return append(args, title, body)
}

func run(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}
