package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/davarch/gitlab-ci-runner/internal/application"
	"github.com/davarch/gitlab-ci-runner/internal/domain"
	"github.com/davarch/gitlab-ci-runner/internal/infrastructure/config"
	"github.com/davarch/gitlab-ci-runner/internal/infrastructure/gitlab_http"
	"github.com/davarch/gitlab-ci-runner/internal/infrastructure/logging"
	"github.com/davarch/gitlab-ci-runner/internal/infrastructure/notify_libnotify"
	"github.com/davarch/gitlab-ci-runner/internal/infrastructure/state_fs"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgPath string
	version = "dev"

	flagBaseURL   string
	flagToken     string
	flagInterval  time.Duration
	flagMaxPolls  uint64
	flagLogLevel  string
	flagProjectID int64
	flagRef       string
)

var rootCmd = &cobra.Command{
	Use:           "gitlab-ci-runner",
	Short:         "Trigger GitLab pipelines and jobs and wait for them to finish",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "config.yaml", "path to config.yaml")
	pf.StringVar(&flagBaseURL, "base-url", "", "GitLab API base URL, e.g. https://gitlab.com/api/v4")
	pf.StringVar(&flagToken, "token", "", "GitLab private token")
	pf.DurationVar(&flagInterval, "interval", 0, "pause between status checks")
	pf.Uint64Var(&flagMaxPolls, "max-polls", 0, "give up after this many status checks, 0 waits until the run finishes")
	pf.StringVar(&flagLogLevel, "log-level", "", "debug, info, warn or error")
	pf.Int64Var(&flagProjectID, "project-id", 0, "numeric GitLab project id")
	pf.StringVar(&flagRef, "ref", "", "branch or tag")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(*cobra.Command, []string) {
			fmt.Println(version)
		},
	})

	comp := &cobra.Command{
		Use:       "completion [bash|zsh|fish|powershell]",
		Short:     "Generate shell completion scripts",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return rootCmd.GenBashCompletion(os.Stdout)
			case "zsh":
				return rootCmd.GenZshCompletion(os.Stdout)
			case "fish":
				return rootCmd.GenFishCompletion(os.Stdout, true)
			case "powershell":
				return rootCmd.GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return nil
		},
	}

	rootCmd.AddCommand(comp)
}

// loadConfig reads the config file and environment, then applies the flags
// that were set explicitly on cmd.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(cfgPath)
	switch {
	case errors.Is(err, config.ErrTokenRequired) && flagToken != "":
	case err != nil:
		return cfg, err
	}

	f := cmd.Flags()
	if f.Changed("token") {
		cfg.GitLab.Token = flagToken
	}
	if f.Changed("base-url") {
		cfg.GitLab.BaseURL = flagBaseURL
	}
	if f.Changed("interval") {
		cfg.Poll.Interval = flagInterval
	}
	if f.Changed("max-polls") {
		cfg.Poll.MaxPolls = flagMaxPolls
	}
	if f.Changed("log-level") {
		cfg.Log.Level = flagLogLevel
	}
	if f.Changed("project-id") {
		cfg.Project.ID = flagProjectID
	}
	if f.Changed("ref") {
		cfg.Project.Ref = flagRef
	}
	cfg.Normalize()

	if cfg.Project.ID <= 0 {
		return cfg, fmt.Errorf("project id is required (--project-id or GITLAB_PROJECT_ID)")
	}
	return cfg, nil
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
}

func newClient(cfg config.Config) *gitlab_http.Client {
	return gitlab_http.New(cfg.GitLab.BaseURL, cfg.GitLab.Token, cfg.GitLab.Timeout)
}

// newRunner builds a fresh client per invocation; nothing is shared between runs.
func newRunner(cfg config.Config, log *zap.Logger) *application.Runner {
	var note domain.Notifier
	if cfg.Notify.Enabled {
		opt := notify_libnotify.Options{
			Urgency:        cfg.Notify.Urgency,
			FailureUrgency: cfg.Notify.FailureUrgency,
			Expire:         cfg.Notify.Expire,
		}
		if cfg.Notify.Strict {
			note = notify_libnotify.New(opt)
		} else {
			note = notify_libnotify.NewSoft(opt)
		}
	}

	var state domain.StateStore
	if cfg.State.Path != "" {
		state = state_fs.New(cfg.State.Path)
	}

	return application.NewRunner(log, newClient(cfg), note, state, cfg.Poll.Interval).
		WithPolicy(application.FixedPolicy(cfg.Poll.Interval, cfg.Poll.MaxPolls))
}
