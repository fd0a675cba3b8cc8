package cli

import (
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/davarch/gitlab-ci-runner/internal/application"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	flagTriggerToken string
	pipelineJSON     bool
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Trigger and inspect pipelines",
}

var pipelineRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Trigger a pipeline and wait until it finishes; prints the pipeline id",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("trigger-token") {
			cfg.GitLab.TriggerToken = flagTriggerToken
		}
		if cfg.GitLab.TriggerToken == "" {
			return errors.New("trigger token is required (--trigger-token or GITLAB_TRIGGER_TOKEN)")
		}

		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		log.Debug("start",
			zap.String("version", version),
			zap.String("gitlab", cfg.GitLab.BaseURL),
			zap.Duration("every", cfg.Poll.Interval),
			zap.String("state", cfg.State.Path),
		)

		id, err := newRunner(cfg, log).RunPipeline(ctx, application.PipelineRequest{
			ProjectID:    cfg.Project.ID,
			Ref:          cfg.Project.Ref,
			TriggerToken: cfg.GitLab.TriggerToken,
		})
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var pipelineStatusCmd = &cobra.Command{
	Use:   "status <pipeline_id>",
	Short: "Show the current state of a pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid pipeline id %q", args[0])
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		p, err := newClient(cfg).GetPipeline(cmd.Context(), cfg.Project.ID, id)
		if err != nil {
			return err
		}

		if pipelineJSON {
			return writeJSON(cmd.OutOrStdout(), viewPipeline(p))
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tREF\tSHA\tSTATUS\tURL")
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", p.ID, p.Ref, p.SHA, p.Status, p.WebURL)
		return w.Flush()
	},
}

func init() {
	pipelineRunCmd.Flags().StringVar(&flagTriggerToken, "trigger-token", "", "pipeline trigger token")
	pipelineStatusCmd.Flags().BoolVar(&pipelineJSON, "json", false, "print JSON")

	pipelineCmd.AddCommand(pipelineRunCmd, pipelineStatusCmd)
	rootCmd.AddCommand(pipelineCmd)
}
