package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/davarch/gitlab-ci-runner/internal/application"
	"github.com/spf13/cobra"
)

var (
	jobName       string
	jobPipelineID int64
	jobListJSON   bool
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Play and inspect jobs of a pipeline",
}

var jobRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Play a job by name and wait until it finishes",
	Long: "Play a job by name and wait until it finishes.\n" +
		"Without --pipeline-id the last pipeline recorded by `pipeline run` for the project and ref is used.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		return newRunner(cfg, log).RunJob(ctx, application.JobRequest{
			ProjectID:  cfg.Project.ID,
			Ref:        cfg.Project.Ref,
			PipelineID: jobPipelineID,
			JobName:    jobName,
		})
	},
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the jobs of a pipeline",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		jobs, err := newClient(cfg).ListJobs(cmd.Context(), cfg.Project.ID, jobPipelineID)
		if err != nil {
			return err
		}

		if jobListJSON {
			return writeJSON(cmd.OutOrStdout(), viewJobs(jobs))
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tNAME\tSTAGE\tSTATUS")
		for _, j := range jobs {
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", j.ID, j.Name, j.Stage, j.Status)
		}
		return w.Flush()
	},
}

func init() {
	jobRunCmd.Flags().StringVar(&jobName, "name", "", "job name, matched ignoring case")
	jobRunCmd.Flags().Int64Var(&jobPipelineID, "pipeline-id", 0, "pipeline containing the job")
	_ = jobRunCmd.MarkFlagRequired("name")

	jobListCmd.Flags().Int64Var(&jobPipelineID, "pipeline-id", 0, "pipeline to list")
	jobListCmd.Flags().BoolVar(&jobListJSON, "json", false, "print JSON")
	_ = jobListCmd.MarkFlagRequired("pipeline-id")

	jobCmd.AddCommand(jobRunCmd, jobListCmd)
	rootCmd.AddCommand(jobCmd)
}
