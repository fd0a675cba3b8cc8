package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/davarch/gitlab-ci-runner/internal/infrastructure/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config.yaml",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(cfgPath); err == nil && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}

		c := config.Defaults()
		c.GitLab.BaseURL = orFlag(flagBaseURL, c.GitLab.BaseURL)
		c.Project.Ref = orFlag(flagRef, c.Project.Ref)
		c.Project.ID = flagProjectID

		if err := config.Save(cfgPath, c); err != nil {
			return err
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (set GITLAB_TOKEN and GITLAB_TRIGGER_TOKEN in the environment)\n", cfgPath)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")
	rootCmd.AddCommand(initCmd)
}

func orFlag(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
