package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tbrumbaugh5396/meta/internal/cliutil"
	"github.com/tbrumbaugh5396/meta/internal/health"
)

// NewStatusCommand creates the status command: a quick per-component
// health summary (existence, pin match, dependency presence) with no
// build or test verification.
func NewStatusCommand() *cobra.Command {
	var env string
	var only []string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show each component's on-disk status against its pinned target",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{LoadManifest: true})
			if err != nil {
				return err
			}
			defer r.Close()

			targetEnv := r.Environment(env)
			report, err := health.Run(context.Background(), r.Manifest, targetEnv, r.ComponentDir, r.Inspector(), health.CheckOptions{}, only)
			if err != nil {
				return err
			}

			fmt.Print(health.Render(report))
			return nil
		},
	}

	cmd.Flags().StringVar(&env, "env", "", "Environment to check (default: configured default_env)")
	cmd.Flags().StringSliceVar(&only, "component", nil, "Restrict the report to the named components")
	return cmd
}
