package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tbrumbaugh5396/meta/internal/cliutil"
	"github.com/tbrumbaugh5396/meta/internal/health"
)

// NewHealthCommand creates the health command: the full per-component
// check, optionally running the build and test verification steps
// status skips.
func NewHealthCommand() *cobra.Command {
	var env string
	var component string
	var all bool
	var build bool
	var tests bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Run the full component health check, optionally building and testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{LoadManifest: true})
			if err != nil {
				return err
			}
			defer r.Close()

			var only []string
			if !all && component != "" {
				only = []string{component}
			}

			targetEnv := r.Environment(env)
			report, err := health.Run(context.Background(), r.Manifest, targetEnv, r.ComponentDir, r.Inspector(), health.CheckOptions{Build: build, Test: tests}, only)
			if err != nil {
				return err
			}

			fmt.Print(health.Render(report))
			return report.Err()
		},
	}

	cmd.Flags().StringVar(&env, "env", "", "Environment to check (default: configured default_env)")
	cmd.Flags().StringVar(&component, "component", "", "Restrict the check to one component")
	cmd.Flags().BoolVar(&all, "all", false, "Check every component (default when --component is omitted)")
	cmd.Flags().BoolVar(&build, "build", false, "Also run the component's build command")
	cmd.Flags().BoolVar(&tests, "tests", false, "Also run the component's test command")
	return cmd
}
