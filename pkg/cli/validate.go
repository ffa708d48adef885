package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tbrumbaugh5396/meta/internal/cliutil"
	"github.com/tbrumbaugh5396/meta/internal/health"
	"github.com/tbrumbaugh5396/meta/internal/lock"
	"github.com/tbrumbaugh5396/meta/pkg/console"
)

// NewValidateCommand creates the validate command: manifest load
// (already enforced by cliutil.NewRuntime), resolver cycle/dependency
// checks, lock validation when a lock file exists, and feature
// reference checks.
func NewValidateCommand() *cobra.Command {
	var env string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the manifest, dependency graph, lock file, and features",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{LoadManifest: true})
			if err != nil {
				return err
			}
			defer r.Close()

			targetEnv := r.Environment(env)
			if err := health.PreApply(r.Ctx.WorkspaceRoot, r.Manifest, targetEnv, health.PreApplyOptions{Changelog: r.Changelog}); err != nil {
				return err
			}

			if _, err := lock.Read(r.Ctx.WorkspaceRoot, targetEnv); err == nil {
				if result, err := lock.Validate(r.Ctx.WorkspaceRoot, r.Manifest, targetEnv); err != nil {
					return err
				} else if !result.OK {
					for _, d := range result.Discrepancies {
						fmt.Println(console.FormatWarningMessage(fmt.Sprintf("%s: %s: %s", d.Component, d.Kind, d.Detail)))
					}
					return fmt.Errorf("lock file for %q does not validate against the manifest", targetEnv)
				}
			}

			if err := validateFeatures(r); err != nil {
				return err
			}

			fmt.Println(console.FormatSuccessMessage(fmt.Sprintf("manifest, dependency graph, lock, and features are valid for %q", targetEnv)))
			return nil
		},
	}

	cmd.Flags().StringVar(&env, "env", "", "Environment to validate (default: configured default_env)")
	return cmd
}

func validateFeatures(r *cliutil.Runtime) error {
	for name, f := range r.Manifest.Features {
		for _, c := range f.Components {
			if _, err := r.Manifest.Component(c); err != nil {
				return fmt.Errorf("feature %q: %w", name, err)
			}
		}
		members := map[string]bool{}
		for _, c := range f.Components {
			members[c] = true
		}
		for _, edge := range f.Contracts {
			if !members[edge.Producer] {
				return fmt.Errorf("feature %q: contract producer %q is not a member component", name, edge.Producer)
			}
			if !members[edge.Consumer] {
				return fmt.Errorf("feature %q: contract consumer %q is not a member component", name, edge.Consumer)
			}
		}
	}
	return nil
}
