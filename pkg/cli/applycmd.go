package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tbrumbaugh5396/meta/internal/apply"
	"github.com/tbrumbaugh5396/meta/internal/cliutil"
	"github.com/tbrumbaugh5396/meta/internal/health"
	"github.com/tbrumbaugh5396/meta/pkg/console"
)

// NewApplyCommand creates the apply command: pre-apply invariant
// checks followed by dependency-ordered materialization.
func NewApplyCommand() *cobra.Command {
	var env string
	var locked bool
	var jobs int
	var continueOnError bool
	var retries int
	var skipPackages bool
	var only []string

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Materialize an environment's components into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{LoadManifest: true})
			if err != nil {
				return err
			}
			defer r.Close()

			targetEnv := r.Environment(env)

			if err := health.PreApply(r.Ctx.WorkspaceRoot, r.Manifest, targetEnv, health.PreApplyOptions{
				Locked:    locked,
				Changelog: r.Changelog,
			}); err != nil {
				return err
			}

			policy := r.Apply.Policy
			policy.Locked = locked
			policy.ContinueOnError = continueOnError
			policy.SkipPackages = skipPackages
			policy.Only = only
			if jobs > 0 {
				policy.ParallelJobs = jobs
			}
			if retries > 0 {
				policy.RetryCount = retries
			}

			started := time.Now()
			result, err := r.Apply.ApplyWithPolicy(context.Background(), r.Manifest, targetEnv, policy)
			if err != nil {
				return err
			}

			renderApplyResult(result, time.Since(started))

			outcome := "ok"
			if len(result.Failed) > 0 {
				outcome = "failed"
			}
			r.Audit.Record("apply", targetEnv, outcome, fmt.Sprintf("succeeded=%d failed=%d skipped=%d", len(result.Succeeded), len(result.Failed), len(result.Skipped)))

			if len(result.Failed) > 0 {
				return fmt.Errorf("apply to %q failed for %d component(s)", targetEnv, len(result.Failed))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&env, "env", "", "Environment to apply (default: configured default_env)")
	cmd.Flags().BoolVar(&locked, "locked", false, "Resolve pins from the environment's lock file instead of the manifest")
	cmd.Flags().IntVar(&jobs, "jobs", 0, "Worker pool width (default: configured parallel_jobs)")
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "Keep materializing independent components after a failure")
	cmd.Flags().IntVar(&retries, "retry", 0, "Per-component retry attempts beyond the first (default: 2)")
	cmd.Flags().BoolVar(&skipPackages, "skip-packages", false, "Skip the package-manager install step")
	cmd.Flags().StringSliceVar(&only, "only", nil, "Restrict materialization to the named components")
	return cmd
}

func renderApplyResult(result *apply.Result, elapsed time.Duration) {
	rows := make([][]string, 0, len(result.Components))
	for name, cr := range result.Components {
		status := "ok"
		if cr.Skipped {
			status = "skipped"
		} else if cr.Error != "" {
			status = "failed: " + cr.Error
		}
		cache := ""
		if cr.CacheHit {
			cache = "hit"
		}
		rows = append(rows, []string{name, string(cr.Action), status, cache, cr.Duration.Round(time.Millisecond).String()})
	}
	fmt.Print(console.RenderTable(console.TableConfig{
		Title:   fmt.Sprintf("apply: %s (%s)", result.Environment, elapsed.Round(time.Millisecond)),
		Headers: []string{"component", "action", "status", "cache", "duration"},
		Rows:    rows,
	}))
	if result.Cancelled {
		fmt.Println(console.FormatWarningMessage("apply was cancelled"))
	}
}
