package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tbrumbaugh5396/meta/internal/apply"
	"github.com/tbrumbaugh5396/meta/internal/cliutil"
	"github.com/tbrumbaugh5396/meta/pkg/console"
)

// NewPlanCommand creates the plan command: a dry-run materialization
// plan for an environment, diffed against current on-disk state.
func NewPlanCommand() *cobra.Command {
	var env string
	var locked bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the materialization plan for an environment without applying it",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{LoadManifest: true})
			if err != nil {
				return err
			}
			defer r.Close()

			targetEnv := r.Environment(env)
			policy := apply.DefaultPolicy
			policy.Locked = locked

			plan, err := apply.Plan(context.Background(), r.Ctx.WorkspaceRoot, r.Manifest, targetEnv, policy, r.ComponentDir, r.Inspector())
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(plan.Order))
			for _, name := range plan.Order {
				cp := plan.Components[name]
				rows = append(rows, []string{cp.Name, string(cp.Action), cp.FromPin, cp.ToPin})
			}
			fmt.Print(console.RenderTable(console.TableConfig{
				Title:   fmt.Sprintf("plan: %s", targetEnv),
				Headers: []string{"component", "action", "from", "to"},
				Rows:    rows,
			}))
			return nil
		},
	}

	cmd.Flags().StringVar(&env, "env", "", "Environment to plan (default: configured default_env)")
	cmd.Flags().BoolVar(&locked, "locked", false, "Resolve pins from the environment's lock file instead of the manifest")
	return cmd
}
