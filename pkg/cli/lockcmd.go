package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tbrumbaugh5396/meta/internal/cliutil"
	"github.com/tbrumbaugh5396/meta/internal/lock"
	"github.com/tbrumbaugh5396/meta/internal/meta"
	"github.com/tbrumbaugh5396/meta/pkg/console"
)

// NewLockCommand creates the lock command group: generate (default),
// validate, promote, and compare.
func NewLockCommand() *cobra.Command {
	var env string

	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Generate and manage environment lock files",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{LoadManifest: true})
			if err != nil {
				return err
			}
			defer r.Close()

			targetEnv := r.Environment(env)
			l, err := lock.Generate(context.Background(), r.Ctx.WorkspaceRoot, r.Manifest, targetEnv, r.ComponentDir, r.Git)
			if err != nil {
				return err
			}

			fmt.Println(console.FormatSuccessMessage(fmt.Sprintf("wrote lock for %q (%d component(s))", l.Environment, componentCount(l))))
			return nil
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "Environment to lock (default: configured default_env)")

	cmd.AddCommand(newLockValidateCommand(), newLockPromoteCommand(), newLockCompareCommand())
	return cmd
}

func componentCount(l *meta.Lock) int {
	if len(l.Reference) > 0 {
		return len(l.Reference)
	}
	return len(l.Vendored)
}

func newLockValidateCommand() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate an environment's lock file against its manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{LoadManifest: true})
			if err != nil {
				return err
			}
			defer r.Close()

			targetEnv := r.Environment(env)
			result, err := lock.Validate(r.Ctx.WorkspaceRoot, r.Manifest, targetEnv)
			if err != nil {
				return err
			}
			if result.OK {
				fmt.Println(console.FormatSuccessMessage(fmt.Sprintf("lock for %q matches the manifest", targetEnv)))
				return nil
			}
			rows := make([][]string, 0, len(result.Discrepancies))
			for _, d := range result.Discrepancies {
				rows = append(rows, []string{d.Component, d.Kind, d.Detail})
			}
			fmt.Print(console.RenderTable(console.TableConfig{
				Title:   fmt.Sprintf("lock discrepancies: %s", targetEnv),
				Headers: []string{"component", "kind", "detail"},
				Rows:    rows,
			}))
			return fmt.Errorf("lock for %q does not match the manifest", targetEnv)
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "Environment to validate (default: configured default_env)")
	return cmd
}

func newLockPromoteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "promote <src> <dst>",
		Short: "Copy a lock file from one environment to another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{LoadManifest: true})
			if err != nil {
				return err
			}
			defer r.Close()

			l, err := lock.Promote(r.Ctx.WorkspaceRoot, r.Manifest, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Println(console.FormatSuccessMessage(fmt.Sprintf("promoted lock %s -> %s (%d component(s))", args[0], args[1], componentCount(l))))
			return nil
		},
	}
}

func newLockCompareCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <envA> <envB>",
		Short: "Diff two environments' lock files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{})
			if err != nil {
				return err
			}
			defer r.Close()

			diff, err := lock.Compare(r.Ctx.WorkspaceRoot, args[0], args[1])
			if err != nil {
				return err
			}

			var rows [][]string
			for _, name := range diff.OnlyInA {
				rows = append(rows, []string{name, "only in " + args[0], "", ""})
			}
			for _, name := range diff.OnlyInB {
				rows = append(rows, []string{name, "only in " + args[1], "", ""})
			}
			for _, c := range diff.Changed {
				rows = append(rows, []string{c.Component, c.Field, c.From, c.To})
			}
			fmt.Print(console.RenderTable(console.TableConfig{
				Title:   fmt.Sprintf("lock diff: %s vs %s", args[0], args[1]),
				Headers: []string{"component", "field", "from", "to"},
				Rows:    rows,
			}))
			return nil
		},
	}
}
