package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tbrumbaugh5396/meta/internal/cliutil"
	"github.com/tbrumbaugh5396/meta/internal/vendorengine"
	"github.com/tbrumbaugh5396/meta/pkg/console"
)

// NewVendorCommand creates the vendor command group: convert, import,
// import-all, status, verify, backup, restore, list-backups, resume,
// list-checkpoints, and release.
func NewVendorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vendor",
		Short: "Convert components between reference and vendored storage mode",
	}
	cmd.AddCommand(
		newVendorConvertCommand(),
		newVendorImportCommand(false),
		newVendorImportCommand(true),
		newVendorStatusCommand(),
		newVendorVerifyCommand(),
		newVendorBackupCommand(),
		newVendorRestoreCommand(),
		newVendorListBackupsCommand(),
		newVendorResumeCommand(),
		newVendorListCheckpointsCommand(),
		newVendorReleaseCommand(),
	)
	return cmd
}

func renderVendorResult(result *vendorengine.Result) {
	rows := make([][]string, 0, len(result.Succeeded)+len(result.Failed))
	for _, name := range result.Succeeded {
		rows = append(rows, []string{name, "ok"})
	}
	for name, detail := range result.Failed {
		rows = append(rows, []string{name, "failed: " + detail})
	}
	fmt.Print(console.RenderTable(console.TableConfig{
		Title:   fmt.Sprintf("vendor %s (txn %s)", result.Direction, result.TransactionID),
		Headers: []string{"component", "status"},
		Rows:    rows,
	}))
	if result.RolledBack {
		fmt.Println(console.FormatWarningMessage("transaction was rolled back"))
	}
}

func newVendorConvertCommand() *cobra.Command {
	var env string
	var atomic bool
	var continueOnError bool
	var failOnSecrets bool
	var failWholeOnSecret bool
	var dryRun bool
	var respectGitignore bool

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert every component in an environment to vendored storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{LoadManifest: true})
			if err != nil {
				return err
			}
			defer r.Close()

			r.Vendor.Policy.Atomic = atomic
			r.Vendor.Policy.ContinueOnError = continueOnError
			r.Vendor.Policy.FailOnSecrets = failOnSecrets
			r.Vendor.Policy.FailWholeOnSecret = failWholeOnSecret
			r.Vendor.Policy.DryRun = dryRun
			r.Vendor.Policy.RespectGitignore = respectGitignore

			result, err := r.Vendor.Convert(context.Background(), r.Manifest, r.Environment(env))
			if err != nil {
				return err
			}
			renderVendorResult(result)
			if len(result.Failed) > 0 {
				return fmt.Errorf("vendor convert failed for %d component(s)", len(result.Failed))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "Environment to convert (default: configured default_env)")
	cmd.Flags().BoolVar(&atomic, "atomic", false, "Roll back the whole transaction on any component failure")
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "Commit over the successful subset; failures wait for resume")
	cmd.Flags().BoolVar(&failOnSecrets, "fail-on-secrets", false, "Abort a component when a secret pattern is found in its tree")
	cmd.Flags().BoolVar(&failWholeOnSecret, "fail-whole-on-secret", false, "With --fail-on-secrets, abort the whole transaction rather than just the component")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Stop after planning; make no filesystem changes")
	cmd.Flags().BoolVar(&respectGitignore, "respect-gitignore", false, "Honor the upstream .gitignore when copying component trees")
	return cmd
}

func newVendorImportCommand(all bool) *cobra.Command {
	use := "import <component...>"
	short := "Vendor only the named components, leaving the rest of the environment untouched"
	if all {
		use = "import-all"
		short = "Vendor every component in an environment"
	}
	var env string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args: func() cobra.PositionalArgs {
			if all {
				return cobra.NoArgs
			}
			return cobra.MinimumNArgs(1)
		}(),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{LoadManifest: true})
			if err != nil {
				return err
			}
			defer r.Close()

			if !all {
				r.Vendor.Policy.Only = args
			}
			result, err := r.Vendor.Convert(context.Background(), r.Manifest, r.Environment(env))
			if err != nil {
				return err
			}
			renderVendorResult(result)
			if len(result.Failed) > 0 {
				return fmt.Errorf("vendor import failed for %d component(s)", len(result.Failed))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "Environment to import (default: configured default_env)")
	return cmd
}

func newVendorStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show every component's on-disk vendored/reference state",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{LoadManifest: true})
			if err != nil {
				return err
			}
			defer r.Close()

			statuses := r.Vendor.Status(r.Manifest)
			rows := make([][]string, 0, len(statuses))
			for name, st := range statuses {
				state := "absent"
				version := ""
				if st.Present {
					state = "reference checkout"
					if st.Provenance != nil {
						state = "vendored"
						version = st.Provenance.Version
					}
				}
				rows = append(rows, []string{name, state, version})
			}
			fmt.Print(console.RenderTable(console.TableConfig{
				Title:   "vendor status",
				Headers: []string{"component", "state", "version"},
				Rows:    rows,
			}))
			return nil
		},
	}
}

func newVendorVerifyCommand() *cobra.Command {
	var scanSecrets bool
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify every vendored component against its recorded provenance",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{LoadManifest: true})
			if err != nil {
				return err
			}
			defer r.Close()

			results := r.Vendor.Verify(r.Manifest, scanSecrets)
			failures := 0
			rows := make([][]string, 0, len(results))
			for name, err := range results {
				status := "ok"
				if err != nil {
					status = err.Error()
					failures++
				}
				rows = append(rows, []string{name, status})
			}
			fmt.Print(console.RenderTable(console.TableConfig{
				Title:   "vendor verify",
				Headers: []string{"component", "result"},
				Rows:    rows,
			}))
			if failures > 0 {
				return fmt.Errorf("vendor verify failed for %d component(s)", failures)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&scanSecrets, "scan-secrets", false, "Also re-scan each vendored tree for secret patterns")
	return cmd
}

func newVendorBackupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Take an on-demand backup of the manifests directory and every component",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{LoadManifest: true})
			if err != nil {
				return err
			}
			defer r.Close()

			name, err := r.Vendor.Backup(r.Manifest)
			if err != nil {
				return err
			}
			fmt.Println(console.FormatSuccessMessage(fmt.Sprintf("wrote backup %s", name)))
			return nil
		},
	}
}

func newVendorRestoreCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <backup-name>",
		Short: "Restore the manifests directory and every component from a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{})
			if err != nil {
				return err
			}
			defer r.Close()

			if err := vendorengine.RestoreBackup(r.Ctx.WorkspaceRoot, args[0]); err != nil {
				return err
			}
			fmt.Println(console.FormatSuccessMessage(fmt.Sprintf("restored backup %s", args[0])))
			return nil
		},
	}
}

func newVendorListBackupsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-backups",
		Short: "List every available backup, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{})
			if err != nil {
				return err
			}
			defer r.Close()

			names, err := vendorengine.ListBackups(r.Ctx.WorkspaceRoot)
			if err != nil {
				return err
			}
			fmt.Print(console.RenderList("backups", names))
			return nil
		},
	}
}

func newVendorResumeCommand() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "resume <transaction-id>",
		Short: "Resume an interrupted conversion transaction, skipping completed components",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{LoadManifest: true})
			if err != nil {
				return err
			}
			defer r.Close()

			result, err := r.Vendor.Resume(context.Background(), r.Manifest, r.Environment(env), args[0])
			if err != nil {
				return err
			}
			renderVendorResult(result)
			if len(result.Failed) > 0 {
				return fmt.Errorf("resume failed for %d component(s)", len(result.Failed))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "Environment being converted (default: configured default_env)")
	return cmd
}

func newVendorListCheckpointsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-checkpoints [transaction-id]",
		Short: "List recorded transactions, or one transaction's per-component checkpoints",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{})
			if err != nil {
				return err
			}
			defer r.Close()

			if len(args) == 0 {
				txns, err := vendorengine.ListTransactions(r.Ctx.WorkspaceRoot)
				if err != nil {
					return err
				}
				fmt.Print(console.RenderList("transactions", txns))
				return nil
			}

			checkpoints, err := vendorengine.ListCheckpoints(r.Ctx.WorkspaceRoot, args[0])
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(checkpoints))
			for name, cp := range checkpoints {
				rows = append(rows, []string{name, string(cp.State), cp.Error})
			}
			fmt.Print(console.RenderTable(console.TableConfig{
				Title:   fmt.Sprintf("checkpoints: %s", args[0]),
				Headers: []string{"component", "state", "error"},
				Rows:    rows,
			}))
			return nil
		},
	}
}

func newVendorReleaseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "release",
		Short: "Convert every vendored component back to a reference checkout",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{LoadManifest: true})
			if err != nil {
				return err
			}
			defer r.Close()

			result, err := r.Vendor.Reverse(context.Background(), r.Manifest)
			if err != nil {
				return err
			}
			renderVendorResult(result)
			if len(result.Failed) > 0 {
				return fmt.Errorf("vendor release failed for %d component(s)", len(result.Failed))
			}
			return nil
		},
	}
	return cmd
}
