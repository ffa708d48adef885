package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tbrumbaugh5396/meta/internal/cliutil"
	"github.com/tbrumbaugh5396/meta/pkg/console"
)

// NewRollbackCommand creates the rollback command group: component,
// lock, store, snapshot, changeset, and list.
func NewRollbackCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Revert components, environments, or changesets to a prior state",
	}
	cmd.AddCommand(
		newRollbackComponentCommand(),
		newRollbackLockCommand(),
		newRollbackStoreCommand(),
		newRollbackSnapshotCommand(),
		newRollbackChangesetCommand(),
		newRollbackListCommand(),
	)
	return cmd
}

func newRollbackComponentCommand() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "component <name> <target>",
		Short: "Roll back a single component to a prior version or commit sha",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{LoadManifest: true})
			if err != nil {
				return err
			}
			defer r.Close()

			targetEnv := r.Environment(env)
			result, err := r.Rollback.Component(context.Background(), r.Manifest, targetEnv, args[0], args[1])
			if err != nil {
				return err
			}
			renderApplyResult(result, 0)
			return nil
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "Environment to roll back in (default: configured default_env)")
	return cmd
}

func newRollbackLockCommand() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "lock <lock-file-path>",
		Short: "Roll back an environment to the pin set recorded in a lock file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{LoadManifest: true})
			if err != nil {
				return err
			}
			defer r.Close()

			targetEnv := r.Environment(env)
			result, err := r.Rollback.Lock(context.Background(), r.Manifest, targetEnv, args[0])
			if err != nil {
				return err
			}
			renderApplyResult(result, 0)
			return nil
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "Environment to roll back (default: configured default_env)")
	return cmd
}

func newRollbackStoreCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "store <name> <hash>",
		Short: "Restore a component's working tree directly from a content-addressed store hash",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{})
			if err != nil {
				return err
			}
			defer r.Close()

			if err := r.Rollback.FromStoreHash(context.Background(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Println(console.FormatSuccessMessage(fmt.Sprintf("restored %q from store hash %s", args[0], args[1])))
			return nil
		},
	}
}

func newRollbackSnapshotCommand() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "snapshot <id-or-path>",
		Short: "Roll back an environment to a previously captured snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{LoadManifest: true})
			if err != nil {
				return err
			}
			defer r.Close()

			targetEnv := r.Environment(env)
			result, err := r.Rollback.Snapshot(context.Background(), r.Manifest, targetEnv, args[0])
			if err != nil {
				return err
			}
			renderApplyResult(result, 0)
			return nil
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "Environment to roll back (default: configured default_env)")
	return cmd
}

func newRollbackChangesetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "changeset <id>",
		Short: "Revert every commit recorded in a changeset, in reverse dependency order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{})
			if err != nil {
				return err
			}
			defer r.Close()

			cs, err := r.Rollback.Changeset(context.Background(), args[0], r.Git)
			if err != nil {
				return err
			}
			fmt.Println(console.FormatSuccessMessage(fmt.Sprintf("rolled back changeset %s (%d commit(s) reverted)", cs.ID, len(cs.Repos))))
			return nil
		},
	}
}

func newRollbackListCommand() *cobra.Command {
	var envs []string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every rollback-eligible target present in the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{})
			if err != nil {
				return err
			}
			defer r.Close()

			if len(envs) == 0 {
				envs = []string{r.Environment("")}
			}
			listing, err := r.Rollback.List(envs)
			if err != nil {
				return err
			}

			fmt.Print(console.RenderList("locks", listing.Locks))
			snapshotIDs := make([]string, 0, len(listing.Snapshots))
			for _, s := range listing.Snapshots {
				snapshotIDs = append(snapshotIDs, fmt.Sprintf("%s (%s, %s)", s.ID, s.Environment, s.CreatedAt.Format("2006-01-02T15:04:05Z07:00")))
			}
			fmt.Print(console.RenderList("snapshots", snapshotIDs))
			fmt.Print(console.RenderList("changesets", listing.Changesets))
			for component, entries := range listing.StoreByComponent {
				hashes := make([]string, 0, len(entries))
				for _, e := range entries {
					hashes = append(hashes, e.Hash)
				}
				fmt.Print(console.RenderList("store: "+component, hashes))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&envs, "env", nil, "Environments to check for lock files (default: configured default_env)")
	return cmd
}
