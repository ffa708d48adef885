package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tbrumbaugh5396/meta/internal/changeset"
	"github.com/tbrumbaugh5396/meta/internal/cliutil"
	"github.com/tbrumbaugh5396/meta/pkg/console"
)

// NewChangesetCommand creates the changeset command group: create,
// show, list, current, finalize, rollback, and bisect.
func NewChangesetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "changeset",
		Short: "Track and inspect coordinated cross-component commits",
	}
	cmd.AddCommand(
		newChangesetCreateCommand(),
		newChangesetShowCommand(),
		newChangesetListCommand(),
		newChangesetCurrentCommand(),
		newChangesetFinalizeCommand(),
		newChangesetRollbackCommand(),
		newChangesetBisectCommand(),
	)
	return cmd
}

func newChangesetCreateCommand() *cobra.Command {
	var author, description string
	cmd := &cobra.Command{
		Use:   "create <component...>",
		Short: "Start a new in-progress changeset spanning the named components",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{})
			if err != nil {
				return err
			}
			defer r.Close()

			cs, err := r.Changelog.Create(author, description, args)
			if err != nil {
				return err
			}
			fmt.Println(console.FormatSuccessMessage(fmt.Sprintf("created changeset %s", cs.ID)))
			return nil
		},
	}
	cmd.Flags().StringVar(&author, "author", "", "Changeset author")
	cmd.Flags().StringVar(&description, "description", "", "Changeset description")
	return cmd
}

func newChangesetShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one changeset's recorded commits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{})
			if err != nil {
				return err
			}
			defer r.Close()

			cs, err := r.Changelog.Get(args[0])
			if err != nil {
				return err
			}
			return changeset.Render(os.Stdout, cs, changeset.IsOutputTTY(os.Stdout.Fd()))
		},
	}
}

func newChangesetListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every recorded changeset",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{})
			if err != nil {
				return err
			}
			defer r.Close()

			list, err := r.Changelog.List()
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(list))
			for _, cs := range list {
				rows = append(rows, []string{cs.ID, string(cs.Status), cs.Author, cs.Description})
			}
			fmt.Print(console.RenderTable(console.TableConfig{
				Title:   "changesets",
				Headers: []string{"id", "status", "author", "description"},
				Rows:    rows,
			}))
			return nil
		},
	}
}

func newChangesetCurrentCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Show the currently in-progress changeset, if any",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{})
			if err != nil {
				return err
			}
			defer r.Close()

			cs, err := r.Changelog.Current()
			if err != nil {
				return err
			}
			if cs == nil {
				fmt.Println(console.FormatInfoMessage("no changeset is in-progress"))
				return nil
			}
			return changeset.Render(os.Stdout, cs, changeset.IsOutputTTY(os.Stdout.Fd()))
		},
	}
}

func newChangesetFinalizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "finalize <id>",
		Short: "Commit an in-progress changeset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{})
			if err != nil {
				return err
			}
			defer r.Close()

			cs, err := r.Changelog.Finalize(args[0])
			if err != nil {
				return err
			}
			fmt.Println(console.FormatSuccessMessage(fmt.Sprintf("finalized changeset %s", cs.ID)))
			return nil
		},
	}
}

func newChangesetRollbackCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <id>",
		Short: "Revert every commit recorded in a changeset",
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
			fmt.Println(console.FormatSuccessMessage(fmt.Sprintf("rolled back changeset %s", cs.ID)))
			return nil
		},
	}
}

func newChangesetBisectCommand() *cobra.Command {
	var testCommand string
	cmd := &cobra.Command{
		Use:   "bisect <start-id> <end-id>",
		Short: "Binary-search committed changesets for the one that broke testCommand",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{LoadManifest: true})
			if err != nil {
				return err
			}
			defer r.Close()

			materialize := func(ctx context.Context, changesetID string) error {
				_, err := r.Rollback.Changeset(ctx, changesetID, r.Git)
				if err != nil {
					return err
				}
				_, err = r.Apply.Apply(ctx, r.Manifest, r.Environment(""))
				return err
			}

			result, err := r.Changelog.Bisect(context.Background(), args[0], args[1], testCommand, r.Ctx.WorkspaceRoot, materialize)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(result.Steps))
			for _, s := range result.Steps {
				passed := "fail"
				if s.Passed {
					passed = "pass"
				}
				rows = append(rows, []string{s.ChangesetID, passed})
			}
			fmt.Print(console.RenderTable(console.TableConfig{
				Title:   fmt.Sprintf("bisect: culprit %s", result.Culprit),
				Headers: []string{"changeset", "result"},
				Rows:    rows,
			}))
			return nil
		},
	}
	cmd.Flags().StringVar(&testCommand, "test", "", "Shell command that exits non-zero on failure")
	cmd.MarkFlagRequired("test")
	return cmd
}
