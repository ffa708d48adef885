package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tbrumbaugh5396/meta/internal/errs"
	"github.com/tbrumbaugh5396/meta/pkg/cli"
	"github.com/tbrumbaugh5396/meta/pkg/console"
	"github.com/tbrumbaugh5396/meta/pkg/constants"
)

// version is set by the release build, dev otherwise.
var version = "dev"

var verboseFlag bool

var rootCmd = &cobra.Command{
	Use:     constants.CLIExtensionPrefix,
	Short:   "Hierarchical meta-repository control plane",
	Version: version,
	Long: `meta manages a hierarchical meta-repository: a manifest of components,
environments, and features materialized either as git checkouts or
vendored trees.

Common Tasks:
  meta validate                # Check the manifest and dependency graph
  meta plan --env prod         # Show what apply would do
  meta apply --env prod        # Materialize an environment
  meta status                  # Show component health
  meta lock                    # Pin an environment's component versions
  meta vendor convert          # Convert an environment to vendored storage

For detailed help on any command, use:
  meta [command] --help`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
	// Every subcommand returns a typed *errs.Error; main maps it to an
	// exit code and prints it once, so cobra's own usage/error dump
	// would just duplicate that.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddGroup(&cobra.Group{ID: "state", Title: "State Commands:"})
	rootCmd.AddGroup(&cobra.Group{ID: "execution", Title: "Execution Commands:"})
	rootCmd.AddGroup(&cobra.Group{ID: "recovery", Title: "Recovery Commands:"})
	rootCmd.AddGroup(&cobra.Group{ID: "maintenance", Title: "Maintenance Commands:"})

	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose output showing detailed information")
	rootCmd.SetOut(os.Stderr)

	rootCmd.SetVersionTemplate(fmt.Sprintf("%s\n%s\n",
		console.FormatInfoMessage(fmt.Sprintf("%s version {{.Version}}", constants.CLIExtensionPrefix)),
		console.FormatInfoMessage("Hierarchical meta-repository control plane")))

	validateCmd := cli.NewValidateCommand()
	planCmd := cli.NewPlanCommand()
	applyCmd := cli.NewApplyCommand()
	statusCmd := cli.NewStatusCommand()
	healthCmd := cli.NewHealthCommand()
	lockCmd := cli.NewLockCommand()

	rollbackCmd := cli.NewRollbackCommand()
	changesetCmd := cli.NewChangesetCommand()

	vendorCmd := cli.NewVendorCommand()
	storeCmd := cli.NewStoreCommand()
	cacheCmd := cli.NewCacheCommand()
	gcCmd := cli.NewGCCommand()
	configCmd := cli.NewConfigCommand()

	validateCmd.GroupID = "state"
	planCmd.GroupID = "state"
	lockCmd.GroupID = "state"
	statusCmd.GroupID = "state"
	healthCmd.GroupID = "state"

	applyCmd.GroupID = "execution"
	vendorCmd.GroupID = "execution"

	rollbackCmd.GroupID = "recovery"
	changesetCmd.GroupID = "recovery"

	storeCmd.GroupID = "maintenance"
	cacheCmd.GroupID = "maintenance"
	gcCmd.GroupID = "maintenance"
	configCmd.GroupID = "maintenance"

	rootCmd.AddCommand(
		validateCmd, planCmd, applyCmd, statusCmd, healthCmd, lockCmd,
		rollbackCmd, changesetCmd,
		vendorCmd,
		storeCmd, cacheCmd, gcCmd, configCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
		var e *errs.Error
		if errors.As(err, &e) {
			os.Exit(e.ExitCode())
		}
		os.Exit(1)
	}
}
