package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tbrumbaugh5396/meta/internal/config"
	"github.com/tbrumbaugh5396/meta/pkg/console"
)

// NewConfigCommand creates the config command group: get, set, unset,
// and init, all operating on either the project or global config file
// per --global.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and write workspace and global configuration",
	}
	cmd.AddCommand(
		newConfigGetCommand(),
		newConfigSetCommand(),
		newConfigUnsetCommand(),
		newConfigInitCommand(),
	)
	return cmd
}

func newConfigGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the resolved value of a configuration key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workspaceRoot, err := os.Getwd()
			if err != nil {
				return err
			}
			settings, err := config.Load(workspaceRoot, nil)
			if err != nil {
				return err
			}
			value, err := config.Get(settings, args[0])
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil
		},
	}
	return cmd
}

func newConfigSetCommand() *cobra.Command {
	var global bool
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write a configuration key to the project or global config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			workspaceRoot, err := os.Getwd()
			if err != nil {
				return err
			}
			path := config.ConfigPath(workspaceRoot, global)
			if err := config.Set(path, args[0], args[1]); err != nil {
				return err
			}
			fmt.Println(console.FormatSuccessMessage(fmt.Sprintf("set %s=%s in %s", args[0], args[1], path)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&global, "global", false, "Act on the global config file instead of the project one")
	return cmd
}

func newConfigUnsetCommand() *cobra.Command {
	var global bool
	cmd := &cobra.Command{
		Use:   "unset <key>",
		Short: "Reset a configuration key to its built-in default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workspaceRoot, err := os.Getwd()
			if err != nil {
				return err
			}
			path := config.ConfigPath(workspaceRoot, global)
			if err := config.Unset(path, args[0]); err != nil {
				return err
			}
			fmt.Println(console.FormatSuccessMessage(fmt.Sprintf("reset %s in %s", args[0], path)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&global, "global", false, "Act on the global config file instead of the project one")
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var global, force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file, prompting interactively on a terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspaceRoot, err := os.Getwd()
			if err != nil {
				return err
			}
			path, err := config.Init(workspaceRoot, global, force)
			if err != nil {
				return err
			}
			fmt.Println(console.FormatSuccessMessage(fmt.Sprintf("wrote config to %s", path)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&global, "global", false, "Write the global config file instead of the project one")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}
