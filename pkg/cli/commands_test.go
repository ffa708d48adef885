package cli

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commandNames(cmd *cobra.Command) []string {
	names := make([]string, 0, len(cmd.Commands()))
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Use)
	}
	return names
}

func TestNewValidateCommand(t *testing.T) {
	cmd := NewValidateCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "validate", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotNil(t, cmd.RunE)
}

func TestNewPlanCommand(t *testing.T) {
	cmd := NewPlanCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "plan", cmd.Use)
	assert.NotNil(t, cmd.RunE)
	assert.NotNil(t, cmd.Flags().Lookup("env"))
}

func TestNewApplyCommand(t *testing.T) {
	cmd := NewApplyCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "apply", cmd.Use)
	assert.NotNil(t, cmd.RunE)
	for _, flag := range []string{"env", "locked", "jobs", "continue-on-error", "retry", "only"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "expected --%s flag", flag)
	}
}

func TestNewStatusCommand(t *testing.T) {
	cmd := NewStatusCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "status", cmd.Use)
	assert.NotNil(t, cmd.RunE)
}

func TestNewHealthCommand(t *testing.T) {
	cmd := NewHealthCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "health", cmd.Use)
	assert.NotNil(t, cmd.RunE)
	assert.NotNil(t, cmd.Flags().Lookup("build"))
	assert.NotNil(t, cmd.Flags().Lookup("tests"))
}

func TestNewLockCommand_HasSubcommands(t *testing.T) {
	cmd := NewLockCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "lock", cmd.Use)
	assert.NotNil(t, cmd.RunE)

	names := commandNames(cmd)
	for _, expected := range []string{"validate", "promote <src> <dst>", "compare <envA> <envB>"} {
		assert.Contains(t, names, expected)
	}
}

func TestNewRollbackCommand_HasSubcommands(t *testing.T) {
	cmd := NewRollbackCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "rollback", cmd.Use)

	names := commandNames(cmd)
	for _, expected := range []string{
		"component <name> <target>", "lock <lock-file-path>", "store <name> <hash>",
		"snapshot <id-or-path>", "changeset <id>", "list",
	} {
		assert.Contains(t, names, expected)
	}
}

func TestNewChangesetCommand_HasSubcommands(t *testing.T) {
	cmd := NewChangesetCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "changeset", cmd.Use)

	names := commandNames(cmd)
	for _, expected := range []string{
		"create <component...>", "show <id>", "list", "current",
		"finalize <id>", "rollback <id>", "bisect <start-id> <end-id>",
	} {
		assert.Contains(t, names, expected)
	}
}

func TestChangesetBisectCommand_RequiresTestFlag(t *testing.T) {
	cmd := newChangesetBisectCommand()
	require.NotNil(t, cmd)
	flag := cmd.Flags().Lookup("test")
	require.NotNil(t, flag)
	assert.NoError(t, cmd.Args(cmd, []string{"start", "end"}))
}

func TestNewVendorCommand_HasSubcommands(t *testing.T) {
	cmd := NewVendorCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "vendor", cmd.Use)

	names := commandNames(cmd)
	for _, expected := range []string{
		"convert", "import <component...>", "import-all", "status", "verify",
		"backup", "restore <backup-name>", "list-backups", "resume <transaction-id>",
		"list-checkpoints [transaction-id]", "release",
	} {
		assert.Contains(t, names, expected)
	}
}

func TestVendorImportCommand_ScopedVsUnscoped(t *testing.T) {
	importCmd := newVendorImportCommand(false)
	assert.Equal(t, "import <component...>", importCmd.Use)

	importAllCmd := newVendorImportCommand(true)
	assert.Equal(t, "import-all", importAllCmd.Use)
}

func TestVendorConvertCommand_ExposesPolicyFlags(t *testing.T) {
	cmd := newVendorConvertCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "convert", cmd.Use)
	for _, flag := range []string{
		"env", "atomic", "continue-on-error", "fail-on-secrets",
		"fail-whole-on-secret", "dry-run", "respect-gitignore",
	} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "expected --%s flag", flag)
	}
}

func TestNewStoreCommand_HasSubcommands(t *testing.T) {
	cmd := NewStoreCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "store", cmd.Use)

	names := commandNames(cmd)
	assert.Contains(t, names, "query <hash>")
	assert.Contains(t, names, "delete <hash>")
}

func TestNewCacheCommand_HasSubcommands(t *testing.T) {
	cmd := NewCacheCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "cache", cmd.Use)

	names := commandNames(cmd)
	assert.Contains(t, names, "lookup <component> <version>")
	assert.Contains(t, names, "invalidate <component>")
}

func TestNewGCCommand(t *testing.T) {
	cmd := NewGCCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "gc", cmd.Use)
	assert.NotNil(t, cmd.RunE)
	assert.NotNil(t, cmd.Flags().Lookup("ttl"))
	assert.NotNil(t, cmd.Flags().Lookup("env"))
}

func TestNewConfigCommand_HasSubcommands(t *testing.T) {
	cmd := NewConfigCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "config", cmd.Use)

	names := commandNames(cmd)
	for _, expected := range []string{"get <key>", "set <key> <value>", "unset <key>", "init"} {
		assert.Contains(t, names, expected)
	}
}
