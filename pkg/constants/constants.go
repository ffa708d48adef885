// Package constants holds the small set of fixed names shared across
// the command layer and the workspace-relative paths it reads and
// writes under.
package constants

// CLIExtensionPrefix is the prefix used in user-facing output to name
// the command-line tool.
const CLIExtensionPrefix = "meta"

// Workspace-relative layout, per the persisted state layout.
const (
	ManifestsDir  = "manifests"
	ComponentsDir = "components"
	StoreDir      = ".meta-store"
	CacheDir      = ".meta-cache"
)
