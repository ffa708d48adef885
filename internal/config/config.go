// Package config resolves workspace configuration from a fixed
// priority order (flags > env > project > global > defaults) and
// builds the explicit Context value threaded through every engine for
// one invocation. Configuration, logger, and workspace paths are all
// explicit values rather than module-level singletons, so many
// invocations can run in the same process (tests rely on this).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Settings holds every recognized configuration option.
type Settings struct {
	DefaultEnv    string `mapstructure:"default_env"`
	ManifestsDir  string `mapstructure:"manifests_dir"`
	ParallelJobs  int    `mapstructure:"parallel_jobs"`
	ShowProgress  bool   `mapstructure:"show_progress"`
	LogLevel      string `mapstructure:"log_level"`
	RemoteCache   string `mapstructure:"remote_cache"`
	RemoteStore   string `mapstructure:"remote_store"`
}

// Defaults are the built-in, lowest-priority values.
var Defaults = Settings{
	DefaultEnv:   "dev",
	ManifestsDir: "manifests",
	ParallelJobs: 4,
	ShowProgress: true,
	LogLevel:     "info",
}

const projectConfigPath = ".meta/config"

// ConfigPath resolves the file Init/Get/Set/Unset should act on for
// the given --global flag, mirroring Load's own resolution order.
func ConfigPath(workspaceRoot string, global bool) string {
	if global {
		return globalConfigPath()
	}
	return filepath.Join(workspaceRoot, projectConfigPath)
}

func globalConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "meta", "config")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "meta", "config")
}

// Load resolves Settings following flags > env > project > global >
// defaults. flagSet, when non-nil, is bound ahead of env/file sources
// so an explicitly-passed flag always wins.
func Load(workspaceRoot string, bindFlags func(v *viper.Viper)) (*Settings, error) {
	v := viper.New()

	v.SetDefault("default_env", Defaults.DefaultEnv)
	v.SetDefault("manifests_dir", Defaults.ManifestsDir)
	v.SetDefault("parallel_jobs", Defaults.ParallelJobs)
	v.SetDefault("show_progress", Defaults.ShowProgress)
	v.SetDefault("log_level", Defaults.LogLevel)

	if global := globalConfigPath(); global != "" {
		if _, err := os.Stat(global); err == nil {
			v.SetConfigFile(global)
			v.SetConfigType("toml")
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("reading global config %s: %w", global, err)
			}
		}
	}

	project := filepath.Join(workspaceRoot, projectConfigPath)
	if _, err := os.Stat(project); err == nil {
		pv := viper.New()
		pv.SetConfigFile(project)
		pv.SetConfigType("toml")
		if err := pv.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", project, err)
		}
		for _, key := range pv.AllKeys() {
			v.Set(key, pv.Get(key))
		}
	}

	v.SetEnvPrefix("META")
	v.AutomaticEnv()

	if bindFlags != nil {
		bindFlags(v)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	return &s, nil
}

// Context is the explicit, per-invocation value threaded through every
// engine in place of module-level singletons. Constructing one does no
// I/O beyond resolving Settings.
type Context struct {
	WorkspaceRoot string
	Settings      *Settings
	InvocationID  string
	StartedAt     time.Time
}

// NewContext builds a Context for one command invocation.
func NewContext(workspaceRoot string, settings *Settings, invocationID string) *Context {
	return &Context{
		WorkspaceRoot: workspaceRoot,
		Settings:      settings,
		InvocationID:  invocationID,
		StartedAt:     time.Now(),
	}
}

func (c *Context) Path(elems ...string) string {
	return filepath.Join(append([]string{c.WorkspaceRoot}, elems...)...)
}
