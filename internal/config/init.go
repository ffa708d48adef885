package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

// Init writes a default (or, on a TTY, wizard-collected) config file
// to the project or global location. It never overwrites an existing
// file unless force is set.
func Init(workspaceRoot string, global, force bool) (string, error) {
	target := filepath.Join(workspaceRoot, projectConfigPath)
	if global {
		target = globalConfigPath()
		if target == "" {
			return "", fmt.Errorf("could not resolve a global config directory")
		}
	}

	if _, err := os.Stat(target); err == nil && !force {
		return "", fmt.Errorf("config already exists at %s (use --force to overwrite)", target)
	}

	settings := Defaults
	if isatty.IsTerminal(os.Stdout.Fd()) {
		if err := runWizard(&settings); err != nil {
			return "", fmt.Errorf("configuration wizard: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# meta workspace configuration\n")
	buf.WriteString("# resolved with priority: flags > env (META_*) > project > global > defaults\n\n")
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(settings); err != nil {
		return "", fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(target, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing config %s: %w", target, err)
	}
	return target, nil
}

func runWizard(s *Settings) error {
	envStr := s.DefaultEnv
	jobsStr := fmt.Sprintf("%d", s.ParallelJobs)
	remoteCache := s.RemoteCache
	remoteStore := s.RemoteStore

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Default environment").Value(&envStr),
			huh.NewInput().Title("Parallel jobs").Value(&jobsStr),
			huh.NewInput().Title("Remote cache URL (redis://..., blank for none)").Value(&remoteCache),
			huh.NewInput().Title("Remote store URL (s3://..., gs://..., blank for none)").Value(&remoteStore),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	s.DefaultEnv = envStr
	s.RemoteCache = remoteCache
	s.RemoteStore = remoteStore
	if _, err := fmt.Sscanf(jobsStr, "%d", &s.ParallelJobs); err != nil || s.ParallelJobs <= 0 {
		s.ParallelJobs = Defaults.ParallelJobs
	}
	return nil
}

// Get reads a single key from the resolved settings (dotted path not
// supported; Settings is flat by design).
func Get(s *Settings, key string) (string, error) {
	switch key {
	case "default_env":
		return s.DefaultEnv, nil
	case "manifests_dir":
		return s.ManifestsDir, nil
	case "parallel_jobs":
		return fmt.Sprintf("%d", s.ParallelJobs), nil
	case "show_progress":
		return fmt.Sprintf("%v", s.ShowProgress), nil
	case "log_level":
		return s.LogLevel, nil
	case "remote_cache":
		return s.RemoteCache, nil
	case "remote_store":
		return s.RemoteStore, nil
	default:
		return "", fmt.Errorf("unrecognized config key %q", key)
	}
}

// Set writes a single key into the given config file (creating it if
// necessary), re-encoding the whole file.
func Set(path, key, value string) error {
	settings := Defaults
	if data, err := os.ReadFile(path); err == nil {
		if _, err := toml.Decode(string(data), &settings); err != nil {
			return fmt.Errorf("parsing existing config %s: %w", path, err)
		}
	}

	switch key {
	case "default_env":
		settings.DefaultEnv = value
	case "manifests_dir":
		settings.ManifestsDir = value
	case "parallel_jobs":
		if _, err := fmt.Sscanf(value, "%d", &settings.ParallelJobs); err != nil {
			return fmt.Errorf("parallel_jobs must be an integer: %w", err)
		}
	case "show_progress":
		settings.ShowProgress = value == "true" || value == "1"
	case "log_level":
		settings.LogLevel = value
	case "remote_cache":
		settings.RemoteCache = value
	case "remote_store":
		settings.RemoteStore = value
	default:
		return fmt.Errorf("unrecognized config key %q", key)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(settings); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Unset resets a key to its built-in default.
func Unset(path, key string) error {
	def, err := Get(&Defaults, key)
	if err != nil {
		return err
	}
	return Set(path, key, def)
}
