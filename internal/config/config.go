// Package config loads the ambient runtime settings (tools directory,
// sandbox mode, default call deadline) from a YAML file, falling back to
// environment variables and then built-in defaults.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SandboxMode is the OS-level isolation backend wrapping script subprocess
// spawns.
type SandboxMode string

const (
	SandboxNone       SandboxMode = "none"
	SandboxBubblewrap SandboxMode = "bubblewrap"
	SandboxFirejail   SandboxMode = "firejail"
	SandboxNsjail     SandboxMode = "nsjail"
)

// Settings is the runtime's ambient configuration.
type Settings struct {
	ToolsDir         string        `yaml:"tools_dir"`
	DefaultDeadline  time.Duration `yaml:"default_deadline"`
	Sandbox          SandboxMode   `yaml:"sandbox"`
	SandboxNetwork   bool          `yaml:"sandbox_network"`
	VerboseLogging   bool          `yaml:"verbose_logging"`
}

// DefaultSettings returns the documented defaults.
func DefaultSettings() Settings {
	home, _ := os.UserHomeDir()
	return Settings{
		ToolsDir:        filepath.Join(home, "tools"),
		DefaultDeadline: 120 * time.Second,
		Sandbox:         SandboxNone,
		SandboxNetwork:  false,
	}
}

type fileConfig struct {
	Settings Settings `yaml:"settings"`
}

// Store persists Settings to a YAML file.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load starts from the built-in defaults, overlays the non-empty values
// read from the YAML file, then applies environment variable overrides.
// Precedence: environment variable > file value > built-in default.
func (s *Store) Load() (Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return Settings{}, err
		}
	} else {
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return Settings{}, err
		}
		if fc.Settings.ToolsDir != "" {
			settings.ToolsDir = fc.Settings.ToolsDir
		}
		if fc.Settings.DefaultDeadline != 0 {
			settings.DefaultDeadline = fc.Settings.DefaultDeadline
		}
		if fc.Settings.Sandbox != "" {
			settings.Sandbox = fc.Settings.Sandbox
		}
		settings.SandboxNetwork = fc.Settings.SandboxNetwork
		settings.VerboseLogging = fc.Settings.VerboseLogging
	}

	applyEnv(&settings)
	return settings, nil
}

// Save writes settings back to the YAML file.
func (s *Store) Save(settings Settings) error {
	data, err := yaml.Marshal(fileConfig{Settings: settings})
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, data, 0644)
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("TOOLS_DIR"); v != "" {
		settings.ToolsDir = v
	}
	if v := os.Getenv("SKILLZ_SANDBOX"); v != "" {
		switch strings.ToLower(v) {
		case "bwrap", "bubblewrap":
			settings.Sandbox = SandboxBubblewrap
		case "firejail":
			settings.Sandbox = SandboxFirejail
		case "nsjail":
			settings.Sandbox = SandboxNsjail
		default:
			settings.Sandbox = SandboxNone
		}
	}
	if v := os.Getenv("SKILLZ_SANDBOX_NETWORK"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.SandboxNetwork = b
		} else {
			settings.SandboxNetwork = true
		}
	}
}

// SafeEnvironment builds the whitelisted environment forwarded to tool
// subprocesses: HOME, USER, LANG, PATH, TERM
// plus every host variable prefixed SKILLZ_.
func SafeEnvironment() map[string]string {
	keep := map[string]bool{"HOME": true, "USER": true, "LANG": true, "PATH": true, "TERM": true}
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		idx := strings.IndexByte(kv, '=')
		if idx < 0 {
			continue
		}
		k, v := kv[:idx], kv[idx+1:]
		if keep[k] || strings.HasPrefix(k, "SKILLZ_") {
			out[k] = v
		}
	}
	return out
}

// Roots resolves workspace roots by the priority in : explicit
// roots passed by the host, else SKILLZ_ROOTS (colon-separated), else the
// current working directory.
func Roots(hostRoots []string) []string {
	if len(hostRoots) > 0 {
		return hostRoots
	}
	if v := os.Getenv("SKILLZ_ROOTS"); v != "" {
		return strings.Split(v, ":")
	}
	if cwd, err := os.Getwd(); err == nil {
		return []string{cwd}
	}
	return nil
}
