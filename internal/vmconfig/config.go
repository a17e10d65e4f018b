// Package vmconfig loads the optional .pyvmrc.yaml file that tunes VM
// resource limits and CLI defaults, the way internal/ext.Config loads
// funxy.yaml in the teacher repo.
package vmconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/pyvm/pyvm/internal/vm"
)

// Config is the top-level .pyvmrc.yaml shape.
type Config struct {
	// Limits tunes the VM's operand/call stack soft maxima (spec section 5).
	Limits LimitsConfig `yaml:"limits"`

	// Cache controls the sqlite compiled-program cache.
	Cache CacheConfig `yaml:"cache"`
}

// LimitsConfig mirrors vm.Limits. An absent or partial section falls back
// to spec defaults field-by-field: Parse starts from Default, and VMLimits
// substitutes the default for any zero field.
type LimitsConfig struct {
	MaxStack  int `yaml:"max_stack,omitempty"`
	MaxFrames int `yaml:"max_frames,omitempty"`
}

// CacheConfig controls internal/cache.
type CacheConfig struct {
	Path     string `yaml:"path,omitempty"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

// Default returns a Config with spec-mandated defaults and no cache path
// override (the CLI supplies that default itself, next to the source file).
func Default() Config {
	d := vm.DefaultLimits()
	return Config{Limits: LimitsConfig{MaxStack: d.MaxStack, MaxFrames: d.MaxFrames}}
}

// VMLimits converts the loaded config section into a vm.Limits, substituting
// spec defaults for any zero field.
func (c Config) VMLimits() vm.Limits {
	d := vm.DefaultLimits()
	l := vm.Limits{MaxStack: c.Limits.MaxStack, MaxFrames: c.Limits.MaxFrames}
	if l.MaxStack <= 0 {
		l.MaxStack = d.MaxStack
	}
	if l.MaxFrames <= 0 {
		l.MaxFrames = d.MaxFrames
	}
	return l
}

// Load reads and parses a .pyvmrc.yaml file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse parses .pyvmrc.yaml content from bytes. path is used only in error
// messages.
func Parse(data []byte, path string) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Find looks for .pyvmrc.yaml next to sourcePath, then in the working
// directory. It returns "" with a nil error when no config file exists —
// an absent config is not an error, per the CLI's additive-flags contract.
func Find(sourcePath string) (string, error) {
	dir := filepath.Dir(sourcePath)
	candidate := filepath.Join(dir, ".pyvmrc.yaml")
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolving working directory: %w", err)
	}
	candidate = filepath.Join(cwd, ".pyvmrc.yaml")
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}
	return "", nil
}
