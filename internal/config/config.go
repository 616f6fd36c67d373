// Package config loads the invokeaudit YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/phobologic/invokeaudit/internal/classify"
	"github.com/phobologic/invokeaudit/internal/extract"
	"github.com/phobologic/invokeaudit/internal/registry"
	"github.com/phobologic/invokeaudit/internal/report"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = ".invokeaudit.yaml"

// Config is the full tool configuration.
type Config struct {
	// Root is the repository root. Relative paths are resolved against the
	// directory holding the config file. Empty means "derive from the
	// executable location".
	Root string `yaml:"root"`

	Frontend FrontendConfig `yaml:"frontend"`
	Backend  BackendConfig  `yaml:"backend"`
	Report   ReportConfig   `yaml:"report"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// FrontendConfig selects frontend sources and the invocation shape.
type FrontendConfig struct {
	Globs            []string `yaml:"globs"`
	InvokePattern    string   `yaml:"invoke_pattern"`
	Strict           bool     `yaml:"strict"`
	RespectGitignore bool     `yaml:"respect_gitignore"`
	Workers          int      `yaml:"workers"`
	MaxFileSize      int64    `yaml:"max_file_size"` // bytes, 0 = no limit
}

// BackendConfig locates the registration file and its patterns.
type BackendConfig struct {
	RegistryFile    string   `yaml:"registry_file"`
	CurrentPattern  string   `yaml:"current_pattern"`
	CurrentPrefixes []string `yaml:"current_prefixes"`
	LegacyPatterns  []string `yaml:"legacy_patterns"`
}

// ReportConfig controls the emitted artifacts.
type ReportConfig struct {
	Dir    string `yaml:"dir"`
	Top    int    `yaml:"top"`
	SQLite bool   `yaml:"sqlite"`
	Format string `yaml:"format"` // text, toon
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	JSON  bool   `yaml:"json"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Frontend: FrontendConfig{
			Globs: []string{
				"src/lib/**/*.ts",
				"src/lib/**/*.svelte",
				"src/routes/**/*.ts",
				"src/routes/**/*.svelte",
			},
			InvokePattern: extract.DefaultPattern,
			Workers:       1,
			MaxFileSize:   extract.DefaultMaxFileSize,
		},
		Backend: BackendConfig{
			RegistryFile:    "src-tauri/src/lib.rs",
			CurrentPattern:  registry.DefaultCurrentPattern,
			CurrentPrefixes: append([]string(nil), classify.DefaultPrefixes...),
			LegacyPatterns:  append([]string(nil), registry.DefaultLegacyPatterns...),
		},
		Report: ReportConfig{
			Dir:    "tmp",
			Top:    report.DefaultTop,
			Format: "text",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config and overlays it on the defaults. A missing file
// yields the defaults. A relative root is made relative to the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if cfg.Root != "" && !filepath.IsAbs(cfg.Root) {
		cfg.Root = filepath.Join(filepath.Dir(path), cfg.Root)
	}
	return cfg, nil
}

// Marshal renders the config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if len(c.Frontend.Globs) == 0 {
		return errors.New("frontend.globs: at least one pattern is required")
	}
	if c.Backend.RegistryFile == "" {
		return errors.New("backend.registry_file is required")
	}
	if len(c.Backend.CurrentPrefixes) == 0 {
		return errors.New("backend.current_prefixes: at least one prefix is required")
	}
	if err := needsCapture("frontend.invoke_pattern", c.Frontend.InvokePattern); err != nil {
		return err
	}
	if _, err := c.Rules(); err != nil {
		return err
	}
	if c.Frontend.Workers < 0 {
		return fmt.Errorf("frontend.workers: must not be negative, got %d", c.Frontend.Workers)
	}
	if c.Frontend.MaxFileSize < 0 {
		return fmt.Errorf("frontend.max_file_size: must not be negative, got %d", c.Frontend.MaxFileSize)
	}
	switch c.Report.Format {
	case "text", "toon":
	default:
		return fmt.Errorf("report.format: unsupported %q (expected text or toon)", c.Report.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported %q", c.Logging.Level)
	}
	return nil
}

// Rules compiles the backend registration patterns.
func (c *Config) Rules() (registry.Rules, error) {
	r, err := registry.CompileRules(c.Backend.CurrentPattern, c.Backend.LegacyPatterns)
	if err != nil {
		return registry.Rules{}, fmt.Errorf("backend: %w", err)
	}
	return r, nil
}

// ExtractOptions returns the file reading options for the extractor.
func (c *Config) ExtractOptions() extract.Options {
	return extract.Options{
		Strict:      c.Frontend.Strict,
		MaxFileSize: c.Frontend.MaxFileSize,
	}
}

// Convention returns the current-generation naming convention.
func (c *Config) Convention() classify.Convention {
	return classify.Convention{Prefixes: c.Backend.CurrentPrefixes}
}

// RegistryPath returns the registry file resolved against root.
func (c *Config) RegistryPath(root string) string {
	return resolve(root, c.Backend.RegistryFile)
}

// ReportDir returns the report directory resolved against root.
func (c *Config) ReportDir(root string) string {
	return resolve(root, c.Report.Dir)
}

func resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, filepath.FromSlash(p))
}

func needsCapture(field, pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if re.NumSubexp() < 1 {
		return fmt.Errorf("%s: pattern %q has no capture group", field, pattern)
	}
	return nil
}

// ResolveRoot picks the repository root: an explicit flag wins, then the
// config value, then the parent of the directory holding the executable
// (the tool lives in <repo>/bin or <repo>/scripts).
func ResolveRoot(flagRoot, cfgRoot, executable string) (string, error) {
	root := flagRoot
	if root == "" {
		root = cfgRoot
	}
	if root == "" {
		if executable == "" {
			return "", errors.New("cannot determine repository root: no --root and no executable path")
		}
		exe, err := filepath.EvalSymlinks(executable)
		if err != nil {
			exe = executable
		}
		root = filepath.Dir(filepath.Dir(exe))
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving root: %w", err)
	}
	return abs, nil
}
