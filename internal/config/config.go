// Package config loads redoc settings from defaults, an optional
// redoc.yaml and REDOC_* environment variables, in increasing priority.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/HendryAvila/redoc/internal/confidence"
	"github.com/HendryAvila/redoc/internal/consolidate"
	"github.com/HendryAvila/redoc/internal/detect"
	"github.com/HendryAvila/redoc/internal/similarity"
)

const (
	// AppName is the application name.
	AppName = "redoc"
	// FileName is the config file looked up in the corpus root.
	FileName = "redoc.yaml"
	// EnvPrefix prefixes environment overrides (REDOC_REDUNDANCY_THRESHOLD).
	EnvPrefix = "REDOC"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the full configuration surface.
type Config struct {
	RedundancyThreshold  float64          `mapstructure:"redundancy_threshold" yaml:"redundancy_threshold"`
	HeaderThreshold      float64          `mapstructure:"header_threshold" yaml:"header_threshold"`
	SectionThreshold     float64          `mapstructure:"section_threshold" yaml:"section_threshold"`
	AutoExecuteThreshold float64          `mapstructure:"auto_execute_threshold" yaml:"auto_execute_threshold"`
	Patterns             []detect.Pattern `mapstructure:"patterns" yaml:"patterns"`
	// Ignore globs are skipped by the corpus scan.
	Ignore []string `mapstructure:"ignore" yaml:"ignore"`
	// Protected globs never take part in pairwise detection.
	Protected []string `mapstructure:"protected" yaml:"protected"`
	// DataDir holds the database and backups, relative to the corpus root
	// unless absolute.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
	// ArchiveDir receives merged-away documents, relative to the corpus root.
	ArchiveDir string `mapstructure:"archive_dir" yaml:"archive_dir"`
	LogLevel   string `mapstructure:"log_level" yaml:"log_level"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		RedundancyThreshold:  detect.DefaultThreshold,
		HeaderThreshold:      similarity.DefaultHeaderThreshold,
		SectionThreshold:     similarity.DefaultSectionThreshold,
		AutoExecuteThreshold: confidence.DefaultAutoExecuteThreshold,
		Patterns:             detect.DefaultPatterns(),
		Ignore:               []string{".git/**", "node_modules/**", "vendor/**"},
		Protected:            []string{"**/CHANGELOG.md", "**/LICENSE.md", "**/CODE_OF_CONDUCT.md"},
		DataDir:              "." + AppName,
		ArchiveDir:           "archive",
		LogLevel:             "info",
	}
}

// LoadOptions tells Load where to look.
type LoadOptions struct {
	// Root is the corpus root searched for redoc.yaml.
	Root string
	// File, when set, is used exclusively and must exist.
	File string
}

// Load builds a validated Config. It returns the config file used, or ""
// when only defaults and the environment applied.
func Load(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("config: load cancelled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolved := ""
	switch {
	case opts.File != "":
		if _, err := os.Stat(opts.File); err != nil {
			return nil, "", fmt.Errorf("config: config file not found: %s", opts.File)
		}
		resolved = opts.File
	case opts.Root != "":
		for _, name := range []string{FileName, strings.TrimSuffix(FileName, ".yaml") + ".yml"} {
			candidate := filepath.Join(opts.Root, name)
			if _, err := os.Stat(candidate); err == nil {
				resolved = candidate
				break
			}
		}
	}

	if resolved != "" {
		v.SetConfigFile(resolved)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("config: read %s: %w", resolved, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, resolved, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("redundancy_threshold", d.RedundancyThreshold)
	v.SetDefault("header_threshold", d.HeaderThreshold)
	v.SetDefault("section_threshold", d.SectionThreshold)
	v.SetDefault("auto_execute_threshold", d.AutoExecuteThreshold)
	v.SetDefault("ignore", d.Ignore)
	v.SetDefault("protected", d.Protected)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("archive_dir", d.ArchiveDir)
	v.SetDefault("log_level", d.LogLevel)

	patterns := make([]map[string]any, 0, len(d.Patterns))
	for _, p := range d.Patterns {
		patterns = append(patterns, map[string]any{
			"name":        p.Name,
			"description": p.Description,
			"match":       p.Match,
			"strategy":    p.Strategy,
		})
	}
	v.SetDefault("patterns", patterns)
}

// Validate reports out-of-range thresholds and malformed patterns.
func (c *Config) Validate() error {
	var errs []error
	for _, th := range []struct {
		name  string
		value float64
	}{
		{"redundancy_threshold", c.RedundancyThreshold},
		{"header_threshold", c.HeaderThreshold},
		{"section_threshold", c.SectionThreshold},
		{"auto_execute_threshold", c.AutoExecuteThreshold},
	} {
		if th.value <= 0 || th.value > 1 {
			errs = append(errs, fmt.Errorf("%s must be in (0,1], got %g", th.name, th.value))
		}
	}

	seen := map[string]bool{}
	for i, p := range c.Patterns {
		if strings.TrimSpace(p.Name) == "" {
			errs = append(errs, fmt.Errorf("patterns[%d]: name is required", i))
		} else if seen[p.Name] {
			errs = append(errs, fmt.Errorf("patterns[%d]: duplicate name %q", i, p.Name))
		}
		seen[p.Name] = true
		if len(p.Match) == 0 {
			errs = append(errs, fmt.Errorf("patterns[%d] %q: at least one match expression is required", i, p.Name))
		}
		for _, m := range p.Match {
			if strings.TrimSpace(m) == "" {
				errs = append(errs, fmt.Errorf("patterns[%d] %q: empty match expression", i, p.Name))
			}
		}
		if err := consolidate.ValidateName(p.Strategy); err != nil {
			errs = append(errs, fmt.Errorf("patterns[%d] %q: %w", i, p.Name, err))
		}
	}

	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if a := c.ArchiveDir; a != "" && (filepath.IsAbs(a) || strings.HasPrefix(path.Clean(filepath.ToSlash(a)), "..")) {
		errs = append(errs, fmt.Errorf("archive_dir must stay inside the corpus, got %q", a))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// DataPath resolves DataDir against the corpus root.
func (c *Config) DataPath(root string) string {
	if filepath.IsAbs(c.DataDir) {
		return c.DataDir
	}
	return filepath.Join(root, c.DataDir)
}

// ScanIgnore is Ignore plus the data and archive directories, which must
// never be analyzed as documentation.
func (c *Config) ScanIgnore() []string {
	out := append([]string(nil), c.Ignore...)
	if !filepath.IsAbs(c.DataDir) {
		out = append(out, path.Clean(filepath.ToSlash(c.DataDir))+"/**")
	}
	if c.ArchiveDir != "" {
		out = append(out, path.Clean(filepath.ToSlash(c.ArchiveDir))+"/**")
	}
	return out
}
