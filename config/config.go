// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads slicedoctor configuration files.  A configuration
// file may be written in TOML, YAML, or JSON; the format is chosen by the
// file's extension.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration options for slicedoctor.
type Config struct {
	// Slicing and grouping settings
	Analysis AnalysisConfig `koanf:"analysis"`

	// File exclusion patterns
	Exclude ExcludeConfig `koanf:"exclude"`

	// Output settings
	Output OutputConfig `koanf:"output"`

	// Maximum number of methods analyzed concurrently; 0 means one per CPU
	Workers int `koanf:"workers"`
}

// AnalysisConfig controls how slices are computed, filtered, and grouped.
type AnalysisConfig struct {
	// Smallest number of statements an extractable region may contain
	MinStatements int `koanf:"min_statements"`
	// Whether to close slices forward over later consumers of the
	// criterion's value
	ForwardClosure bool `koanf:"forward_closure"`
	// Whether literals are ignored when comparing slice shapes
	NormalizeLiterals bool `koanf:"normalize_literals"`
	// Smallest number of slices reported as a duplicate group
	MinGroupSize int `koanf:"min_group_size"`
	// Whether slices are checked against a fresh parse before being
	// reported
	Revalidate bool `koanf:"revalidate"`
}

// ExcludeConfig defines file exclusion patterns.
type ExcludeConfig struct {
	// Patterns in .gitignore syntax
	Patterns []string `koanf:"patterns"`
	// Directory names skipped wherever they occur
	Dirs []string `koanf:"dirs"`
	// Whether .gitignore files are honored
	Gitignore bool `koanf:"gitignore"`
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format  string `koanf:"format"` // text, json, markdown
	Color   bool   `koanf:"color"`
	Verbose bool   `koanf:"verbose"`
}

// Output formats.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			MinStatements:     2,
			ForwardClosure:    true,
			NormalizeLiterals: false,
			MinGroupSize:      2,
			Revalidate:        true,
		},
		Exclude: ExcludeConfig{
			Patterns: []string{
				"*Test.java",
				"*Tests.java",
			},
			Dirs: []string{
				".git",
				"build",
				"target",
				"out",
				"node_modules",
			},
			Gitignore: true,
		},
		Output: OutputConfig{
			Format:  FormatText,
			Color:   true,
			Verbose: false,
		},
		Workers: 0,
	}
}

// Load loads configuration from a file.  Settings absent from the file keep
// their default values.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	parser := parserFor(strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")))
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Names of the files LoadOrDefault searches for, in order.
var configNames = []string{
	"slicedoctor.toml",
	"slicedoctor.yaml",
	"slicedoctor.yml",
	"slicedoctor.json",
	".slicedoctor.toml",
	".slicedoctor.yaml",
	".slicedoctor.yml",
	".slicedoctor.json",
}

// LoadOrDefault loads the first configuration file found in dir, returning
// the configuration and the path it was loaded from.  If no file is found,
// it returns the defaults and an empty path.  A file that exists but cannot
// be loaded is an error.
func LoadOrDefault(dir string) (*Config, string, error) {
	for _, name := range configNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			cfg, err := Load(path)
			if err != nil {
				return nil, path, err
			}
			return cfg, path, nil
		}
	}
	return DefaultConfig(), "", nil
}

// Validate checks that every setting is within range.
func (c *Config) Validate() error {
	if c.Analysis.MinStatements < 1 {
		return fmt.Errorf("analysis.min_statements must be at least 1 (got %d)", c.Analysis.MinStatements)
	}
	if c.Analysis.MinGroupSize < 2 {
		return fmt.Errorf("analysis.min_group_size must be at least 2 (got %d)", c.Analysis.MinGroupSize)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative (got %d)", c.Workers)
	}
	switch c.Output.Format {
	case FormatText, FormatJSON, FormatMarkdown:
	default:
		return fmt.Errorf("output.format must be one of text, json, markdown (got %q)", c.Output.Format)
	}
	return nil
}

// WorkerCount returns the number of methods to analyze concurrently.
func (c *Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// parserFor returns the koanf parser for a file format or extension,
// defaulting to TOML.
func parserFor(format string) koanf.Parser {
	switch format {
	case "yaml", "yml":
		return yaml.Parser()
	case "json":
		return json.Parser()
	default:
		return toml.Parser()
	}
}

// Marshal encodes the configuration as toml, yaml, or json, using the same
// keys Load accepts.
func (c *Config) Marshal(format string) ([]byte, error) {
	switch format {
	case "toml", "yaml", "yml", "json":
	default:
		return nil, fmt.Errorf("unknown configuration format %q", format)
	}
	m := map[string]interface{}{
		"analysis": map[string]interface{}{
			"min_statements":     c.Analysis.MinStatements,
			"forward_closure":    c.Analysis.ForwardClosure,
			"normalize_literals": c.Analysis.NormalizeLiterals,
			"min_group_size":     c.Analysis.MinGroupSize,
			"revalidate":         c.Analysis.Revalidate,
		},
		"exclude": map[string]interface{}{
			"patterns":  c.Exclude.Patterns,
			"dirs":      c.Exclude.Dirs,
			"gitignore": c.Exclude.Gitignore,
		},
		"output": map[string]interface{}{
			"format":  c.Output.Format,
			"color":   c.Output.Color,
			"verbose": c.Output.Verbose,
		},
		"workers": c.Workers,
	}
	return parserFor(format).Marshal(m)
}
