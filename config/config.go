// Package config loads procmem settings from a YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"procmem/pattern"
	"procmem/process"
	"procmem/reader"
)

// DefaultMaxModuleSize bounds how much of a module image a scan will copy.
const DefaultMaxModuleSize = 1 << 30

// Config is the top-level configuration.
type Config struct {
	Reader ReaderConfig `yaml:"reader"`
	Scan   ScanConfig   `yaml:"scan"`
}

// ReaderConfig configures memory reads.
type ReaderConfig struct {
	StringLimit   int    `yaml:"string_limit"`
	PartialReads  string `yaml:"partial_reads"`
	PageSize      uint64 `yaml:"page_size"`
	MaxBufferSize uint64 `yaml:"max_buffer_size"`
}

// ScanConfig configures pattern scans.
type ScanConfig struct {
	MaxModuleSize uint64 `yaml:"max_module_size"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Reader: ReaderConfig{
			StringLimit:   reader.DefaultStringLimit,
			PartialReads:  reader.PartialReadTolerate.String(),
			PageSize:      reader.DefaultPageSize,
			MaxBufferSize: reader.DefaultMaxBufferSize,
		},
		Scan: ScanConfig{
			MaxModuleSize: DefaultMaxModuleSize,
		},
	}
}

// Load reads path on top of the defaults. An empty path or a missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes cfg to path as YAML, replacing any existing file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Reader.StringLimit <= 0 {
		return fmt.Errorf("%w: reader.string_limit must be positive, got %d", process.ErrInvalidArgument, c.Reader.StringLimit)
	}
	if _, err := reader.ParsePartialReadPolicy(c.Reader.PartialReads); err != nil {
		return fmt.Errorf("reader.partial_reads: %w", err)
	}
	if size := c.Reader.PageSize; size == 0 || size&(size-1) != 0 {
		return fmt.Errorf("%w: reader.page_size must be a power of two, got %d", process.ErrInvalidArgument, size)
	}
	if c.Reader.MaxBufferSize == 0 {
		return fmt.Errorf("%w: reader.max_buffer_size must be positive", process.ErrInvalidArgument)
	}
	// module images are read through the reader, so the buffer limit caps scans too
	if c.Scan.MaxModuleSize > c.Reader.MaxBufferSize {
		return fmt.Errorf("%w: scan.max_module_size %d exceeds reader.max_buffer_size %d", process.ErrInvalidArgument, c.Scan.MaxModuleSize, c.Reader.MaxBufferSize)
	}
	return nil
}

// ReaderOptions converts the reader section into reader options.
func (c *Config) ReaderOptions() []reader.Option {
	policy, _ := reader.ParsePartialReadPolicy(c.Reader.PartialReads)
	return []reader.Option{
		reader.WithStringLimit(c.Reader.StringLimit),
		reader.WithPartialReadPolicy(policy),
		reader.WithPageSize(c.Reader.PageSize),
		reader.WithMaxBufferSize(process.ProcessMemorySize(c.Reader.MaxBufferSize)),
	}
}

// NewReader builds a reader from the configuration.
func (c *Config) NewReader() *reader.Reader {
	return reader.New(c.ReaderOptions()...)
}

// NewScanner builds a pattern scanner from the configuration.
func (c *Config) NewScanner() *pattern.Scanner {
	return pattern.NewScanner(c.NewReader(), pattern.WithMaxModuleSize(process.ProcessMemorySize(c.Scan.MaxModuleSize)))
}
