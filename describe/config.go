package describe

import (
	"fmt"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/glyphic/descry/digest"
)

// Config is the run configuration, loadable from a YAML file with CLI
// overrides applied on top. Invalid values are fatal at startup, before any
// entity is processed.
type Config struct {
	Roots      []string `yaml:"roots"`
	Include    []string `yaml:"include"`
	Exclude    []string `yaml:"exclude"`
	Algorithms []string `yaml:"algorithms"`
	Output     string   `yaml:"output"`
	Format     string   `yaml:"format"`
	MaxDepth   int      `yaml:"maxDepth"`
	ValueLimit int      `yaml:"valueLimit"`
	Burst      int      `yaml:"burst"`
	Query      string   `yaml:"query"`
	Extract    string   `yaml:"extract"`
	Verbose    bool     `yaml:"verbose"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Format:     "turtle",
		Algorithms: []string{string(digest.MD5), string(digest.SHA1), string(digest.SHA256)},
		MaxDepth:   32,
		Burst:      4,
	}
}

// LoadConfig reads a YAML configuration file. A missing file yields the
// defaults; a malformed one is a configuration error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("describe: read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("describe: parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration before the pipeline is assembled.
func (c *Config) Validate() error {
	if _, err := digest.ByIDs(c.Algorithms); err != nil {
		return err
	}
	switch c.Format {
	case "", "turtle", "ntriples", "rdfxml", "json-ld", "nq":
	default:
		return fmt.Errorf("describe: unknown output format %q", c.Format)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("describe: maxDepth must not be negative")
	}
	for _, pattern := range append(append([]string{}, c.Include...), c.Exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("describe: invalid glob pattern %q", pattern)
		}
	}
	return nil
}

// selects reports whether a relative path passes the include/exclude globs.
func (c *Config) selects(rel string) bool {
	rel = strings.TrimPrefix(rel, "/")
	for _, pattern := range c.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
	}
	if len(c.Include) == 0 {
		return true
	}
	for _, pattern := range c.Include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
