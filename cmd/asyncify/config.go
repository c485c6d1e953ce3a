package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pelletier/go-toml/v2"

	"github.com/electronicarts/ea-async/asyncify"
)

// ConfigFileName is looked up in the working directory and its parents
// when no -config flag is given.
const ConfigFileName = "asyncify.toml"

// Config is the optional project file.
type Config struct {
	Transform TransformConfig `toml:"transform"`
}

// TransformConfig holds the batch settings. Command line flags override
// every field.
type TransformConfig struct {
	// Output is the directory transformed units are written to. Empty
	// means in place.
	Output string `toml:"output"`

	// Intrinsics are extra suspend intrinsics, "Owner.name", "Owner.*"
	// or a bare method name.
	Intrinsics []string `toml:"intrinsics"`

	// Exclude lists functions left untransformed.
	Exclude []string `toml:"exclude"`

	// Classpath lists unit files and directories whose classes are
	// visible to every transformed unit. The -cp flag adds to it.
	Classpath []string `toml:"classpath"`

	// Report is the path of the JSON batch report.
	Report string `toml:"report"`

	Workers int  `toml:"workers"`
	Verbose bool `toml:"verbose"`
}

// LoadConfig reads and decodes a project file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	if cfg.Transform.Output != "" && !filepath.IsAbs(cfg.Transform.Output) {
		cfg.Transform.Output = filepath.Join(dir, cfg.Transform.Output)
	}
	for i, p := range cfg.Transform.Classpath {
		if !filepath.IsAbs(p) {
			cfg.Transform.Classpath[i] = filepath.Join(dir, p)
		}
	}
	return &cfg, nil
}

// FindConfigFile walks up from dir looking for ConfigFileName. It returns
// "" when there is none.
func FindConfigFile(dir string) string {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	for {
		p := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(p); err == nil {
			return p
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// workers returns the configured worker count, defaulting to the number
// of CPUs.
func (c *TransformConfig) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// matcher builds the suspend matcher: the standard intrinsic plus any
// configured extras.
func (c *TransformConfig) matcher() asyncify.SuspendMatcher {
	if len(c.Intrinsics) == 0 {
		return asyncify.DefaultMatcher
	}
	return asyncify.NewCompositeMatcher(asyncify.DefaultMatcher, asyncify.NewWildcardMatcher(c.Intrinsics))
}

func (c *TransformConfig) options() []asyncify.Option {
	opts := []asyncify.Option{asyncify.WithMatcher(c.matcher())}
	if len(c.Exclude) > 0 {
		opts = append(opts, asyncify.WithExclude(asyncify.NewFunctionNameMatcher(c.Exclude)))
	}
	return opts
}
