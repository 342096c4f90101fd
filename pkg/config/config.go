// Package config loads optional VM/CLI tuning from a YAML file.
//
// Nothing in glox requires a config file — every field has a sane zero-value
// default — but a project working on a large script may want to persist
// its preferred trace/verbosity settings instead of repeating flags.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level glox.yaml configuration.
type Config struct {
	// TraceExecution enables the VM's instruction-level execution trace,
	// equivalent to passing --trace-execution on the command line.
	TraceExecution bool `yaml:"trace_execution,omitempty"`

	// NoBanner suppresses the REPL's startup banner even when stdin is a
	// TTY (see pkg/config's use alongside go-isatty in cmd/glox).
	NoBanner bool `yaml:"no_banner,omitempty"`

	// StackSlots and FrameLimit override the VM's value-stack and
	// call-depth limits; exceeding either is a runtime "Stack overflow."
	// error, not just an initial capacity hint. Zero (the default) means
	// "use 256" — see pkg/vm.Config.
	StackSlots int `yaml:"stack_slots,omitempty"`
	FrameLimit int `yaml:"frame_limit,omitempty"`
}

// Load reads and parses a glox.yaml configuration file at path. A missing
// file is not an error — it simply yields the zero-value Config — since
// config is optional tuning, not a required deployment artifact.
func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
