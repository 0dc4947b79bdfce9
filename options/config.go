package options

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Config holds the parsed YAML suite file. All fields are optional; zero values
// mean "use the default or whatever the CLI flag says". Explicit CLI flags always
// win over file values.
type Config struct {
	Binary       string            `yaml:"binary"`
	ProbeFlags   []string          `yaml:"probe_flags"`
	LaunchWait   int               `yaml:"launch_wait"`
	ProbeTimeout int               `yaml:"probe_timeout"`
	TermGrace    int               `yaml:"term_grace"`
	Display      string            `yaml:"display"`
	Env          map[string]string `yaml:"env"`
	SkipLaunch   bool              `yaml:"skip_launch"`
}

// LoadConfig reads and parses a YAML suite file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing suite file %s: %w", path, err)
	}

	return cfg, nil
}

// EnvSlice returns the file's env map as KEY=VALUE pairs in a stable order so
// that repeated runs build identical child environments.
func (c *Config) EnvSlice() []string {
	if len(c.Env) == 0 {
		return nil
	}

	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rv := make([]string, 0, len(keys))
	for _, k := range keys {
		rv = append(rv, fmt.Sprintf("%s=%s", k, c.Env[k]))
	}
	return rv
}
