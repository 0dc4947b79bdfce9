package options

import (
	"fmt"
	"regexp"

	"github.com/sirupsen/logrus"
)

// Options is the central configuration registry for the smoke-checker application.
// It maps the command-line flags (optionally merged with a YAML suite file) into an
// internal structured format passed directly to the probe and server subsystems,
// decoupling the check execution logic from the CLI framework.
type Options struct {
	Binary           string
	ProbeFlags       []string
	LaunchWait       int
	ProbeTimeout     int
	TermGrace        int
	Display          string
	ExtraEnv         []string
	SkipLaunch       bool
	DetailedStatus   bool
	Singleflight     bool
	Listener         string
	HttpReadTimeout  int
	HttpWriteTimeout int
	HttpIdleTimeout  int
	Logger           *logrus.Logger
}

// DefaultProbeFlags are probed when neither the CLI nor the suite file names any.
var DefaultProbeFlags = []string{"--version", "--help"}

// allowedFlagPattern enforces that probe flags look like plain command-line flags:
// one or two leading dashes followed by alphanumerics and dashes. Anything else
// (spaces, shell metacharacters, paths) is rejected before it reaches exec.
var allowedFlagPattern = regexp.MustCompile(`^--?[a-zA-Z0-9][a-zA-Z0-9-]*$`)

// allowedBinaryPattern restricts the binary under test to a bare name or path with
// safe characters, preventing injection of shell constructs through the CLI.
var allowedBinaryPattern = regexp.MustCompile(`^[a-zA-Z0-9/\\\-_.:]+$`)

// ParseProbeFlags validates the user-supplied list of optional flags to probe.
// An empty input yields the defaults.
func ParseProbeFlags(flagStrings []string) ([]string, error) {
	if len(flagStrings) == 0 {
		return append([]string{}, DefaultProbeFlags...), nil
	}

	rv := []string{}
	for _, f := range flagStrings {
		if !allowedFlagPattern.MatchString(f) {
			return nil, fmt.Errorf("probe flag contains forbidden characters: %s", f)
		}
		rv = append(rv, f)
	}
	return rv, nil
}

// ValidateBinary checks that the binary name is non-empty and free of characters
// that have no business in an executable name. Existence on PATH is deliberately
// not checked here: that is the first probe of the suite, and its absence must be
// reported as a check failure rather than a usage error.
func ValidateBinary(name string) error {
	if name == "" {
		return fmt.Errorf("binary name is empty")
	}
	if !allowedBinaryPattern.MatchString(name) {
		return fmt.Errorf("binary name contains forbidden characters: %s", name)
	}
	return nil
}
