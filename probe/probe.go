// Package probe runs the installation smoke checks against the binary under test.
package probe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gruntwork-io/smoke-checker/options"
)

// Status classifies the outcome of a single smoke check.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	// StatusInfo marks optional behavior the binary under test is allowed not to
	// implement, such as a missing --version flag.
	StatusInfo Status = "info"
)

// Result holds the outcome of one smoke check.
type Result struct {
	Name        string `json:"name"`
	Status      Status `json:"status"`
	Detail      string `json:"detail,omitempty"`
	Output      string `json:"output,omitempty"`
	ElapsedTime string `json:"elapsed_time"`
}

// Report aggregates the results of a full suite run. Only StatusFail results
// count against the verdict; StatusInfo results are recorded but never fail
// the suite.
type Report struct {
	RunID       string   `json:"run_id"`
	Status      string   `json:"status"`
	ElapsedTime string   `json:"elapsed_time"`
	Probes      []Result `json:"probes"`
	Errors      []string `json:"errors,omitempty"`
}

// Passed reports whether the suite run had no hard failures.
func (r *Report) Passed() bool {
	return len(r.Errors) == 0
}

func (r *Report) record(res Result) {
	r.Probes = append(r.Probes, res)
	if res.Status == StatusFail {
		r.Errors = append(r.Errors, fmt.Sprintf("%s: %s", res.Name, res.Detail))
	}
}

// RunSuite executes the smoke checks sequentially: PATH resolution, a launch
// observation (unless skipped or impossible), then one bounded probe per
// optional flag. Checks share no state; each produces an independent Result.
func RunSuite(ctx context.Context, opts *options.Options) *Report {
	logger := opts.Logger

	startTime := time.Now()
	report := &Report{RunID: uuid.New().String()}

	installed := checkInstalled(opts)
	report.record(installed)

	switch {
	case opts.SkipLaunch:
		logger.Infof("Launch check skipped by configuration")
	case installed.Status != StatusPass:
		logger.Warnf("Launch check skipped: binary is not installed")
	default:
		report.record(checkLaunch(ctx, opts))
	}

	for _, flag := range opts.ProbeFlags {
		report.record(probeFlag(ctx, opts, flag))
	}

	report.ElapsedTime = time.Since(startTime).String()

	if report.Passed() {
		report.Status = "OK"
		logger.Infof("All smoke checks for %s passed.\n", opts.Binary)
	} else {
		report.Status = "At least one smoke check failed"
		logger.Infof("At least one smoke check for %s failed.\n", opts.Binary)
	}

	return report
}

// checkInstalled resolves the binary name against PATH. Absence is a hard
// failure for the suite.
func checkInstalled(opts *options.Options) Result {
	logger := opts.Logger

	start := time.Now()
	logger.Infof("Resolving %s against PATH...", opts.Binary)

	path, err := exec.LookPath(opts.Binary)
	if err != nil {
		logger.Warnf("Binary %s NOT found in PATH: %s", opts.Binary, err)
		return Result{
			Name:        "installed",
			Status:      StatusFail,
			Detail:      fmt.Sprintf("binary %s not found in PATH", opts.Binary),
			ElapsedTime: time.Since(start).String(),
		}
	}

	logger.Infof("Binary found at %s", path)
	return Result{
		Name:        "installed",
		Status:      StatusPass,
		Detail:      path,
		ElapsedTime: time.Since(start).String(),
	}
}

// probeFlag runs the binary once with a single optional flag under a bounded
// timeout. Exit 0 is a pass; a non-zero exit, timeout, or missing binary is
// downgraded to an informational result since the flag is allowed to be
// unimplemented.
func probeFlag(ctx context.Context, opts *options.Options, flag string) Result {
	logger := opts.Logger

	start := time.Now()
	name := "probe " + flag

	timeout := time.Duration(opts.ProbeTimeout) * time.Second
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger.Infof("Probing '%s %s' with a timeout of %v...", opts.Binary, flag, timeout)

	/* #nosec G204 */
	cmd := exec.CommandContext(ctx, opts.Binary, flag)
	cmd.Env = childEnv(opts)
	cmd.WaitDelay = timeout
	output, err := cmd.CombinedOutput()

	elapsed := time.Since(start).String()
	trimmed := strings.TrimSpace(string(output))

	if err != nil {
		logger.Infof("Flag %s not supported by %s: %s", flag, opts.Binary, err)
		return Result{
			Name:        name,
			Status:      StatusInfo,
			Detail:      fmt.Sprintf("flag not supported: %s", err),
			Output:      trimmed,
			ElapsedTime: elapsed,
		}
	}

	logger.Infof("Flag %s supported by %s. Output: %s", flag, opts.Binary, trimmed)
	return Result{
		Name:        name,
		Status:      StatusPass,
		Output:      trimmed,
		ElapsedTime: elapsed,
	}
}

// childEnv builds the environment for the binary under test: the checker's own
// environment, a DISPLAY override for headless operation, then any extra entries
// from the suite file. Later entries win on duplicate keys.
func childEnv(opts *options.Options) []string {
	env := os.Environ()
	if opts.Display != "" {
		env = append(env, "DISPLAY="+opts.Display)
	}
	return append(env, opts.ExtraEnv...)
}
