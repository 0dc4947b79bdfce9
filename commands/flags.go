package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/gruntwork-io/go-commons/logging"
	"github.com/gruntwork-io/smoke-checker/options"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

const DEFAULT_LAUNCH_WAIT_SEC = 3
const DEFAULT_PROBE_TIMEOUT_SEC = 5
const DEFAULT_TERM_GRACE_SEC = 5
const DEFAULT_HEADLESS_DISPLAY = ":99"
const ENV_VAR_NAME_DEBUG_MODE = "SMOKE_CHECKER_DEBUG"

var binaryFlag = &cli.StringFlag{
	Name:  "binary",
	Usage: "[Required unless set in --config] The name of the binary under test, resolved against PATH. Example: muttontext",
}

var probeFlagFlag = &cli.StringSliceFlag{
	Name:  "probe-flag",
	Usage: "[Optional] A flag to probe on the binary under test. The probe never fails the suite if the flag is unimplemented. Specify one or more times. Defaults to --version and --help. Example: \"--version\"",
}

var launchWaitFlag = &cli.IntFlag{
	Name:  "launch-wait",
	Usage: "[Optional] Observation window, in seconds, during which the launched binary must stay running. Example: 3",
	Value: DEFAULT_LAUNCH_WAIT_SEC,
}

var probeTimeoutFlag = &cli.IntFlag{
	Name:  "probe-timeout",
	Usage: "[Optional] Timeout, in seconds, to wait for each flag probe to complete. Example: 5",
	Value: DEFAULT_PROBE_TIMEOUT_SEC,
}

var termGraceFlag = &cli.IntFlag{
	Name:  "term-grace",
	Usage: "[Optional] Grace period, in seconds, between the graceful termination request and the forced kill of the launched binary. Example: 5",
	Value: DEFAULT_TERM_GRACE_SEC,
}

var displayFlag = &cli.StringFlag{
	Name:  "display",
	Usage: fmt.Sprintf("[Optional] DISPLAY value forwarded to the binary under test for headless operation. Defaults to the current DISPLAY, or %s when unset. Example: \":99\"", DEFAULT_HEADLESS_DISPLAY),
}

var skipLaunchFlag = &cli.BoolFlag{
	Name:  "skip-launch",
	Usage: "[Optional] Only resolve the binary and run the flag probes, without spawning the application itself.",
}

var configFlag = &cli.StringFlag{
	Name:  "config",
	Usage: "[Optional] Path to a YAML suite file describing the binary, probe flags, timeouts, and child environment. Explicit CLI flags override file values.",
}

var detailedStatusFlag = &cli.BoolFlag{
	Name:  "detailed-status",
	Usage: "[Optional] Emit a detailed JSON report with the run id, per-probe results, elapsed time, and specific error messages if checks fail.",
}

var listenerFlag = &cli.StringFlag{
	Name:  "listener",
	Usage: "[Optional] An IP address and port to accept inbound HTTP connections on. When set, each request runs the smoke suite and answers 200 on pass, 503 on failure. Example: \"0.0.0.0:5500\"",
}

var singleflightFlag = &cli.BoolFlag{
	Name:  "singleflight",
	Usage: "[Optional] Enable singleflight mode, which makes concurrent HTTP requests share the same suite run.",
}

var httpReadTimeoutFlag = &cli.IntFlag{
	Name:  "http-read-timeout",
	Usage: "[Optional] Timeout, in seconds, for reading the entire HTTP request, including the body. Example: 5",
	Value: 5,
}

var httpWriteTimeoutFlag = &cli.IntFlag{
	Name:  "http-write-timeout",
	Usage: "[Optional] Timeout, in seconds, for writing the HTTP response. Dynamically scales with the suite's worst-case duration if set to 0. Example: 30",
	Value: 0,
}

var httpIdleTimeoutFlag = &cli.IntFlag{
	Name:  "http-idle-timeout",
	Usage: "[Optional] Timeout, in seconds, to wait for the next request when keep-alives are enabled. Example: 15",
	Value: 15,
}

var logLevelFlag = &cli.StringFlag{
	Name:  "log-level",
	Usage: fmt.Sprintf("[Optional] Set the log level to `LEVEL`. Must be one of: %v", logrus.AllLevels),
	Value: logrus.InfoLevel.String(),
}

var defaultFlags = []cli.Flag{
	binaryFlag,
	probeFlagFlag,
	launchWaitFlag,
	probeTimeoutFlag,
	termGraceFlag,
	displayFlag,
	skipLaunchFlag,
	configFlag,
	detailedStatusFlag,
	listenerFlag,
	singleflightFlag,
	httpReadTimeoutFlag,
	httpWriteTimeoutFlag,
	httpIdleTimeoutFlag,
	logLevelFlag,
}

// Return true if no options at all were passed to the CLI. Note that we are specifically testing for flags, some of which
// are required, not just args.
func allCliOptionsEmpty(cmd *cli.Command) bool {
	return cmd.NumFlags() == 0
}

// parseOptions processes the user-provided CLI arguments from the urfave/cli/v3 Command,
// merges them with the optional YAML suite file, and maps the result to the internal
// Options struct. Precedence is: explicit CLI flag, then suite file, then flag default.
func parseOptions(cmd *cli.Command) (*options.Options, error) {
	logger := logging.GetLogger("smoke-checker", "v0.0.0")

	// By default logrus logs to stderr. But since most output in this tool is informational, we default to stdout.
	logger.Logger.Out = os.Stdout

	logLevel := cmd.String(logLevelFlag.Name)
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return nil, InvalidLogLevel(logLevel)
	}
	logger.Logger.SetLevel(level)

	cfg := &options.Config{}
	if path := cmd.String(configFlag.Name); path != "" {
		cfg, err = options.LoadConfig(path)
		if err != nil {
			return nil, err
		}
	}

	binary := cfg.Binary
	if cmd.IsSet(binaryFlag.Name) || binary == "" {
		binary = cmd.String(binaryFlag.Name)
	}
	if binary == "" {
		return nil, MissingParam(binaryFlag.Name)
	}
	if err := options.ValidateBinary(binary); err != nil {
		return nil, err
	}

	rawProbeFlags := cfg.ProbeFlags
	if cmd.IsSet(probeFlagFlag.Name) {
		rawProbeFlags = cmd.StringSlice(probeFlagFlag.Name)
	}
	probeFlags, err := options.ParseProbeFlags(rawProbeFlags)
	if err != nil {
		return nil, err
	}

	display := cfg.Display
	if cmd.IsSet(displayFlag.Name) || display == "" {
		display = cmd.String(displayFlag.Name)
	}
	if display == "" {
		display = os.Getenv("DISPLAY")
	}
	if display == "" {
		display = DEFAULT_HEADLESS_DISPLAY
	}

	skipLaunch := cmd.Bool(skipLaunchFlag.Name) || cfg.SkipLaunch
	singleflight := cmd.Bool(singleflightFlag.Name)
	detailedStatus := cmd.Bool(detailedStatusFlag.Name)

	launchWait := resolveInt(cmd, launchWaitFlag.Name, cfg.LaunchWait)
	probeTimeout := resolveInt(cmd, probeTimeoutFlag.Name, cfg.ProbeTimeout)
	termGrace := resolveInt(cmd, termGraceFlag.Name, cfg.TermGrace)

	httpReadTimeout := int(cmd.Int(httpReadTimeoutFlag.Name))
	httpWriteTimeout := int(cmd.Int(httpWriteTimeoutFlag.Name))
	httpIdleTimeout := int(cmd.Int(httpIdleTimeoutFlag.Name))

	listener := cmd.String(listenerFlag.Name)

	return &options.Options{
		Binary:           binary,
		ProbeFlags:       probeFlags,
		LaunchWait:       launchWait,
		ProbeTimeout:     probeTimeout,
		TermGrace:        termGrace,
		Display:          display,
		ExtraEnv:         cfg.EnvSlice(),
		SkipLaunch:       skipLaunch,
		DetailedStatus:   detailedStatus,
		Singleflight:     singleflight,
		Listener:         listener,
		HttpReadTimeout:  httpReadTimeout,
		HttpWriteTimeout: httpWriteTimeout,
		HttpIdleTimeout:  httpIdleTimeout,
		Logger:           logger.Logger,
	}, nil
}

// resolveInt prefers an explicit CLI flag, then the suite file, then the flag default.
func resolveInt(cmd *cli.Command, name string, fromConfig int) int {
	if cmd.IsSet(name) || fromConfig == 0 {
		return int(cmd.Int(name))
	}
	return fromConfig
}

// Some error types are simple enough that we'd rather just show the error message directly instead of vomiting out a
// whole stack trace in log output. Therefore, allow a debug mode that always shows full stack traces. Otherwise, show
// simple messages.
func isDebugMode() bool {
	envVar, _ := os.LookupEnv(ENV_VAR_NAME_DEBUG_MODE)
	envVar = strings.ToLower(envVar)
	return envVar == "true"
}

// Custom error types

type InvalidLogLevel string

func (invalidLogLevel InvalidLogLevel) Error() string {
	return fmt.Sprintf("The log-level value \"%s\" is invalid", string(invalidLogLevel))
}

type MissingParam string

func (paramName MissingParam) Error() string {
	return fmt.Sprintf("Missing required parameter --%s", string(paramName))
}
