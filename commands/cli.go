package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gruntwork-io/go-commons/errors"
	"github.com/gruntwork-io/smoke-checker/probe"
	"github.com/gruntwork-io/smoke-checker/server"
	"github.com/urfave/cli/v3"
)

// CreateCli initializes the root urfave/cli/v3 Command, parsing flags, metadata, and mapping the default action
// to the runSmokeChecker method. It also customizes the help template to remove unused sections.
func CreateCli(version string) *cli.Command {
	app := &cli.Command{}

	app.CustomHelpTemplate = ` NAME:
    {{.Name}} - {{.Usage}}

 USAGE:
    {{.HelpName}} {{if .Flags}}[options]{{end}}
    {{if .Commands}}
 OPTIONS:
    {{range .VisibleFlags}}{{.}}
    {{end}}{{end}}{{if .Copyright }}
 COPYRIGHT:
    {{.Copyright}}
    {{end}}{{if .Version}}
 VERSION:
    {{.Version}}
    {{end}}{{if len .Authors}}
 AUTHOR(S):
    {{range .Authors}}{{ . }}{{end}}
	{{end}}
`

	app.Name = "smoke-checker"
	app.Version = version
	app.Usage = "A smoke-test harness that verifies an installed application binary launches, stays up, and responds to its basic flags."
	app.Commands = nil
	app.Flags = defaultFlags
	app.Action = runSmokeChecker

	return app
}

func runSmokeChecker(ctx context.Context, cmd *cli.Command) error {
	if allCliOptionsEmpty(cmd) {
		cli.ShowAppHelpAndExit(cmd, 0)
	}

	opts, err := parseOptions(cmd)
	if err != nil {
		if isDebugMode() {
			return errors.WithStackTrace(err)
		}
		return err
	}

	opts.Logger.Infof("The smoke check will probe binary %s with the following flags: %v", opts.Binary, opts.ProbeFlags)
	if opts.SkipLaunch {
		opts.Logger.Infof("The launch check is disabled; only PATH resolution and flag probes will run")
	}

	if opts.Listener != "" {
		opts.Logger.Infof("Listening on Port %s...", opts.Listener)
		if err := server.StartHttpServer(opts); err != nil {
			return errors.WithStackTrace(err)
		}
		return nil
	}

	report := probe.RunSuite(ctx, opts)

	if opts.DetailedStatus {
		jsonBytes, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return errors.WithStackTrace(err)
		}
		fmt.Println(string(jsonBytes))
	}

	if !report.Passed() {
		return SuiteFailed(report.Errors)
	}

	return nil
}

// SuiteFailed carries the hard failures of a suite run so that main can exit non-zero
// with a readable summary instead of a stack trace.
type SuiteFailed []string

func (failures SuiteFailed) Error() string {
	return fmt.Sprintf("smoke checks failed: %s", strings.Join(failures, "; "))
}
