package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/gruntwork-io/smoke-checker/options"
	"github.com/sirupsen/logrus"
)

// checkLaunch spawns the binary with no arguments and observes it for a fixed
// window. The process must still be running when the window closes; an early
// exit is a hard failure reported with its exit code. The child is released on
// every path: a graceful termination request first, then a forced kill after a
// bounded grace period.
func checkLaunch(ctx context.Context, opts *options.Options) Result {
	logger := opts.Logger

	start := time.Now()

	wait := time.Duration(opts.LaunchWait) * time.Second
	if wait == 0 {
		wait = 3 * time.Second
	}
	grace := time.Duration(opts.TermGrace) * time.Second
	if grace == 0 {
		grace = 5 * time.Second
	}

	logger.Infof("Launching %s and observing for %v...", opts.Binary, wait)

	/* #nosec G204 */
	cmd := exec.Command(opts.Binary)
	cmd.Env = childEnv(opts)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	// Bound Wait against grandchildren holding the output pipes open after the
	// process itself has exited.
	cmd.WaitDelay = grace

	if err := cmd.Start(); err != nil {
		logger.Warnf("Launch of %s FAILED: %s", opts.Binary, err)
		return Result{
			Name:        "launch",
			Status:      StatusFail,
			Detail:      fmt.Sprintf("failed to start: %s", err),
			ElapsedTime: time.Since(start).String(),
		}
	}

	waitCh := make(chan error, 1)
	go func() {
		waitCh <- cmd.Wait()
	}()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case err := <-waitCh:
		exitCode := 0
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				exitCode = exitErr.ExitCode()
			}
		}
		logger.Warnf("%s terminated unexpectedly with code %d", opts.Binary, exitCode)
		logger.Warnf("Process output: %s", output.String())
		return Result{
			Name:        "launch",
			Status:      StatusFail,
			Detail:      fmt.Sprintf("process terminated unexpectedly with code %d", exitCode),
			Output:      strings.TrimSpace(output.String()),
			ElapsedTime: time.Since(start).String(),
		}

	case <-ctx.Done():
		_ = terminate(cmd, waitCh, grace, logger)
		return Result{
			Name:        "launch",
			Status:      StatusFail,
			Detail:      fmt.Sprintf("launch observation canceled: %s", ctx.Err()),
			ElapsedTime: time.Since(start).String(),
		}

	case <-timer.C:
		// Still running after the observation window
	}

	logger.Infof("%s launched successfully and is still running", opts.Binary)

	res := Result{
		Name:   "launch",
		Status: StatusPass,
		Detail: "process alive after observation window",
	}

	if err := terminate(cmd, waitCh, grace, logger); err != nil {
		// The child could not be confirmed exited, which would leak it past the
		// end of the suite.
		res.Status = StatusFail
		res.Detail = fmt.Sprintf("cleanup failed: %s", err)
	}

	res.ElapsedTime = time.Since(start).String()
	return res
}

// terminate releases a still-running child: a graceful termination request
// first, then a forced kill if the process has not acknowledged within the
// grace period. It returns only once the process is confirmed exited.
func terminate(cmd *exec.Cmd, waitCh <-chan error, grace time.Duration, logger *logrus.Logger) error {
	logger.Infof("Requesting graceful termination of pid %d...", cmd.Process.Pid)

	if err := signalTerm(cmd.Process); err != nil {
		logger.Warnf("Graceful termination request failed: %s. Forcing kill.", err)
		if killErr := cmd.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
			return killErr
		}
		<-waitCh
		return nil
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-waitCh:
		logger.Infof("Process exited gracefully")
	case <-timer.C:
		logger.Warnf("Process did not exit within %v. Forcing kill.", grace)
		if killErr := cmd.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
			return killErr
		}
		<-waitCh
	}

	return nil
}
