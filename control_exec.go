package fleet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ExecControl drives processes by shelling out to start-stop-daemon
type ExecControl struct {
	// Path is the start-stop-daemon binary to run
	Path string
}

// NewExecControl creates an ExecControl that runs the start-stop-daemon found at path.
// An empty path selects DefaultStartStopDaemonPath from $PATH.
func NewExecControl(path string) *ExecControl {
	if path == "" {
		path = DefaultStartStopDaemonPath
	}
	return &ExecControl{Path: path}
}

// Run executes start-stop-daemon with the request's arguments and maps its exit
// status to an Outcome. The started daemon inherits req.Env through the primitive.
func (c *ExecControl) Run(ctx context.Context, req *Request) (Outcome, error) {
	cmd := exec.CommandContext(ctx, c.Path, req.Argv()...)
	cmd.Env = req.Env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return OutcomeDone, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return OutcomeTrouble, ctxErr
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return OutcomeTrouble, fmt.Errorf("running %s: %w", c.Path, err)
	}

	outcome := OutcomeFromExitCode(exitErr.ExitCode())
	if outcome == OutcomeTrouble {
		return outcome, fmt.Errorf("%s %s: %w (stderr: %s)",
			c.Path, req.Command, err, strings.TrimSpace(stderr.String()))
	}
	return outcome, nil
}
