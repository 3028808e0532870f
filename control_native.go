//go:build linux || darwin

package fleet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/axondata/go-fleet/internal/proc"
)

// NativeControl implements the start-stop-daemon contract in Go, without
// spawning the external primitive. Process identity comes from the PID file
// and liveness is probed with signal 0.
//
// A start request runs Exec in the foreground and waits for it to exit, which
// matches gunicorn's --daemon behaviour of forking and returning.
type NativeControl struct {
	// RetryUnit is the duration of one Retry step (start-stop-daemon uses seconds)
	RetryUnit time.Duration
	// BackoffMin is the minimum delay between liveness polls
	BackoffMin time.Duration
	// BackoffMax is the maximum delay between liveness polls
	BackoffMax time.Duration
}

// NewNativeControl creates a NativeControl with default timings
func NewNativeControl() *NativeControl {
	return &NativeControl{
		RetryUnit:  time.Second,
		BackoffMin: DefaultBackoffMin,
		BackoffMax: DefaultBackoffMax,
	}
}

// Run performs the request and reports the outcome start-stop-daemon would
func (c *NativeControl) Run(ctx context.Context, req *Request) (Outcome, error) {
	if req.Command == CommandStart {
		return c.start(ctx, req)
	}
	return c.stop(ctx, req)
}

// running returns the recorded PID and whether that process is alive
func (c *NativeControl) running(pidFile string) (int, bool, error) {
	if pidFile == "" {
		return 0, false, errors.New("no pid file given")
	}
	pid, err := proc.ReadPIDFile(pidFile)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return pid, proc.Alive(pid), nil
}

// nothingDone maps "target state already holds" according to Oknodo
func nothingDone(req *Request) Outcome {
	if req.Oknodo {
		return OutcomeDone
	}
	return OutcomeNothingDone
}

func (c *NativeControl) start(ctx context.Context, req *Request) (Outcome, error) {
	if _, alive, err := c.running(req.PIDFile); err != nil {
		return OutcomeTrouble, err
	} else if alive {
		return nothingDone(req), nil
	}

	if req.Exec == "" {
		return OutcomeTrouble, errors.New("no executable given")
	}

	cmd := exec.CommandContext(ctx, req.Exec, req.Args...)
	cmd.Dir = req.Chdir
	cmd.Env = req.Env

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return OutcomeTrouble, ctxErr
		}
		return OutcomeTrouble, fmt.Errorf("%s: %w (stderr: %s)", req.Exec, err, strings.TrimSpace(stderr.String()))
	}
	return OutcomeDone, nil
}

func (c *NativeControl) stop(ctx context.Context, req *Request) (Outcome, error) {
	pid, alive, err := c.running(req.PIDFile)
	if err != nil {
		return OutcomeTrouble, err
	}
	if !alive {
		return nothingDone(req), nil
	}

	sig, err := proc.ParseSignal(req.Signal)
	if err != nil {
		return OutcomeTrouble, err
	}

	if !req.Terminates() {
		return c.deliver(ctx, req, pid, sig)
	}

	if err := proc.Signal(pid, sig); err != nil {
		if proc.IsGone(err) {
			return nothingDone(req), nil
		}
		return OutcomeTrouble, fmt.Errorf("signalling pid %d: %w", pid, err)
	}
	if req.Retry <= 0 {
		return OutcomeDone, nil
	}

	timeout := time.Duration(req.Retry) * c.RetryUnit
	gone, err := c.waitGone(ctx, pid, timeout)
	if err != nil {
		return OutcomeTrouble, err
	}
	if gone {
		return OutcomeDone, nil
	}

	if err := proc.Signal(pid, unix.SIGKILL); err != nil && !proc.IsGone(err) {
		return OutcomeTrouble, fmt.Errorf("killing pid %d: %w", pid, err)
	}
	gone, err = c.waitGone(ctx, pid, timeout)
	if err != nil {
		return OutcomeTrouble, err
	}
	if !gone {
		return OutcomeStillRunning, nil
	}
	return OutcomeDone, nil
}

// deliver sends a non-terminating signal, retrying failed deliveries up to req.Retry times
func (c *NativeControl) deliver(ctx context.Context, req *Request, pid int, sig unix.Signal) (Outcome, error) {
	attempts := req.Retry
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	backoff := c.BackoffMin

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return OutcomeTrouble, ctx.Err()
			case <-time.After(backoff):
			}

			backoff *= 2
			if backoff > c.BackoffMax {
				backoff = c.BackoffMax
			}
		}

		err := proc.Signal(pid, sig)
		if err == nil {
			return OutcomeDone, nil
		}
		if proc.IsGone(err) {
			return nothingDone(req), nil
		}
		lastErr = err
	}

	return OutcomeTrouble, fmt.Errorf("signalling pid %d: %w", pid, lastErr)
}

// waitGone polls until pid exits or timeout elapses
func (c *NativeControl) waitGone(ctx context.Context, pid int, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	backoff := c.BackoffMin

	for {
		if !proc.Alive(pid) {
			return true, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}

		wait := backoff
		if wait > remaining {
			wait = remaining
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(wait):
		}

		backoff *= 2
		if backoff > c.BackoffMax {
			backoff = c.BackoffMax
		}
	}
}
