//go:build linux || darwin

// Package proc provides PID file and signal helpers for Unix platforms.
package proc

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrBadPIDFile indicates a PID file that does not hold a positive process ID
var ErrBadPIDFile = errors.New("proc: malformed pid file")

// ReadPIDFile returns the process ID recorded in path.
// A missing file yields an error satisfying errors.Is(err, fs.ErrNotExist).
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrBadPIDFile, path)
	}
	return pid, nil
}

// Alive reports whether a process with the given ID exists.
// A process owned by another user still counts as alive.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// Signal delivers sig to pid. A process that no longer exists is reported as
// an error satisfying IsGone.
func Signal(pid int, sig unix.Signal) error {
	return unix.Kill(pid, sig)
}

// IsGone reports whether err means the target process does not exist
func IsGone(err error) bool {
	return errors.Is(err, unix.ESRCH)
}

// ParseSignal resolves a signal by name ("HUP", "SIGHUP") or number ("1")
func ParseSignal(name string) (unix.Signal, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return unix.SIGTERM, nil
	}

	if n, err := strconv.Atoi(name); err == nil && n > 0 {
		return unix.Signal(n), nil
	}

	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}
	if sig := unix.SignalNum(name); sig != 0 {
		return sig, nil
	}
	return 0, fmt.Errorf("proc: unknown signal %q", name)
}
