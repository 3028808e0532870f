package fleet

import (
	"context"
	"strconv"
	"strings"
)

// ProcessControl is the process-control primitive the fleet is driven through.
// Implementations must be idempotent with respect to "already running" and
// "already stopped" when the request sets Oknodo.
//
// Run returns a non-nil error only when the primitive could not be invoked, or
// when it reported OutcomeTrouble and has diagnostics to attach.
type ProcessControl interface {
	Run(ctx context.Context, req *Request) (Outcome, error)
}

// Command selects whether a Request starts or stops a process
type Command int

const (
	// CommandStart starts a new process unless one is already recorded
	CommandStart Command = iota
	// CommandStop signals the process recorded in the PID file
	CommandStop
)

// String returns the string representation of a Command
func (c Command) String() string {
	if c == CommandStart {
		return "start"
	}
	return "stop"
}

// Request describes a single invocation of the process-control primitive.
// The fields mirror the start-stop-daemon flags of the same name.
type Request struct {
	// Command is start or stop
	Command Command
	// Signal is the signal sent on stop; empty means TERM
	Signal string
	// Oknodo reports success when the target state already holds
	Oknodo bool
	// Quiet suppresses informational output from the primitive
	Quiet bool
	// Retry bounds how long a stop waits for the process to go away
	Retry int
	// Chdir is the directory a started process runs from
	Chdir string
	// PIDFile is the file recording the process identity
	PIDFile string
	// Exec is the executable a start request runs
	Exec string
	// Args are passed to Exec
	Args []string
	// Env is the complete environment of a started process; nil inherits ours
	Env []string
}

// Terminates reports whether the request asks the process to exit, as opposed
// to delivering a signal the process is expected to survive
func (r *Request) Terminates() bool {
	if r.Command != CommandStop {
		return false
	}
	switch strings.TrimPrefix(strings.ToUpper(r.Signal), "SIG") {
	case "", "TERM", "KILL", "INT", "QUIT", "15", "9", "2", "3":
		return true
	default:
		return false
	}
}

// Argv renders the request as start-stop-daemon arguments.
//
// --retry is only emitted for terminating stops: start-stop-daemon treats it as
// a schedule that waits for the process to exit and escalates to KILL, which
// must never happen to a process that was only asked to reload.
func (r *Request) Argv() []string {
	args := make([]string, 0, 12+len(r.Args))

	if r.Command == CommandStart {
		args = append(args, "--start")
	} else {
		args = append(args, "--stop")
		if r.Signal != "" {
			args = append(args, "--signal", r.Signal)
		}
	}
	if r.Oknodo {
		args = append(args, "--oknodo")
	}
	if r.Quiet {
		args = append(args, "--quiet")
	}
	if r.Retry > 0 && r.Terminates() {
		args = append(args, "--retry", strconv.Itoa(r.Retry))
	}
	if r.Chdir != "" {
		args = append(args, "--chdir", r.Chdir)
	}
	if r.PIDFile != "" {
		args = append(args, "--pidfile", r.PIDFile)
	}
	if r.Exec != "" {
		args = append(args, "--exec", r.Exec)
	}
	if len(r.Args) > 0 {
		args = append(args, "--")
		args = append(args, r.Args...)
	}

	return args
}

// Outcome is the result reported by the process-control primitive
type Outcome int

const (
	// OutcomeDone means the action was performed, or with Oknodo that nothing was needed
	OutcomeDone Outcome = iota
	// OutcomeNothingDone means nothing was done and Oknodo was not requested
	OutcomeNothingDone
	// OutcomeStillRunning means the process survived the whole retry schedule
	OutcomeStillRunning
	// OutcomeTrouble means the primitive failed for any other reason
	OutcomeTrouble
)

// Outcome string constants
const (
	outcomeDoneStr         = "done"
	outcomeNothingDoneStr  = "nothing done"
	outcomeStillRunningStr = "still running"
	outcomeTroubleStr      = "trouble"
)

// OutcomeFromExitCode maps a start-stop-daemon exit status to an Outcome
func OutcomeFromExitCode(code int) Outcome {
	switch code {
	case 0:
		return OutcomeDone
	case 1:
		return OutcomeNothingDone
	case 2:
		return OutcomeStillRunning
	default:
		return OutcomeTrouble
	}
}

// ExitCode returns the start-stop-daemon exit status for the outcome
func (o Outcome) ExitCode() int {
	switch o {
	case OutcomeDone:
		return 0
	case OutcomeNothingDone:
		return 1
	case OutcomeStillRunning:
		return 2
	default:
		return 3
	}
}

// String returns the string representation of an Outcome
func (o Outcome) String() string {
	switch o {
	case OutcomeDone:
		return outcomeDoneStr
	case OutcomeNothingDone:
		return outcomeNothingDoneStr
	case OutcomeStillRunning:
		return outcomeStillRunningStr
	default:
		return outcomeTroubleStr
	}
}
