package fleet

import "time"

// Service defaults applied when a configuration file omits a key
const (
	// DefaultMode is the gunicorn flavour used when no mode is configured
	DefaultMode = ModeWSGI

	// DefaultUser is the account the workers drop privileges to
	DefaultUser = "www-data"

	// DefaultGroup is the group the workers drop privileges to
	DefaultGroup = "www-data"

	// DefaultWorkingDir is the directory the daemon is started from
	DefaultWorkingDir = "/"

	// DefaultPython is the interpreter that runs the gunicorn entry point
	DefaultPython = "/usr/bin/python"
)

// Process control constants
const (
	// DefaultStartStopDaemonPath is the default path to the start-stop-daemon binary
	DefaultStartStopDaemonPath = "start-stop-daemon"

	// DefaultStopRetries is the retry bound passed to the primitive on stop and reload
	DefaultStopRetries = 10

	// ReconcileRetries is the retry bound used when reaping orphaned PID files
	ReconcileRetries = 1

	// ReloadSignal is the signal delivered to a service on reload
	ReloadSignal = "HUP"

	// DefaultBackoffMin is the minimum delay between liveness polls
	DefaultBackoffMin = 10 * time.Millisecond

	// DefaultBackoffMax is the maximum delay between liveness polls
	DefaultBackoffMax = 500 * time.Millisecond

	// DefaultWatchDebounce coalesces bursts of configuration directory events
	DefaultWatchDebounce = 250 * time.Millisecond
)

// File naming
const (
	// PIDSuffix is appended to a service basename to form its PID file name
	PIDSuffix = ".pid"

	// LogSuffix is appended to a service basename to form its log file name
	LogSuffix = ".log"
)

// File modes
const (
	// DirMode is the default mode for created directories
	DirMode = 0o755

	// FileMode is the default mode for created files
	FileMode = 0o644
)

// Mode selects which gunicorn entry point runs a service
type Mode string

const (
	// ModeWSGI runs a plain WSGI application through gunicorn
	ModeWSGI Mode = "wsgi"
	// ModeDjango runs a Django project through gunicorn_django
	ModeDjango Mode = "django"
	// ModePaster runs a Paste deployment through gunicorn_paster
	ModePaster Mode = "paster"
)

// daemons maps each mode to the gunicorn entry point it executes
var daemons = map[Mode]string{
	ModeWSGI:   "/usr/bin/gunicorn",
	ModeDjango: "/usr/bin/gunicorn_django",
	ModePaster: "/usr/bin/gunicorn_paster",
}

// Valid reports whether m is one of the supported modes
func (m Mode) Valid() bool {
	_, ok := daemons[m]
	return ok
}

// Daemon returns the gunicorn entry point for the mode, or "" if the mode is invalid
func (m Mode) Daemon() string {
	return daemons[m]
}

// String returns the string representation of a Mode
func (m Mode) String() string {
	return string(m)
}

// Action is a fleet-wide lifecycle operation
type Action string

const (
	// ActionStart starts every service that is not already running
	ActionStart Action = "start"
	// ActionStop stops every service and reaps orphaned PID files
	ActionStop Action = "stop"
	// ActionReload sends the reload signal to every running service
	ActionReload Action = "reload"
)

// Valid reports whether a is one of start, stop or reload
func (a Action) Valid() bool {
	switch a {
	case ActionStart, ActionStop, ActionReload:
		return true
	default:
		return false
	}
}

// String returns the string representation of an Action
func (a Action) String() string {
	return string(a)
}
