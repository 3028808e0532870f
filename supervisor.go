package fleet

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ignoredSuffixes mark packaging leftovers, backups and examples
var ignoredSuffixes = []string{
	".dpkg-old",
	".dpkg-dist",
	".dpkg-new",
	".dpkg-tmp",
	".example",
}

// IsIgnored reports whether a configuration directory entry is never a live
// service definition: names starting with an underscore, and dpkg or example
// artifacts.
func IsIgnored(name string) bool {
	name = filepath.Base(name)
	if strings.HasPrefix(name, "_") {
		return true
	}
	for _, suffix := range ignoredSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// Supervisor applies one action to every service configured in a directory.
// Services are processed sequentially in lexicographic order; the first error
// aborts the run without undoing earlier actions.
type Supervisor struct {
	// Control is the process-control primitive
	Control ProcessControl
	// Loader parses configuration files
	Loader ConfigLoader
	// Logger receives structured diagnostics
	Logger *zap.SugaredLogger
	// Progress receives the " [name]" marker for every dispatched service
	Progress io.Writer
	// Debounce coalesces configuration directory events in Watch
	Debounce time.Duration
}

// SupervisorOption configures a Supervisor
type SupervisorOption func(*Supervisor)

// WithControl sets the process-control primitive
func WithControl(control ProcessControl) SupervisorOption {
	return func(s *Supervisor) {
		s.Control = control
	}
}

// WithStartStopDaemon uses the start-stop-daemon binary at path
func WithStartStopDaemon(path string) SupervisorOption {
	return func(s *Supervisor) {
		s.Control = NewExecControl(path)
	}
}

// WithLoader sets the configuration loader
func WithLoader(loader ConfigLoader) SupervisorOption {
	return func(s *Supervisor) {
		s.Loader = loader
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.SugaredLogger) SupervisorOption {
	return func(s *Supervisor) {
		s.Logger = logger
	}
}

// WithProgress sets the writer progress markers are printed to
func WithProgress(w io.Writer) SupervisorOption {
	return func(s *Supervisor) {
		s.Progress = w
	}
}

// WithDebounce sets the debounce interval used by Watch
func WithDebounce(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		s.Debounce = d
	}
}

// NewSupervisor creates a Supervisor driving start-stop-daemon by default
func NewSupervisor(opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		Control:  NewExecControl(""),
		Loader:   FileLoader,
		Logger:   zap.NewNop().Sugar(),
		Progress: os.Stdout,
		Debounce: DefaultWatchDebounce,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.Logger == nil {
		s.Logger = zap.NewNop().Sugar()
	}
	if s.Progress == nil {
		s.Progress = io.Discard
	}

	return s
}

// ConfigFiles lists the live service definitions directly inside confDir, sorted.
// Hidden files are skipped along with ignored names; atomic writers stage their
// temporary files there.
func ConfigFiles(confDir string) ([]string, error) {
	entries, err := os.ReadDir(confDir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrFilesystem, confDir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") || IsIgnored(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(confDir, entry.Name()))
	}
	sort.Strings(files)

	return files, nil
}

// Services loads and normalizes every live service definition in confDir
func (s *Supervisor) Services(confDir, pidDir, logDir string) ([]*ServiceConfig, error) {
	files, err := ConfigFiles(confDir)
	if err != nil {
		return nil, err
	}

	services := make([]*ServiceConfig, 0, len(files))
	for _, file := range files {
		cfg, err := s.load(file, pidDir, logDir)
		if err != nil {
			return nil, err
		}
		services = append(services, cfg)
	}
	return services, nil
}

func (s *Supervisor) load(file, pidDir, logDir string) (*ServiceConfig, error) {
	raw, err := s.Loader.Load(file)
	if err != nil {
		return nil, err
	}
	return NewServiceConfig(file, pidDir, logDir, raw)
}

// Run applies action to every service configured in confDir. After a stop it
// reaps PID files in pidDir whose configuration no longer exists.
func (s *Supervisor) Run(ctx context.Context, confDir, pidDir, logDir string, action Action) error {
	if err := os.MkdirAll(pidDir, DirMode); err != nil {
		return &OpError{Op: action, Path: pidDir, Err: fmt.Errorf("%w: %v", ErrFilesystem, err)}
	}

	files, err := ConfigFiles(confDir)
	if err != nil {
		return &OpError{Op: action, Path: confDir, Err: err}
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		cfg, err := s.load(file, pidDir, logDir)
		if err != nil {
			return &OpError{Op: action, Path: file, Err: err}
		}

		s.printName(cfg.Basename())

		if err := NewController(cfg, s.Control).Do(ctx, action); err != nil {
			s.Logger.Errorw("Service action failed", "service", cfg.Basename(), "action", action, "error", err)
			return err
		}
		s.Logger.Debugw("Service action applied", "service", cfg.Basename(), "action", action, "mode", cfg.Mode)
	}

	if action == ActionStop {
		return s.Reconcile(ctx, pidDir)
	}
	return nil
}

// Reconcile stops whatever process each *.pid file in pidDir still records and
// removes the files that no longer track a live process. Configurations that
// were removed or renamed since their service started would otherwise leave
// their process and PID file behind forever.
//
// A PID file is removed when the primitive reports OutcomeDone: with oknodo
// that means the recorded process was terminated or was not alive to begin
// with. Files whose process survived are kept.
func (s *Supervisor) Reconcile(ctx context.Context, pidDir string) error {
	pidFiles, err := filepath.Glob(filepath.Join(pidDir, "*"+PIDSuffix))
	if err != nil {
		return &OpError{Op: ActionStop, Path: pidDir, Err: fmt.Errorf("%w: %v", ErrFilesystem, err)}
	}

	merr := &MultiError{}
	for _, pidFile := range pidFiles {
		req := &Request{
			Command: CommandStop,
			Oknodo:  true,
			Quiet:   true,
			Retry:   ReconcileRetries,
			PIDFile: pidFile,
		}

		outcome, err := s.Control.Run(ctx, req)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			merr.Add(&OpError{Op: ActionStop, Path: pidFile, Err: fmt.Errorf("%w: %w", ErrProcessControl, err)})
			continue
		}
		if outcome != OutcomeDone {
			s.Logger.Warnw("Keeping PID file of surviving process", "pidfile", pidFile, "outcome", outcome)
			continue
		}

		if err := os.Remove(pidFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			merr.Add(&OpError{Op: ActionStop, Path: pidFile, Err: fmt.Errorf("%w: %v", ErrFilesystem, err)})
			continue
		}
		s.Logger.Infow("Removed stale PID file", "pidfile", pidFile)
	}

	return merr.Err()
}

// printName writes the progress marker for a service and flushes it
func (s *Supervisor) printName(name string) {
	_, _ = fmt.Fprintf(s.Progress, " [%s]", name)
	s.flushProgress()
}

// endLine terminates the current line of progress markers
func (s *Supervisor) endLine() {
	_, _ = fmt.Fprintln(s.Progress)
	s.flushProgress()
}

func (s *Supervisor) flushProgress() {
	switch w := s.Progress.(type) {
	case *bufio.Writer:
		_ = w.Flush()
	case interface{ Sync() error }:
		_ = w.Sync()
	}
}
