package fleet

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Controller realizes start, stop and reload for one service through a
// ProcessControl. It holds no process state of its own: whether the service is
// running is decided by the primitive from the PID file.
type Controller struct {
	// Config is the service being controlled
	Config *ServiceConfig
	// Control is the process-control primitive
	Control ProcessControl
	// Environ returns the inherited environment; defaults to os.Environ
	Environ func() []string
}

// NewController creates a Controller for cfg
func NewController(cfg *ServiceConfig, control ProcessControl) *Controller {
	return &Controller{
		Config:  cfg,
		Control: control,
		Environ: os.Environ,
	}
}

// Do dispatches action. Anything other than start, stop or reload fails with
// ErrInvalidAction before the primitive is invoked.
func (c *Controller) Do(ctx context.Context, action Action) error {
	switch action {
	case ActionStart:
		return c.Start(ctx)
	case ActionStop:
		return c.Stop(ctx)
	case ActionReload:
		return c.Reload(ctx)
	default:
		return &OpError{Op: action, Path: c.Config.Filename, Err: fmt.Errorf("%w: %q", ErrInvalidAction, string(action))}
	}
}

// Start launches gunicorn for the service unless it is already running
func (c *Controller) Start(ctx context.Context) error {
	return c.run(ctx, ActionStart, c.startRequest(), OutcomeDone)
}

// Stop terminates the service; a service that is not running is not an error
func (c *Controller) Stop(ctx context.Context) error {
	return c.run(ctx, ActionStop, c.stopRequest(""), OutcomeDone, OutcomeNothingDone)
}

// Reload asks the service to reload its configuration. The PID file is left untouched.
func (c *Controller) Reload(ctx context.Context) error {
	return c.run(ctx, ActionReload, c.stopRequest(ReloadSignal), OutcomeDone, OutcomeNothingDone)
}

// run invokes the primitive and accepts only the listed outcomes
func (c *Controller) run(ctx context.Context, action Action, req *Request, accept ...Outcome) error {
	outcome, err := c.Control.Run(ctx, req)
	if err != nil {
		return &OpError{Op: action, Path: c.Config.PIDFile(), Err: fmt.Errorf("%w: %s: %w", ErrProcessControl, outcome, err)}
	}

	for _, ok := range accept {
		if outcome == ok {
			return nil
		}
	}
	return &OpError{Op: action, Path: c.Config.PIDFile(), Err: fmt.Errorf("%w: %s (exit status %d)", ErrProcessControl, outcome, outcome.ExitCode())}
}

// startRequest builds the primitive invocation that launches gunicorn
func (c *Controller) startRequest() *Request {
	cfg := c.Config

	args := make([]string, 0, 12+len(cfg.Args))
	args = append(args, cfg.Mode.Daemon(),
		"--pid", cfg.PIDFile(),
		"--name", cfg.Basename(),
		"--user", cfg.User,
		"--group", cfg.Group,
		"--daemon",
		"--log-file", cfg.LogFile(),
	)
	args = append(args, cfg.Args...)

	environ := c.Environ
	if environ == nil {
		environ = os.Environ
	}

	return &Request{
		Command: CommandStart,
		Oknodo:  true,
		Quiet:   true,
		Chdir:   cfg.WorkingDir,
		PIDFile: cfg.PIDFile(),
		Exec:    cfg.Python,
		Args:    args,
		Env:     MergeEnv(environ(), cfg.Environment),
	}
}

// stopRequest builds the primitive invocation that signals the service
func (c *Controller) stopRequest(signal string) *Request {
	return &Request{
		Command: CommandStop,
		Signal:  signal,
		Oknodo:  true,
		Quiet:   true,
		Retry:   DefaultStopRetries,
		PIDFile: c.Config.PIDFile(),
	}
}

// MergeEnv returns a new KEY=VALUE environment made of base with every entry of
// overrides replacing or adding to it. Neither input is modified and the result
// is sorted by key.
func MergeEnv(base []string, overrides map[string]string) []string {
	merged := make(map[string]string, len(base)+len(overrides))
	for _, kv := range base {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+merged[k])
	}
	return env
}
