package fleet

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, raw map[string]any) *ServiceConfig {
	t.Helper()
	cfg, err := NewServiceConfig("/etc/gunicorn.d/app", "/run/gunicorn", "/var/log/gunicorn", raw)
	require.NoError(t, err)
	return cfg
}

func newTestController(cfg *ServiceConfig, control ProcessControl) *Controller {
	c := NewController(cfg, control)
	c.Environ = func() []string { return []string{"PATH=/usr/bin:/bin", "LANG=C"} }
	return c
}

func TestControllerStartRequest(t *testing.T) {
	cfg := testConfig(t, map[string]any{
		"mode":        "paster",
		"user":        "app",
		"group":       "staff",
		"working_dir": "/srv/app",
		"python":      "/opt/venv/bin/python",
		"environment": map[string]any{"LANG": "en_US.UTF-8", "APP_ENV": "prod"},
		"args":        []any{"development.ini", "--workers", "3"},
	})
	control := &recordingControl{}

	require.NoError(t, newTestController(cfg, control).Start(context.Background()))

	reqs := control.Requests()
	require.Len(t, reqs, 1)
	req := reqs[0]

	assert.Equal(t, CommandStart, req.Command)
	assert.True(t, req.Oknodo)
	assert.True(t, req.Quiet)
	assert.Equal(t, "/srv/app", req.Chdir)
	assert.Equal(t, "/run/gunicorn/app.pid", req.PIDFile)
	assert.Equal(t, "/opt/venv/bin/python", req.Exec)
	assert.Equal(t, []string{
		"/usr/bin/gunicorn_paster",
		"--pid", "/run/gunicorn/app.pid",
		"--name", "app",
		"--user", "app",
		"--group", "staff",
		"--daemon",
		"--log-file", "/var/log/gunicorn/app.log",
		"development.ini", "--workers", "3",
	}, req.Args)
	assert.Equal(t, []string{"APP_ENV=prod", "LANG=en_US.UTF-8", "PATH=/usr/bin:/bin"}, req.Env)
}

func TestControllerStartTwice(t *testing.T) {
	cfg := testConfig(t, nil)
	// The primitive reports success whether or not the service was already up
	control := &recordingControl{}
	c := newTestController(cfg, control)

	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Start(context.Background()))
	assert.Len(t, control.Requests(), 2)
}

func TestControllerStartFailure(t *testing.T) {
	cfg := testConfig(t, nil)

	tests := []struct {
		name    string
		outcome Outcome
		err     error
	}{
		{"daemon crashed", OutcomeTrouble, errors.New("exit status 1")},
		{"nothing done", OutcomeNothingDone, nil},
		{"primitive missing", OutcomeTrouble, errors.New("executable file not found")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			control := &recordingControl{respond: func(*Request) (Outcome, error) { return tt.outcome, tt.err }}
			err := newTestController(cfg, control).Start(context.Background())

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrProcessControl)

			var opErr *OpError
			require.ErrorAs(t, err, &opErr)
			assert.Equal(t, ActionStart, opErr.Op)
			assert.Equal(t, cfg.PIDFile(), opErr.Path)
		})
	}
}

func TestControllerStop(t *testing.T) {
	cfg := testConfig(t, nil)

	tests := []struct {
		outcome Outcome
		wantErr bool
	}{
		{OutcomeDone, false},
		{OutcomeNothingDone, false},
		{OutcomeStillRunning, true},
		{OutcomeTrouble, true},
	}

	for _, tt := range tests {
		t.Run(tt.outcome.String(), func(t *testing.T) {
			control := &recordingControl{respond: func(*Request) (Outcome, error) { return tt.outcome, nil }}
			err := newTestController(cfg, control).Stop(context.Background())

			if tt.wantErr {
				assert.ErrorIs(t, err, ErrProcessControl)
			} else {
				assert.NoError(t, err)
			}

			reqs := control.Requests()
			require.Len(t, reqs, 1)
			assert.Equal(t, &Request{
				Command: CommandStop,
				Oknodo:  true,
				Quiet:   true,
				Retry:   10,
				PIDFile: "/run/gunicorn/app.pid",
			}, reqs[0])
		})
	}
}

func TestControllerReload(t *testing.T) {
	cfg := testConfig(t, nil)
	control := &recordingControl{}

	require.NoError(t, newTestController(cfg, control).Reload(context.Background()))

	reqs := control.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, CommandStop, reqs[0].Command)
	assert.Equal(t, "HUP", reqs[0].Signal)
	assert.Equal(t, 10, reqs[0].Retry)
	assert.True(t, reqs[0].Oknodo)
	assert.False(t, reqs[0].Terminates())
}

func TestControllerDo(t *testing.T) {
	cfg := testConfig(t, nil)

	for action, want := range map[Action]Command{
		ActionStart:  CommandStart,
		ActionStop:   CommandStop,
		ActionReload: CommandStop,
	} {
		control := &recordingControl{}
		require.NoError(t, newTestController(cfg, control).Do(context.Background(), action))
		require.Len(t, control.Requests(), 1)
		assert.Equal(t, want, control.Requests()[0].Command)
	}
}

func TestControllerDoInvalidAction(t *testing.T) {
	cfg := testConfig(t, nil)

	for _, action := range []Action{"restart", "", "START", "status"} {
		control := &recordingControl{}
		err := newTestController(cfg, control).Do(context.Background(), action)

		assert.ErrorIs(t, err, ErrInvalidAction)
		assert.Empty(t, control.Requests(), "primitive invoked for %q", action)
	}
}

func TestMergeEnv(t *testing.T) {
	base := []string{"PATH=/usr/bin", "HOME=/root", "EMPTY=", "malformed", "=nokey", "DUP=first", "DUP=second"}
	overrides := map[string]string{"HOME": "/srv/app", "APP": "1"}

	baseCopy := append([]string(nil), base...)
	got := MergeEnv(base, overrides)

	assert.Equal(t, []string{"APP=1", "DUP=second", "EMPTY=", "HOME=/srv/app", "PATH=/usr/bin"}, got)
	assert.Equal(t, baseCopy, base)
	assert.Equal(t, map[string]string{"HOME": "/srv/app", "APP": "1"}, overrides)

	got[0] = "MUTATED=1"
	assert.Equal(t, []string{"APP=1", "DUP=second", "EMPTY=", "HOME=/srv/app", "PATH=/usr/bin"}, MergeEnv(base, overrides))
}

func TestMergeEnvEmpty(t *testing.T) {
	assert.Equal(t, []string{}, MergeEnv(nil, nil))
	assert.Equal(t, []string{"A=1"}, MergeEnv([]string{"A=1"}, map[string]string{}))
}
