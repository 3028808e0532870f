// fleetctl starts, stops or reloads every gunicorn service configured in a
// directory, and scaffolds new service configuration files.
//
//	fleetctl [flags] CONF_DIR PID_DIR LOG_DIR start|stop|reload
//	fleetctl new [flags] CONF_DIR NAME
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/axondata/go-fleet"
	"github.com/axondata/go-fleet/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "\nerror: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 && args[0] == "new" {
		return runNew(args[1:], stdout, stderr)
	}
	return runAction(ctx, args, stdout, stderr)
}

func runAction(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		backend   string
		ssdPath   string
		watch     bool
		logLevel  string
		logFormat string
	)

	flagSet := pflag.NewFlagSet("fleetctl", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&backend, "backend", "exec", "process control backend: exec (start-stop-daemon) or native")
	flagSet.StringVar(&ssdPath, "start-stop-daemon", fleet.DefaultStartStopDaemonPath, "path to start-stop-daemon for the exec backend")
	flagSet.BoolVar(&watch, "watch", false, "after the action, follow CONF_DIR and start services as their files appear")
	flagSet.StringVar(&logLevel, "log-level", "warn", "log level (overridden by "+logger.EnvLevel+")")
	flagSet.StringVar(&logFormat, "log-format", "console", "log format: console or json (overridden by "+logger.EnvFormat+")")
	flagSet.Usage = func() {
		fmt.Fprintln(stderr, "usage: fleetctl [flags] CONF_DIR PID_DIR LOG_DIR start|stop|reload")
		fmt.Fprintln(stderr, "       fleetctl new [flags] CONF_DIR NAME")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 4 {
		flagSet.Usage()
		return fmt.Errorf("expected 4 arguments, got %d", flagSet.NArg())
	}
	confDir, pidDir, logDir := flagSet.Arg(0), flagSet.Arg(1), flagSet.Arg(2)
	action := fleet.Action(flagSet.Arg(3))

	control, err := newControl(backend, ssdPath)
	if err != nil {
		return err
	}

	log := logger.FromEnv(logLevel, logFormat)
	defer func() { _ = log.Sync() }()

	sup := fleet.NewSupervisor(
		fleet.WithControl(control),
		fleet.WithLogger(log.Sugar()),
		fleet.WithProgress(stdout),
	)

	if err := sup.Run(ctx, confDir, pidDir, logDir, action); err != nil {
		return err
	}
	fmt.Fprintln(stdout)

	if !watch {
		return nil
	}
	if action != fleet.ActionStart {
		return fmt.Errorf("--watch requires the start action, got %q", action)
	}

	log.Info("Watching configuration directory", zap.String("dir", confDir))
	return sup.Watch(ctx, confDir, pidDir, logDir)
}

func newControl(backend, ssdPath string) (fleet.ProcessControl, error) {
	switch strings.ToLower(backend) {
	case "exec":
		return fleet.NewExecControl(ssdPath), nil
	case "native":
		return fleet.NewNativeControl(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want exec or native)", backend)
	}
}

func runNew(args []string, stdout, stderr io.Writer) error {
	var (
		mode       string
		user       string
		group      string
		workingDir string
		python     string
		env        []string
		extra      []string
		overwrite  bool
	)

	flagSet := pflag.NewFlagSet("fleetctl new", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&mode, "mode", "", "gunicorn mode: wsgi, django or paster")
	flagSet.StringVar(&user, "user", "", "user the workers run as")
	flagSet.StringVar(&group, "group", "", "group the workers run as")
	flagSet.StringVar(&workingDir, "working-dir", "", "directory the daemon starts from")
	flagSet.StringVar(&python, "python", "", "python interpreter path")
	flagSet.StringArrayVar(&env, "env", nil, "environment override KEY=VALUE (repeatable)")
	flagSet.StringArrayVar(&extra, "arg", nil, "extra gunicorn argument (repeatable)")
	flagSet.BoolVar(&overwrite, "force", false, "replace an existing file")
	flagSet.Usage = func() {
		fmt.Fprintln(stderr, "usage: fleetctl new [flags] CONF_DIR NAME")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 2 {
		flagSet.Usage()
		return fmt.Errorf("expected 2 arguments, got %d", flagSet.NArg())
	}

	builder := fleet.NewConfigBuilder(flagSet.Arg(1), flagSet.Arg(0)).
		WithMode(fleet.Mode(mode)).
		WithUser(user).
		WithGroup(group).
		WithWorkingDir(workingDir).
		WithPython(python).
		WithArgs(extra...).
		WithOverwrite(overwrite)

	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return fmt.Errorf("invalid --env %q, want KEY=VALUE", kv)
		}
		builder.WithEnv(k, v)
	}

	path, err := builder.Build()
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, path)
	return nil
}
