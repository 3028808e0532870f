// Package fleet starts, stops and reloads a fleet of gunicorn services that are
// each described by one file in a configuration directory.
//
// Every run is stateless: the configuration directory is read afresh, each
// file is normalized into a ServiceConfig, and the requested action is handed
// to a ProcessControl primitive. Process identity lives only in PID files:
//
//	sup := fleet.NewSupervisor(
//	    fleet.WithLogger(logger.Sugar()),
//	)
//
//	err := sup.Run(ctx, "/etc/gunicorn.d", "/var/run/gunicorn", "/var/log/gunicorn", fleet.ActionStart)
//
// # Configuration files
//
// Files are declarative YAML by default (TOML for *.toml, JSON with comments
// for *.json) with the keys mode, user, group, environment, working_dir,
// python and args. All keys are optional:
//
//	mode: django
//	working_dir: /srv/shop
//	environment:
//	  DJANGO_SETTINGS_MODULE: shop.settings
//	args: ["--workers", "4", "--bind", "127.0.0.1:8001"]
//
// Names starting with an underscore and files ending in .dpkg-old, .dpkg-dist,
// .dpkg-new, .dpkg-tmp or .example are never treated as services.
//
// # Process control
//
// ExecControl shells out to start-stop-daemon and is the default.
// NativeControl implements the same contract in Go on Linux and macOS. Both
// tolerate "already running" on start and "not running" on stop and reload.
//
// # Stale PID files
//
// After a stop, every *.pid file left in the PID directory is checked. A
// configuration that was removed or renamed after its service started leaves
// a process and PID file nothing else would ever stop; Reconcile terminates
// the process and removes the file.
package fleet
