package fleet

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"
)

// Watch follows confDir and re-applies start to the fleet whenever a live
// service definition is created, written or renamed into place. Bursts of
// events are coalesced by s.Debounce and triggered runs never overlap.
//
// Each triggered run ends its line of progress markers. Failed runs are
// logged and watching continues. Watch returns nil once ctx is
// cancelled.
func (s *Supervisor) Watch(ctx context.Context, confDir, pidDir, logDir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return &OpError{Op: ActionStart, Path: confDir, Err: err}
	}

	if err := watcher.Add(confDir); err != nil {
		_ = watcher.Close()
		return &OpError{Op: ActionStart, Path: confDir, Err: err}
	}

	debounce := s.Debounce
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	sctx := stopper.WithContext(ctx)
	sctx.Defer(func() {
		_ = watcher.Close()
	})

	done := make(chan struct{})
	sctx.Go(func(sctx *stopper.Context) error {
		defer close(done)

		var (
			timer *time.Timer
			fire  <-chan time.Time
		)
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for !sctx.IsStopping() {
			select {
			case <-sctx.Stopping():
				return nil

			case <-ctx.Done():
				return nil

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if !relevant(event) {
					continue
				}
				s.Logger.Debugw("Configuration changed", "file", event.Name, "op", event.Op.String())

				if timer == nil {
					timer = time.NewTimer(debounce)
				} else {
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					timer.Reset(debounce)
				}
				fire = timer.C

			case <-fire:
				fire = nil
				err := s.Run(ctx, confDir, pidDir, logDir, ActionStart)
				s.endLine()
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					s.Logger.Errorw("Start after configuration change failed", "dir", confDir, "error", err)
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				if err != nil {
					s.Logger.Warnw("Watcher error", "dir", confDir, "error", err)
				}
			}
		}
		return nil
	})

	select {
	case <-ctx.Done():
	case <-done:
	}

	sctx.Stop(100 * time.Millisecond)
	if err := sctx.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// relevant reports whether event may change the set of live service definitions
func relevant(event fsnotify.Event) bool {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || IsIgnored(name) {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename)
}
