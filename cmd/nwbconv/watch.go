package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// debounce is how long the watcher waits after the last change before
// converting again.
var debounce = 500 * time.Millisecond

// watch runs fn once and then again after every change to one of files.
// The parent directories are watched so files replaced by editors are
// still seen. Failed runs are logged and watching continues.
func (a *app) watch(ctx context.Context, files []string, fn func(context.Context) error) error {
	if len(files) == 0 {
		return errors.New("--watch needs a job or metadata file")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	wanted := make(map[string]bool, len(files))
	dirs := map[string]bool{}
	for _, f := range files {
		wanted[filepath.Clean(f)] = true
		dirs[filepath.Dir(f)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	run := func() {
		if err := fn(ctx); err != nil {
			a.logger.Error("conversion failed", zap.Error(err))
		}
	}
	run()
	a.logger.Info("watching for changes", zap.Strings("files", files))

	timer := time.NewTimer(0)
	<-timer.C

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !wanted[filepath.Clean(event.Name)] {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			a.logger.Debug("file changed",
				zap.String("file", event.Name),
				zap.String("op", event.Op.String()))
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Error("watcher error", zap.Error(err))

		case <-timer.C:
			run()

		case <-ctx.Done():
			a.logger.Info("stopping watcher")
			return nil
		}
	}
}
