package ingestion

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dmaclachlan/appgraph/internal/records"
)

// debounceInterval batches bursts of file events into one rebuild.
const debounceInterval = 2 * time.Second

// Watch monitors the session's definition root and rebuilds the graph
// whenever record files change. Rapid change bursts collapse into one
// rebuild; each completed rebuild or failure is reported through
// onRebuild. Blocks until the context is cancelled.
func Watch(ctx context.Context, session *Session, store GraphSaver, onRebuild func(*BuildResult, error)) error {
	matcher, err := records.IgnoreMatcher(session.root, session.settings)
	if err != nil {
		return fmt.Errorf("loading ignore patterns: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// fsnotify is not recursive, so every directory under the root
	// gets its own watch.
	err = filepath.WalkDir(session.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(session.root, path)
		if err != nil {
			return err
		}
		if rel != "." && matcher.Match(splitPath(rel), true) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
	if err != nil {
		return fmt.Errorf("setting up watcher: %w", err)
	}

	debounce := time.NewTimer(debounceInterval)
	debounce.Stop()
	pending := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			rel, err := filepath.Rel(session.root, event.Name)
			if err != nil {
				continue
			}
			if matcher.Match(splitPath(rel), false) {
				continue
			}

			// New directories need their own watch before events
			// inside them can be seen.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
					continue
				}
			}

			if !records.MatchesSpec(session.settings, rel) {
				continue
			}
			pending++
			debounce.Reset(debounceInterval)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "error", err)

		case <-debounce.C:
			if pending == 0 {
				continue
			}
			slog.Info("rebuilding after changes", "events", pending)
			pending = 0

			result, err := session.Rebuild(ctx, store, nil)
			if onRebuild != nil {
				onRebuild(result, err)
			}
		}
	}
}

func splitPath(path string) []string {
	return strings.Split(path, string(filepath.Separator))
}
