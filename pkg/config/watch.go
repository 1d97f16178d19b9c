package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits after the last change before reloading.
const DefaultDebounce = 200 * time.Millisecond

// Watch reloads the document at path whenever it is written and passes the
// result to onChange. Calls to onChange are serialized. Watching stops when
// ctx is cancelled.
func (l *Loader) Watch(ctx context.Context, path string, debounce time.Duration, onChange func(*Document, error)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	// Editors often replace files, so watch the directory and filter by name.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	go l.processEvents(ctx, watcher, abs, debounce, onChange)

	l.logger.Info().Str("path", abs).Msg("Watching problem document")
	return nil
}

// processEvents debounces file events and reloads the document.
func (l *Loader) processEvents(ctx context.Context, watcher *fsnotify.Watcher, path string, debounce time.Duration, onChange func(*Document, error)) {
	defer watcher.Close()

	reload := make(chan struct{}, 1)
	var timer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			l.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Problem document changed")

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			doc, err := l.Load(path)
			if err != nil {
				l.logger.Warn().Err(err).Str("path", path).Msg("Reloaded problem document is invalid")
			}
			onChange(doc, err)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			l.logger.Warn().Err(err).Msg("Watcher error")
		}
	}
}
