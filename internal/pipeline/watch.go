package pipeline

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/beverage-tools/invparse/internal/invoice"
)

// Extensions accepted by the watch loop (lowercase, without '.').
var watchedExts = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// WatchOptions configures the inbox watcher.
type WatchOptions struct {
	InitialScan bool          // process files already in the directory
	Debounce    time.Duration // coalesce rapid create/write bursts
}

// Watch treats dir as an inbox: every invoice file that appears is run
// through the pipeline. Failures are logged and skipped; the loop runs
// until the context is canceled.
func (p *Pipeline) Watch(ctx context.Context, dir string, vendor invoice.Vendor, opts WatchOptions) error {
	events, err := startWatcher(ctx, dir, opts)
	if err != nil {
		return err
	}

	p.logger.Info("watching for invoices", "dir", dir, "vendor", vendor)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case path, ok := <-events:
			if !ok {
				return nil
			}
			if _, err := p.ProcessFile(ctx, path, vendor); err != nil {
				p.logger.Error("failed to process file, skipping",
					"file", path, "kind", invoice.ErrorKind(err), "error", err)
			}
		}
	}
}

// startWatcher emits paths of invoice files appearing under dir.
func startWatcher(ctx context.Context, dir string, opts WatchOptions) (<-chan string, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	events := make(chan string, 256)

	// Add subdirectories recursively, collecting existing files when an
	// initial scan is requested. They are emitted from the event goroutine
	// below; the consumer is not draining yet, so emitting here could fill
	// the channel and lose files.
	var initial []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return w.Add(path)
		}
		if opts.InitialScan && watchable(path) {
			initial = append(initial, path)
		}
		return nil
	})
	if err != nil {
		w.Close()
		return nil, err
	}

	go func() {
		defer close(events)
		defer w.Close()

		// Sends block so no invoice file is ever dropped; cancellation is
		// the only way out.
		send := func(path string) bool {
			select {
			case events <- path:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for _, path := range initial {
			if !send(path) {
				return
			}
		}

		// The debounce timer fires back into this select so pending is
		// only ever touched by this goroutine.
		var timer *time.Timer
		var timerC <-chan time.Time
		pending := map[string]struct{}{}

		sendPending := func() bool {
			for p := range pending {
				if !send(p) {
					return false
				}
				delete(pending, p)
			}
			return true
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-timerC:
				timerC = nil
				if !sendPending() {
					return
				}
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Op&fsnotify.Create != 0 {
					// A new directory needs watching too; Add on a
					// plain file fails harmlessly.
					_ = w.Add(e.Name)
				}
				if watchable(e.Name) && e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
					pending[e.Name] = struct{}{}
					if opts.Debounce > 0 {
						if timer == nil {
							timer = time.NewTimer(opts.Debounce)
						} else {
							if !timer.Stop() {
								select {
								case <-timer.C:
								default:
								}
							}
							timer.Reset(opts.Debounce)
						}
						timerC = timer.C
					} else if !sendPending() {
						return
					}
				}
			case <-w.Errors:
			}
		}
	}()

	return events, nil
}

func watchable(path string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	_, ok := watchedExts[ext]
	return ok
}
