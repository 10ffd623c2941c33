package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debouncer coalesces rapid event bursts into a single callback per key.
type debouncer struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	delay  time.Duration
	onFire func(key string)
}

func newDebouncer(delay time.Duration, onFire func(key string)) *debouncer {
	return &debouncer{
		timers: make(map[string]*time.Timer),
		delay:  delay,
		onFire: onFire,
	}
}

func (d *debouncer) trigger(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[key]; ok {
		t.Reset(d.delay)
		return
	}
	d.timers[key] = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		delete(d.timers, key)
		d.mu.Unlock()
		d.onFire(key)
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, t := range d.timers {
		t.Stop()
		delete(d.timers, key)
	}
}

const catalogDebounce = 500 * time.Millisecond

// watchCatalog calls reload whenever a catalog file in dir is written,
// created, renamed or removed, until ctx is cancelled.
func watchCatalog(ctx context.Context, dir string, poll time.Duration, reload func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	Logger().Info("watching catalog", "dir", dir)

	db := newDebouncer(catalogDebounce, func(string) { reload() })
	defer db.stop()

	// Polling fallback for network filesystems where events don't fire.
	go pollCatalog(ctx, dir, poll, func() { db.trigger(dir) })

	eventLoop(ctx, w, db, dir)
	return nil
}

func eventLoop(ctx context.Context, w *fsnotify.Watcher, db *debouncer, dir string) {
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !isCatalogFile(ev.Name) {
				continue
			}
			// Atomic replacement by editors: re-add the directory so the
			// new inode keeps being tracked.
			if ev.Has(fsnotify.Rename) {
				w.Add(dir)
			}
			db.trigger(dir)

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			Logger().Warn("watcher error", "error", err)
		}
	}
}

// pollCatalog compares catalog file modification times at a fixed
// interval and calls onChanged when any of them differs.
func pollCatalog(ctx context.Context, dir string, interval time.Duration, onChanged func()) {
	mtimes := catalogMTimes(dir)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		current := catalogMTimes(dir)
		changed := len(current) != len(mtimes)
		for path, mt := range current {
			if prev, ok := mtimes[path]; !ok || !mt.Equal(prev) {
				changed = true
			}
		}
		mtimes = current
		if changed {
			onChanged()
		}
	}
}

func catalogMTimes(dir string) map[string]time.Time {
	out := make(map[string]time.Time)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return out
	}
	for _, e := range entries {
		if e.IsDir() || !isCatalogFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out[filepath.Join(dir, e.Name())] = info.ModTime()
	}
	return out
}
