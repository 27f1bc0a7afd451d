package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/arpa73/AIKnowSys-sub002/internal/checksum"
	"github.com/arpa73/AIKnowSys-sub002/internal/models"
	"github.com/arpa73/AIKnowSys-sub002/internal/storage"
)

const debounceDelay = 250 * time.Millisecond

// Watch runs an fsnotify watcher over the knowledge root and keeps the
// persisted index fresh: markdown change events are debounced into full
// rebuilds, so a burst of editor saves costs one rescan. onRebuild (if
// non-nil) is called with each rebuilt index, letting the caller refresh
// derived state such as the search sidecar.
//
// Write events whose content checksum matches the indexed record are
// ignored; editors that touch files without changing them do not trigger
// rebuilds. New directories created at runtime are added to the watch list.
func Watch(ctx context.Context, st *Store, store storage.Provider, root string, logger *slog.Logger, onRebuild func(*Index)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	current := st.Load()

	var timer *time.Timer
	var timerCh <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounceDelay)
			timerCh = timer.C
		} else {
			timer.Reset(debounceDelay)
		}
	}

	rebuild := func() {
		ix, err := Rebuild(store, logger)
		if err != nil {
			logger.Warn("watcher: rebuild failed", slog.String("error", err.Error()))
			return
		}
		if err := st.Save(ix); err != nil {
			logger.Warn("watcher: save failed", slog.String("error", err.Error()))
			return
		}
		current = ix
		logger.Debug("watcher: index rebuilt", slog.Int("records", ix.Len()))
		if onRebuild != nil {
			onRebuild(ix)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			rebuild()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					schedule()
					continue
				}
			}

			if !strings.HasSuffix(ev.Name, ".md") {
				continue
			}
			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			if ev.Op&fsnotify.Write != 0 && unchanged(current, store, rel) {
				logger.Debug("watcher: content unchanged", slog.String("path", rel))
				continue
			}
			logger.Debug("watcher: change detected",
				slog.String("path", rel),
				slog.String("op", ev.Op.String()))
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// unchanged reports whether the file at rel still matches the checksum the
// index recorded for it.
func unchanged(ix *Index, store storage.Provider, rel string) bool {
	var indexed string
	for _, t := range models.Types() {
		for _, rec := range ix.Records(t) {
			if rec.FilePath == rel {
				indexed = rec.Checksum
				break
			}
		}
	}
	if indexed == "" {
		return false
	}
	data, err := store.Read(rel)
	if err != nil {
		return false
	}
	return checksum.Sum(data) == indexed
}

// addDirsRecursive adds dir and every subdirectory to the watcher,
// skipping dot-directories.
func addDirsRecursive(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if name := d.Name(); strings.HasPrefix(name, ".") && p != dir {
			return fs.SkipDir
		}
		return w.Add(p)
	})
}
