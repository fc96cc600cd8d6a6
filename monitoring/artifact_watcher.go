package monitoring

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ArtifactWatcher reports changes to model artifacts after startup. The
// service never reloads a model in place; a changed artifact needs a
// restart, and the watcher makes that visible in logs and metrics.
type ArtifactWatcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]bool
	logger   *zap.Logger
	onChange func(name string)
}

// NewArtifactWatcher watches dir for writes, creations, removals and renames
// of the named files. onChange may be nil.
func NewArtifactWatcher(dir string, files []string, logger *zap.Logger, onChange func(name string)) (*ArtifactWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	set := make(map[string]bool, len(files))
	for _, f := range files {
		set[filepath.Base(f)] = true
	}
	return &ArtifactWatcher{watcher: w, files: set, logger: logger, onChange: onChange}, nil
}

// Run consumes events until ctx is done or the watcher is closed.
func (aw *ArtifactWatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return aw.watcher.Close()
		case event, ok := <-aw.watcher.Events:
			if !ok {
				return nil
			}
			aw.handle(event)
		case err, ok := <-aw.watcher.Errors:
			if !ok {
				return nil
			}
			aw.logger.Warn("artifact watcher error", zap.Error(err))
		}
	}
}

func (aw *ArtifactWatcher) handle(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if !aw.files[name] {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	aw.logger.Warn("artifact changed on disk, restart the service to serve it",
		zap.String("artifact", name),
		zap.String("op", event.Op.String()))
	if aw.onChange != nil {
		aw.onChange(name)
	}
}

// Close stops watching.
func (aw *ArtifactWatcher) Close() error {
	return aw.watcher.Close()
}
