package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ritzau/modpack/pkg/logging"
)

// ChangeType represents the type of file change detected
type ChangeType int

const (
	ChangeTypeManifest ChangeType = iota // The manifest itself changed: reload the tree
	ChangeTypePayload                    // A module payload changed: re-pack
)

func (c ChangeType) String() string {
	switch c {
	case ChangeTypeManifest:
		return "manifest"
	case ChangeTypePayload:
		return "payload"
	default:
		return fmt.Sprintf("ChangeType(%d)", int(c))
	}
}

// ChangeEvent represents a batch of file system changes
type ChangeEvent struct {
	Type      ChangeType
	Paths     []string
	Timestamp time.Time
}

// FileWatcher watches a manifest and the payload files it references.
// fsnotify watches directories, so events are filtered by file name.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	manifest string
	files    map[string]ChangeType
	events   chan ChangeEvent
}

// NewFileWatcher creates a watcher for manifest and payloads (absolute paths)
func NewFileWatcher(manifest string, payloads []string) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	fw := &FileWatcher{
		watcher:  watcher,
		manifest: filepath.Clean(manifest),
		files:    map[string]ChangeType{filepath.Clean(manifest): ChangeTypeManifest},
		events:   make(chan ChangeEvent, 100),
	}
	for _, p := range payloads {
		p = filepath.Clean(p)
		if _, ok := fw.files[p]; !ok {
			fw.files[p] = ChangeTypePayload
		}
	}
	return fw, nil
}

// Start adds the watched directories and processes events until ctx is done
func (fw *FileWatcher) Start(ctx context.Context) error {
	dirs := make(map[string]bool)
	for p := range fw.files {
		dirs[filepath.Dir(p)] = true
	}
	for dir := range dirs {
		if err := fw.watcher.Add(dir); err != nil {
			fw.watcher.Close()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	logging.Info("watching for changes", "manifest", fw.manifest, "files", len(fw.files), "dirs", len(dirs))

	go fw.processEvents(ctx)
	return nil
}

// Classify reports whether path is watched and how
func (fw *FileWatcher) Classify(path string) (ChangeType, bool) {
	t, ok := fw.files[filepath.Clean(path)]
	return t, ok
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	defer close(fw.events)
	defer fw.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			t, watched := fw.Classify(event.Name)
			if !watched {
				continue
			}
			logging.Trace("file changed", "path", event.Name, "op", event.Op.String())
			select {
			case fw.events <- ChangeEvent{Type: t, Paths: []string{event.Name}, Timestamp: time.Now()}:
			case <-ctx.Done():
				return
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

// Events returns the channel of raw change events; it is closed when the
// watcher stops
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}
