package conflict

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/redgreen/internal/errors"
	"github.com/Iron-Ham/redgreen/internal/logging"
)

// OwnerFunc resolves a written path to the story whose cycle owns it.
// The path is relative to the observed root and slash-separated. ok is
// false when no running cycle holds the path.
type OwnerFunc func(relPath string) (storyID string, ok bool)

// Observer watches the project tree for writes and feeds them to the
// detector as observed paths, attributed via the owner resolver.
type Observer struct {
	watcher  *fsnotify.Watcher
	root     string
	detector *Detector
	owner    OwnerFunc
	logger   *logging.Logger

	// Paths never attributed to a cycle (VCS metadata, run artifacts).
	ignorePaths []string

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewObserver creates an observer over root. The root must be an
// existing directory.
func NewObserver(root string, detector *Detector, owner OwnerFunc, logger *logging.Logger) (*Observer, error) {
	if detector == nil {
		return nil, errors.NewValidationError("observer requires a detector")
	}
	if owner == nil {
		return nil, errors.NewValidationError("observer requires an owner resolver")
	}
	if logger == nil {
		logger = logging.NopLogger()
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrapf(err, "observe %s", root)
	}
	if !info.IsDir() {
		return nil, errors.NewValidationError(fmt.Sprintf("watch root %s is not a directory", root)).
			WithField("watch_dir")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrapf(err, "create watcher")
	}

	return &Observer{
		watcher:     watcher,
		root:        root,
		detector:    detector,
		owner:       owner,
		logger:      logger,
		ignorePaths: []string{".git", ".redgreen", "node_modules", ".DS_Store"},
		stopCh:      make(chan struct{}),
	}, nil
}

// Start registers the tree with the watcher and begins processing
// events.
func (o *Observer) Start() error {
	if err := o.watchDirRecursive(o.root); err != nil {
		return errors.Wrapf(err, "watch %s", o.root)
	}
	go o.watchLoop()
	o.logger.Info("file observation started", "root", o.root)
	return nil
}

// Stop shuts the observer down. Safe to call more than once.
func (o *Observer) Stop() {
	o.stopOnce.Do(func() {
		close(o.stopCh)
		_ = o.watcher.Close()
	})
}

// watchDirRecursive adds every non-ignored directory under root to the
// watcher. fsnotify only watches directories, not subtrees.
func (o *Observer) watchDirRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip unreadable entries, continue walking
		}

		base := filepath.Base(path)
		for _, ignore := range o.ignorePaths {
			if base == ignore {
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		if info.IsDir() {
			_ = o.watcher.Add(path)
		}
		return nil
	})
}

// watchLoop processes filesystem events.
func (o *Observer) watchLoop() {
	// Debounce events - editors often emit several events per save
	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C // drain initial timer

	pendingEvents := make(map[string]fsnotify.Event)

	for {
		select {
		case <-o.stopCh:
			return

		case event, ok := <-o.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			pendingEvents[event.Name] = event
			debounceTimer.Reset(50 * time.Millisecond)

		case <-debounceTimer.C:
			events := pendingEvents
			pendingEvents = make(map[string]fsnotify.Event)

			for _, event := range events {
				o.handleFileEvent(event)
			}

		case err, ok := <-o.watcher.Errors:
			if !ok {
				return
			}
			o.logger.Warn("file watch error", "error", err.Error())
		}
	}
}

// handleFileEvent attributes a single write to its owning cycle.
func (o *Observer) handleFileEvent(event fsnotify.Event) {
	path := event.Name

	for _, ignore := range o.ignorePaths {
		if strings.Contains(path, string(filepath.Separator)+ignore+string(filepath.Separator)) ||
			strings.HasSuffix(path, string(filepath.Separator)+ignore) ||
			filepath.Base(path) == ignore {
			return
		}
	}

	// New directories need their own watch to catch writes inside them.
	// Walk rather than Add: the subtree may already hold directories
	// created before this event was processed.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			_ = o.watchDirRecursive(path)
			return
		}
	}

	rel, err := filepath.Rel(o.root, path)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	storyID, ok := o.owner(rel)
	if !ok {
		return // Write outside any running cycle
	}

	o.detector.RecordObserved(storyID, rel)
	o.logger.Debug("observed write", "story_id", storyID, "path", rel)
}
