package cli

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/flowdeck/core/config"
	"github.com/flowdeck/core/logging"
)

// ConfigWatcher watches a configuration file for changes and invokes a reload
// callback with the freshly parsed config. Long-running monitors use it to
// pick up tuning changes (poll intervals, timeouts) without a restart.
type ConfigWatcher struct {
	watcher    *fsnotify.Watcher
	path       string
	debounce   time.Duration
	lastChange time.Time
	mu         sync.Mutex
	logger     *logrus.Entry
	onReload   func(*config.Config)
}

// NewConfigWatcher creates a ConfigWatcher for the config file at path. The onReload
// callback receives each successfully re-parsed config; parse failures are
// logged and skipped so a half-written file never propagates.
func NewConfigWatcher(path string, debounce time.Duration, onReload func(*config.Config)) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory, not the file: editors replace files on save and
	// fsnotify drops watches on the old inode.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	return &ConfigWatcher{
		watcher:  watcher,
		path:     path,
		debounce: debounce,
		logger:   logging.NewLogger("config-watcher"),
		onReload: onReload,
	}, nil
}

// Start begins watching for config changes. It blocks until the context is
// cancelled.
func (w *ConfigWatcher) Start(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !w.matches(event.Name) {
				continue
			}
			w.handleChange()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("Watcher error: %v", err)
		case <-ctx.Done():
			w.watcher.Close()
			return
		}
	}
}

func (w *ConfigWatcher) matches(name string) bool {
	if filepath.Base(name) == filepath.Base(w.path) {
		return true
	}
	// Some editors write through a temp file then rename; accept yml/toml
	// siblings with the same stem.
	stem := strings.TrimSuffix(filepath.Base(w.path), filepath.Ext(w.path))
	return strings.HasPrefix(filepath.Base(name), stem)
}

// handleChange reloads the config with debouncing.
func (w *ConfigWatcher) handleChange() {
	w.mu.Lock()
	defer w.mu.Unlock()

	elapsed := time.Since(w.lastChange)
	if elapsed < w.debounce {
		w.logger.Debugf("Debounced config change (%v since last)", elapsed)
		return
	}
	w.lastChange = time.Now()

	cfg, err := config.Load(w.path)
	if err != nil {
		w.logger.WithError(err).Warn("Ignoring config change that failed to parse")
		return
	}

	w.logger.Infof("Config reloaded: %s", filepath.Base(w.path))
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

// Close stops the watcher and releases resources.
func (w *ConfigWatcher) Close() error {
	return w.watcher.Close()
}
