package config

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const debounceDuration = 100 * time.Millisecond

// Watcher reloads configuration when a YAML file in the config directory
// changes and hands the new value to registered listeners. A reload that
// fails validation keeps the current configuration.
type Watcher struct {
	loader   *Loader
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
	mu       sync.RWMutex
	current  *Config
	onChange []func(*Config)
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWatcher starts watching loader's directory. initial is the
// configuration already in use.
func NewWatcher(loader *Loader, initial *Config, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory so editors that save via rename are seen.
	if err := fw.Add(loader.BasePath()); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		loader:  loader,
		watcher: fw,
		logger:  logger,
		current: initial,
		stopCh:  make(chan struct{}),
	}
	w.wg.Add(1)
	go w.watchLoop()

	logger.Info("Configuration watcher started", zap.String("path", loader.BasePath()))
	return w, nil
}

// OnChange registers a callback for configuration changes
func (w *Watcher) OnChange(handler func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, handler)
}

// Current returns the configuration in effect
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Stop stops watching and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
		w.wg.Wait()
		w.logger.Info("Configuration watcher stopped")
	})
}

func (w *Watcher) watchLoop() {
	defer w.wg.Done()

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isConfigFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDuration, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	select {
	case <-w.stopCh:
		return
	default:
	}

	next, err := w.loader.Load()
	if err != nil {
		w.logger.Error("Invalid configuration, keeping current", zap.Error(err))
		return
	}

	w.mu.Lock()
	prev := w.current
	w.current = next
	handlers := make([]func(*Config), len(w.onChange))
	copy(handlers, w.onChange)
	w.mu.Unlock()

	logChanges(w.logger, prev, next)
	for _, h := range handlers {
		h(next)
	}
	w.logger.Info("Configuration reloaded", zap.Strings("sources", next.LoadedFrom))
}

func isConfigFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func logChanges(logger *zap.Logger, prev, next *Config) {
	if prev == nil {
		return
	}
	var changes []string
	if prev.Search.PollInterval != next.Search.PollInterval {
		changes = append(changes, "search.poll_interval: "+prev.Search.PollInterval.String()+" -> "+next.Search.PollInterval.String())
	}
	if prev.Search.MaxAttempts != next.Search.MaxAttempts {
		changes = append(changes, "search.max_attempts")
	}
	if prev.Search.Timeout != next.Search.Timeout {
		changes = append(changes, "search.timeout: "+prev.Search.Timeout.String()+" -> "+next.Search.Timeout.String())
	}
	if prev.Snap != next.Snap {
		changes = append(changes, "snap")
	}
	if prev.Logging.Level != next.Logging.Level {
		changes = append(changes, "logging.level: "+prev.Logging.Level+" -> "+next.Logging.Level)
	}
	if len(changes) > 0 {
		logger.Info("Configuration changes detected", zap.Strings("changes", changes))
	}
}
