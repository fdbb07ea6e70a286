// Package app wires configuration, storage, sessions and the optional camera
// pipeline into a running fingerspell instance.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ayusman/fingerspell/internal/capture"
	"github.com/ayusman/fingerspell/internal/config"
	"github.com/ayusman/fingerspell/internal/detector"
	"github.com/ayusman/fingerspell/internal/plugin"
	"github.com/ayusman/fingerspell/internal/session"
	"github.com/ayusman/fingerspell/internal/spell"
	"github.com/ayusman/fingerspell/internal/store"
)

// sceneMaxReuse bounds how many still frames reuse one detection.
const sceneMaxReuse = 15

// App is the main application that owns persistence, sessions and the
// recognition loops.
type App struct {
	config    *config.Config
	store     store.Persistence
	checker   spell.Checker
	registry  *session.Registry
	scheduler *Scheduler
	camera    *CameraSource
	plugins   *plugin.Dispatcher

	closers []func() error

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds an App from cfg. The camera pipeline is only created when
// camera.enabled is set.
func New(cfg *config.Config) (*App, error) {
	a := &App{config: cfg}

	persist, err := OpenStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	a.store = persist
	if c, ok := persist.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}

	if cfg.Spell.Enabled {
		checker, closer, err := openChecker(cfg.Spell)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.checker = checker
		if closer != nil {
			a.closers = append(a.closers, closer)
		}
	}

	opts := cfg.SessionOptions()
	opts.Store = a.store
	opts.Checker = a.checker
	a.registry = session.NewRegistry(opts)
	a.scheduler = NewScheduler(a.registry, cfg.SampleInterval())

	if len(cfg.Plugins.Enabled) > 0 {
		d, err := openPlugins(cfg.Plugins)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.plugins = d
		a.scheduler.OnEmit(func(s *session.Session, symbol string) {
			d.Notify(s.ID(), symbol, s.State().Text)
		})
	}

	if cfg.Camera.Enabled {
		cam := capture.NewCamera(capture.Options{
			Device: cfg.Camera.Device,
			FPS:    cfg.Camera.FPS,
			Mirror: cfg.Camera.Mirror,
		})
		a.camera = NewCameraSource(cam, newDetector(cfg.Camera), capture.NewSceneGate(capture.DefaultSceneThreshold, sceneMaxReuse))
	}

	return a, nil
}

// OpenStore opens the configured persistence backend.
func OpenStore(cfg config.StoreConfig) (store.Persistence, error) {
	switch cfg.Backend {
	case config.BackendFile:
		slog.Info("using file dataset store", "dir", cfg.Dir)
		return store.NewFileStore(cfg.Dir), nil
	case config.BackendSQLite, "":
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		s, err := store.NewSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		slog.Info("using sqlite dataset store", "path", cfg.Path)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// openChecker builds the spell checker: a local dictionary when one is
// configured, otherwise the HTTP service, optionally behind a badger cache.
func openChecker(cfg config.SpellConfig) (spell.Checker, func() error, error) {
	var checker spell.Checker
	if cfg.Dictionary != "" {
		dict, err := spell.LoadDictionary(cfg.Dictionary)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("using local dictionary", "path", cfg.Dictionary, "words", dict.Len())
		checker = dict
	} else {
		checker = spell.NewClient(cfg.BaseURL, time.Duration(cfg.TimeoutMs)*time.Millisecond)
	}

	if cfg.CacheDir == "" {
		return checker, nil, nil
	}
	cache, err := spell.OpenBadgerCache(spell.BadgerCacheOptions{Dir: cfg.CacheDir})
	if err != nil {
		return nil, nil, err
	}
	return spell.NewCachedChecker(checker, cache), cache.Close, nil
}

// openPlugins discovers the plugin directory and builds a dispatcher for the
// enabled plugins. Enabled plugins that are not installed are logged and
// skipped at delivery time.
func openPlugins(cfg config.PluginsConfig) (*plugin.Dispatcher, error) {
	mgr := plugin.NewManager(cfg.Dir)
	if err := mgr.Discover(); err != nil {
		return nil, fmt.Errorf("failed to discover plugins: %w", err)
	}
	configs := make(map[string]json.RawMessage, len(cfg.Settings))
	for name, settings := range cfg.Settings {
		data, err := json.Marshal(settings)
		if err != nil {
			return nil, fmt.Errorf("invalid settings for plugin %s: %w", name, err)
		}
		configs[name] = data
	}

	for _, name := range cfg.Enabled {
		p, err := mgr.Get(name)
		if err != nil {
			slog.Warn("enabled plugin not found", "plugin", name, "dir", cfg.Dir)
			continue
		}
		if err := p.ValidateConfig(configs[name]); err != nil {
			return nil, err
		}
	}

	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	slog.Info("output plugins enabled", "plugins", cfg.Enabled)
	return plugin.NewDispatcher(mgr, plugin.NewExecutor(timeout), cfg.Enabled, configs, plugin.DefaultQueueSize), nil
}

// newDetector prefers MediaPipe and falls back to the mock detector.
func newDetector(cam config.CameraConfig) detector.Detector {
	dc := detector.DefaultConfig()
	dc.Script = cam.LandmarkerScript
	dc.Python = cam.LandmarkerPython
	mp, err := detector.NewMediaPipeDetector(dc)
	if err == nil {
		slog.Info("using MediaPipe hand detection")
		return mp
	}
	slog.Warn("MediaPipe not available, using mock detector", "error", err)
	return detector.NewMockDetector()
}

// Config returns the application configuration.
func (a *App) Config() *config.Config {
	return a.config
}

// Store returns the dataset persistence.
func (a *App) Store() store.Persistence {
	return a.store
}

// Registry returns the live sessions.
func (a *App) Registry() *session.Registry {
	return a.registry
}

// Scheduler returns the tick scheduler.
func (a *App) Scheduler() *Scheduler {
	return a.scheduler
}

// Camera returns the camera source, or nil when the camera is disabled.
func (a *App) Camera() *CameraSource {
	return a.camera
}

// Plugins returns the output plugin dispatcher, or nil when none are enabled.
func (a *App) Plugins() *plugin.Dispatcher {
	return a.plugins
}

// SetEnabled enables or disables recognition.
func (a *App) SetEnabled(enabled bool) {
	a.scheduler.SetEnabled(enabled)
}

// IsEnabled returns whether recognition is running.
func (a *App) IsEnabled() bool {
	return a.scheduler.IsEnabled()
}

// Start launches the scheduler and, when configured, the camera pipeline
// feeding a dedicated session. Start is a no-op if already running.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)

	if a.camera != nil && a.camera.Target() == nil {
		s, err := a.registry.Create(ctx, "", "")
		if err != nil {
			cancel()
			return fmt.Errorf("failed to create camera session: %w", err)
		}
		a.camera.SetTarget(s)
	}

	a.cancel = cancel
	a.done = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.scheduler.Run(ctx)
	}()

	if a.plugins != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.plugins.Run(ctx)
		}()
	}

	if a.camera != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.camera.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("camera pipeline stopped", "error", err)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(a.done)
	}()

	slog.Info("recognition pipeline started")
	return nil
}

// Stop halts the loops and waits for them to exit.
func (a *App) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	slog.Info("recognition pipeline stopped")
}

// Close stops the pipeline, closes every session and releases storage.
func (a *App) Close() error {
	a.Stop()
	if a.registry != nil {
		a.registry.Close()
	}
	if a.camera != nil {
		if err := a.camera.detector.Close(); err != nil {
			slog.Warn("error closing detector", "error", err)
		}
		if a.camera.gate != nil {
			a.camera.gate.Close()
		}
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
