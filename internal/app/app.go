// Package app provides application-level orchestration and dependency injection.
// This package wires together all components and manages the application lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/tunecast/tunecast/internal/adapter/audio/mock"
	"github.com/tunecast/tunecast/internal/adapter/audio/tagmeta"
	"github.com/tunecast/tunecast/internal/adapter/billing/store"
	"github.com/tunecast/tunecast/internal/adapter/cast"
	"github.com/tunecast/tunecast/internal/adapter/eventbus"
	"github.com/tunecast/tunecast/internal/adapter/repository/memory"
	fyneui "github.com/tunecast/tunecast/internal/adapter/ui/fyne"
	"github.com/tunecast/tunecast/internal/domain"
	"github.com/tunecast/tunecast/internal/logger"
	"github.com/tunecast/tunecast/internal/ports"
	"github.com/tunecast/tunecast/internal/service"
)

// Application is the root application structure that holds all dependencies.
// It follows the Dependency Injection pattern with constructor-based injection.
//
// The Application struct is responsible for:
// - Creating and wiring all dependencies
// - Managing the application lifecycle (startup, shutdown)
// - Providing a clean entry point for main.go
type Application struct {
	// Core dependencies
	logger  *slog.Logger
	fyneApp fyne.App

	// Infrastructure
	eventBus    ports.EventBus
	audioEngine ports.AudioEngine

	// Adapters
	preferencesRepo ports.PreferencesRepository
	billingClient   ports.BillingClient
	metadataReader  ports.MetadataReader
	castServer      *cast.Server

	// Services
	playbackService   *service.PlaybackService
	billingService    *service.BillingService
	preferenceService *service.PreferenceService

	// UI
	presenter  *fyneui.Presenter
	mainWindow *fyneui.MainWindow
}

// Config holds application configuration.
type Config struct {
	// AppID is the unique application identifier
	AppID string

	// AppName is the display name
	AppName string

	// AudioDevice is the audio output device (-1 for default)
	AudioDevice int

	// SampleRate is the audio sample rate
	SampleRate int

	// StoreURL is the base URL of the purchase store API
	StoreURL string

	// LogLevel controls logging verbosity
	LogLevel slog.Level

	// LogDir is the base directory for the cast server log file
	LogDir string

	// TestFyneApp allows injecting a test Fyne app for testing (nil for production)
	TestFyneApp fyne.App
}

// DefaultConfig returns the default application configuration.
// A .env file in the working directory is loaded first when present;
// explicit environment variables win over it.
func DefaultConfig() Config {
	// Best-effort: absence of a .env file is the normal case
	_ = godotenv.Load()

	loggerCfg := logger.DefaultConfig()

	storeURL := os.Getenv("TUNECAST_STORE_URL")
	if storeURL == "" {
		storeURL = "https://store.tunecast.app"
	}

	logDir := os.Getenv("TUNECAST_LOG_DIR")
	if logDir == "" {
		logDir = "."
	}

	return Config{
		AppID:       "app.tunecast.player",
		AppName:     "TuneCast",
		AudioDevice: -1,
		SampleRate:  44100,
		StoreURL:    storeURL,
		LogLevel:    loggerCfg.Level,
		LogDir:      logDir,
	}
}

// NewApplication creates a new application with all dependencies wired.
// This is the main dependency injection function.
func NewApplication(config Config) (*Application, error) {
	app := &Application{}

	// Step 1: Create Fyne application
	if config.TestFyneApp != nil {
		app.fyneApp = config.TestFyneApp
	} else {
		app.fyneApp = fyneapp.NewWithID(config.AppID)
	}

	// Step 2: Create logger. The log directory is fixed here, at
	// construction, so every component sees the same destination.
	loggerCfg := logger.Config{
		Level:  config.LogLevel,
		Format: "text",
		Dir:    config.LogDir,
	}
	app.logger = logger.NewLogger(loggerCfg)
	app.logger.Info("initializing application",
		slog.String("app_id", config.AppID),
		slog.String("app_name", config.AppName))

	// Step 3: Create an event bus
	syncBus := eventbus.NewSyncEventBus()
	syncBus.SetLogger(app.logger.With(slog.String("component", "eventbus")))
	app.eventBus = syncBus

	// Step 4: Create an audio engine. Native backends plug in through
	// the AudioEngine port; the in-memory engine keeps the app running
	// where no native library is installed.
	engine := mock.NewEngine()
	if err := engine.Initialize(config.AudioDevice, config.SampleRate); err != nil {
		return nil, fmt.Errorf("failed to initialize audio engine: %w", err)
	}
	app.audioEngine = engine

	// Step 5: Create repositories and adapters
	prefs := app.fyneApp.Preferences()
	app.preferencesRepo = memory.NewPreferencesRepository(prefs)
	app.metadataReader = tagmeta.NewReader(app.logger.With(slog.String("component", "tagmeta")))

	storeCfg := store.DefaultConfig(config.StoreURL, deviceID(app.fyneApp))
	app.billingClient = store.NewClient(
		app.logger.With(slog.String("component", "store")),
		storeCfg,
	)

	app.castServer = cast.NewServer(
		app.logger.With(slog.String("component", "cast")),
		app.eventBus,
	)

	// Step 6: Create services (with dependency injection)
	app.playbackService = service.NewPlaybackService(
		app.logger.With(slog.String("service", "playback")),
		app.audioEngine,
		app.eventBus,
	)

	app.preferenceService = service.NewPreferenceService(
		app.logger.With(slog.String("service", "preference")),
		app.preferencesRepo,
	)

	// Step 7: Create UI
	app.mainWindow = fyneui.NewMainWindow(app.fyneApp, app.logger.With(slog.String("component", "ui")))

	// The main window doubles as the checkout host: checkout pages open
	// in the system browser
	app.billingService = service.NewBillingService(
		app.logger.With(slog.String("service", "billing")),
		app.billingClient,
		app.eventBus,
		app.mainWindow,
	)

	// Step 8: Create Presenter and wire with UI
	app.presenter = fyneui.NewPresenter(
		app.logger.With(slog.String("component", "presenter")),
		app.playbackService,
		app.billingService,
		app.preferenceService,
		app.metadataReader,
		app.eventBus,
		app.mainWindow,
	)

	// Connect presenter to the main window
	app.mainWindow.SetPresenter(app.presenter)

	// The cast server streams whatever local file is currently loaded
	app.eventBus.Subscribe(domain.EventTrackLoaded, func(event domain.Event) {
		e, ok := event.(domain.TrackLoadedEvent)
		if !ok {
			return
		}
		if domain.KindOfSource(e.Track.Source) != domain.SourceStream {
			app.castServer.SetTrack(e.Track)
		}
	})

	// Step 9: Restore saved state
	app.loadSavedState()

	return app, nil
}

// deviceID returns the stable per-install device identifier, creating
// one on first launch.
func deviceID(fyneApp fyne.App) string {
	prefs := fyneApp.Preferences()

	id := prefs.String("device.id")
	if id == "" {
		id = uuid.NewString()
		prefs.SetString("device.id", id)
	}
	return id
}

// loadSavedState restores the application state from the previous session.
func (a *Application) loadSavedState() {
	volume := a.preferenceService.GetVolume()
	if volume > 0 {
		if err := a.playbackService.SetVolume(volume); err != nil {
			a.logger.Warn("failed to set volume", slog.Any("error", err))
		}
	}

	a.playbackService.SetLoop(a.preferenceService.GetLoopMode())

	rate := a.preferenceService.GetPlaybackRate()
	if rate != 1.0 {
		if err := a.playbackService.SetRate(rate); err != nil {
			a.logger.Warn("failed to set playback rate", slog.Any("error", err))
		}
	}
}

// Run starts the application.
// This is called from main.go after the application is created.
func (a *Application) Run() {
	a.logger.Info("TuneCast started", slog.String("version", GetVersionInfo().FullString()))

	// Begin store connection setup; readiness arrives via events
	a.billingService.Connect()

	// Start the cast server on the configured port range
	start, end := a.preferenceService.GetCastPortRange()
	if _, err := a.castServer.Start(start, end); err != nil {
		if errors.Is(err, domain.ErrNoFreePort) {
			a.logger.Warn("cast server disabled, no free port",
				slog.Int("start", start), slog.Int("end", end))
		} else {
			a.logger.Warn("cast server failed to start", slog.Any("error", err))
		}
	}

	// Show and run UI (blocks until the window is closed)
	a.mainWindow.ShowAndRun()
}

// Shutdown gracefully shuts down the application.
// This should be called via deferring in main.go.
func (a *Application) Shutdown() {
	a.logger.Info("shutting down application")

	// Shutdown UI and presenter
	if a.presenter != nil {
		a.presenter.Shutdown()
	}

	// Stop the cast server
	if a.castServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := a.castServer.Stop(ctx); err != nil {
			a.logger.Warn("failed to stop cast server", slog.Any("error", err))
		}
		cancel()
	}

	// Shutdown services (in reverse order of creation)
	if a.billingService != nil {
		if err := a.billingService.Shutdown(); err != nil {
			a.logger.Warn("failed to shutdown billing service", slog.Any("error", err))
		}
	}

	if a.preferenceService != nil {
		if err := a.preferenceService.Shutdown(); err != nil {
			a.logger.Warn("failed to shutdown preference service", slog.Any("error", err))
		}
	}

	if a.playbackService != nil {
		if err := a.playbackService.Shutdown(); err != nil {
			a.logger.Warn("failed to shutdown playback service", slog.Any("error", err))
		}
	}

	// Shutdown audio engine
	if a.audioEngine != nil {
		if err := a.audioEngine.Shutdown(); err != nil {
			a.logger.Warn("failed to shutdown audio engine", slog.Any("error", err))
		}
	}

	if err := a.eventBus.Close(); err != nil {
		a.logger.Warn("failed to close event bus", slog.Any("error", err))
	}

	a.logger.Info("application shutdown complete")
}
