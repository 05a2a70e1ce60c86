// Package fyne provides Fyne UI adapter implementations.
// This package implements the UI layer using the Fyne toolkit.
package fyne

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tunecast/tunecast/internal/domain"
	"github.com/tunecast/tunecast/internal/ports"
	"github.com/tunecast/tunecast/internal/service"
)

// UIView defines the interface for UI updates.
// The actual UI implementation (MainWindow) must implement this interface.
type UIView interface {
	// Playback state updates
	SetPlayState(playing bool)
	SetMuteState(muted bool)
	SetLoopState(enabled bool)
	SetVolume(volume float64)

	// Track information updates
	SetTrackInfo(title, artist, album string)
	SetAlbumArt(imageData []byte)
	ClearAlbumArt()

	// Progress updates
	SetCurrentTime(seconds float64)
	SetTotalTime(seconds float64)
	SetProgress(position, duration float64)

	// Purchase flow updates
	EnablePurchaseActions()
	ShowPurchaseThanks()
	ShowRestoreResult(owned bool)

	// Notifications
	ShowNotification(title, message string)
}

// Presenter implements the Presenter pattern (MVP architecture).
// It coordinates between services and the UI, handling all event-driven updates.
//
// Responsibilities:
// - Subscribe to events from the event bus
// - Map domain events to UI updates
// - Translate UI commands to service method calls
// - Maintain presentation state
//
// Thread-safety: All operations are thread-safe via sync.RWMutex.
type Presenter struct {
	// Dependencies
	logger *slog.Logger

	// Services (injected)
	playbackService   *service.PlaybackService
	billingService    *service.BillingService
	preferenceService *service.PreferenceService
	metadataReader    ports.MetadataReader

	// Event bus for subscriptions
	EventBus ports.EventBus

	// UI view
	view UIView

	// Presentation state
	currentTrack     *domain.MusicTrack
	isPlaying        bool
	progressTicker   *time.Ticker
	stopProgressChan chan bool

	// Concurrency control
	mu           sync.RWMutex
	enableOnce   sync.Once // Purchase buttons flip to enabled at most once
	shutdownOnce sync.Once
	actionWg     sync.WaitGroup // Tracks in-flight purchase/restore goroutines
}

// NewPresenter creates a new presenter.
func NewPresenter(
	logger *slog.Logger,
	playbackService *service.PlaybackService,
	billingService *service.BillingService,
	preferenceService *service.PreferenceService,
	metadataReader ports.MetadataReader,
	eventBus ports.EventBus,
	view UIView,
) *Presenter {
	p := &Presenter{
		logger:            logger,
		playbackService:   playbackService,
		billingService:    billingService,
		preferenceService: preferenceService,
		metadataReader:    metadataReader,
		EventBus:          eventBus,
		view:              view,
		stopProgressChan:  make(chan bool, 1),
	}

	// Subscribe to events
	p.subscribeToEvents()

	// Sync UI with current state
	p.syncInitialState()

	// Start progress ticker
	p.startProgressUpdates()

	return p
}

// subscribeToEvents subscribes to all relevant events from the event bus.
func (p *Presenter) subscribeToEvents() {
	subscriptions := map[domain.EventType]domain.EventHandler{
		// Playback events
		domain.EventTrackLoaded:    p.onTrackLoaded,
		domain.EventTrackStarted:   p.onTrackStarted,
		domain.EventTrackPaused:    p.onTrackPaused,
		domain.EventTrackStopped:   p.onTrackStopped,
		domain.EventTrackCompleted: p.onTrackCompleted,
		domain.EventTrackError:     p.onTrackError,

		// Volume events
		domain.EventVolumeChanged: p.onVolumeChanged,
		domain.EventMuteToggled:   p.onMuteToggled,
		domain.EventLoopToggled:   p.onLoopToggled,

		// Billing events
		domain.EventBillingReady:      p.onBillingReady,
		domain.EventPurchaseCompleted: p.onPurchaseCompleted,
	}

	for eventType, handler := range subscriptions {
		p.EventBus.Subscribe(eventType, handler)
	}
}

// syncInitialState synchronizes the UI with the current application state.
// This is called during presenter initialization to ensure the UI reflects
// the current state of services (volume, loop mode, loaded track, etc.).
func (p *Presenter) syncInitialState() {
	state := p.playbackService.GetState()

	// Update UI with current values
	p.view.SetVolume(state.Volume * 100.0) // Convert from 0.0-1.0 to 0-100
	p.view.SetLoopState(state.IsLooping)
	p.view.SetMuteState(state.IsMuted)

	// If a track is already loaded, update track info
	if state.CurrentTrack != nil {
		p.view.SetTrackInfo(
			state.CurrentTrack.Title,
			state.CurrentTrack.Artist,
			state.CurrentTrack.Album,
		)

		if state.Duration > 0 {
			p.view.SetTotalTime(state.Duration.Seconds())
		}

		// Update album art if available
		if state.CurrentTrack.Metadata != nil &&
			len(state.CurrentTrack.Metadata.AlbumArt) > 0 {
			p.view.SetAlbumArt(state.CurrentTrack.Metadata.AlbumArt)
		} else {
			p.view.ClearAlbumArt()
		}
	}

	// Update play state
	p.view.SetPlayState(state.Status == domain.StatusPlaying)

	// Update progress if track is loaded
	if state.Duration > 0 {
		p.view.SetProgress(state.Position.Seconds(), state.Duration.Seconds())
		p.view.SetCurrentTime(state.Position.Seconds())
	}

	// Billing may already be ready when the window opens
	if p.billingService.ConnectionState() == domain.ConnectionReady {
		p.enableOnce.Do(p.view.EnablePurchaseActions)
	}
}

// Event handlers

func (p *Presenter) onTrackLoaded(event domain.Event) {
	e, ok := event.(domain.TrackLoadedEvent)
	if !ok {
		return
	}

	p.mu.Lock()
	p.currentTrack = &e.Track
	p.mu.Unlock()

	// Update UI
	p.view.SetTrackInfo(e.Track.Title, e.Track.Artist, e.Track.Album)

	// Set total time (convert time.Duration to seconds)
	if e.Duration > 0 {
		p.view.SetTotalTime(e.Duration.Seconds())
	}

	// Set album art (check the Metadata field)
	if e.Track.Metadata != nil && len(e.Track.Metadata.AlbumArt) > 0 {
		p.view.SetAlbumArt(e.Track.Metadata.AlbumArt)
	} else {
		p.view.ClearAlbumArt()
	}
}

func (p *Presenter) onTrackStarted(_ domain.Event) {
	p.mu.Lock()
	p.isPlaying = true
	p.mu.Unlock()

	p.view.SetPlayState(true)
}

func (p *Presenter) onTrackPaused(_ domain.Event) {
	p.mu.Lock()
	p.isPlaying = false
	p.mu.Unlock()

	p.view.SetPlayState(false)
}

func (p *Presenter) onTrackStopped(_ domain.Event) {
	p.mu.Lock()
	p.isPlaying = false
	p.mu.Unlock()

	p.view.SetPlayState(false)
	p.view.SetCurrentTime(0)
	p.view.SetProgress(0, 1)
}

func (p *Presenter) onTrackCompleted(_ domain.Event) {
	p.mu.Lock()
	p.isPlaying = false
	p.mu.Unlock()

	// Update UI to show play state (not pause)
	p.view.SetPlayState(false)
}

func (p *Presenter) onTrackError(event domain.Event) {
	e, ok := event.(domain.TrackErrorEvent)
	if !ok {
		return
	}

	p.view.ShowNotification("Playback Error",
		fmt.Sprintf("Failed to open %s: %v", e.Track.Title, e.Error))
}

func (p *Presenter) onVolumeChanged(event domain.Event) {
	e, ok := event.(domain.VolumeChangedEvent)
	if !ok {
		return
	}

	p.view.SetVolume(e.Volume * 100.0)
}

func (p *Presenter) onMuteToggled(event domain.Event) {
	e, ok := event.(domain.MuteToggledEvent)
	if !ok {
		return
	}

	p.view.SetMuteState(e.Muted)
}

func (p *Presenter) onLoopToggled(event domain.Event) {
	e, ok := event.(domain.LoopToggledEvent)
	if !ok {
		return
	}

	p.view.SetLoopState(e.Enabled)
}

func (p *Presenter) onBillingReady(_ domain.Event) {
	// The store can report ready again after a reconnect; the buttons
	// flip to enabled at most once.
	p.enableOnce.Do(p.view.EnablePurchaseActions)
}

func (p *Presenter) onPurchaseCompleted(_ domain.Event) {
	p.view.ShowPurchaseThanks()
}

func (p *Presenter) startProgressUpdates() {
	p.progressTicker = time.NewTicker(250 * time.Millisecond)

	go func() {
		for {
			select {
			case <-p.progressTicker.C:
				p.updateProgress()
			case <-p.stopProgressChan:
				return
			}
		}
	}()
}

func (p *Presenter) updateProgress() {
	p.mu.RLock()
	currentTrack := p.currentTrack
	p.mu.RUnlock()

	// Only update if a track is loaded
	if currentTrack == nil {
		return
	}

	state := p.playbackService.GetState()
	if state.Duration <= 0 {
		return
	}

	p.view.SetCurrentTime(state.Position.Seconds())
	p.view.SetProgress(state.Position.Seconds(), state.Duration.Seconds())
}

// UI Command handlers (called by UI)

// OnPlayClicked handles the play button click.
func (p *Presenter) OnPlayClicked() {
	state := p.playbackService.GetState()

	var err error
	if state.Status == domain.StatusPlaying {
		err = p.playbackService.Pause()
	} else {
		err = p.playbackService.Play()
	}

	if err != nil {
		p.logger.Error("play/pause failed", slog.Any("error", err))
		p.view.ShowNotification("Playback Error",
			fmt.Sprintf("Failed to start playback: %v", err))
	}
}

// OnStopClicked handles the stop button click.
func (p *Presenter) OnStopClicked() {
	if err := p.playbackService.Stop(); err != nil {
		p.logger.Error("stop failed", slog.Any("error", err))
		p.view.ShowNotification("Playback Error",
			fmt.Sprintf("Failed to stop playback: %v", err))
	}
}

// OnVolumeChanged handles volume slider changes.
func (p *Presenter) OnVolumeChanged(volume float64) {
	// Normalize from 0-100 to 0.0-1.0
	normalized := volume / 100.0
	if err := p.playbackService.SetVolume(normalized); err != nil {
		p.logger.Error("volume change failed", slog.Any("error", err))
		return
	}
	if err := p.preferenceService.SetVolume(normalized); err != nil {
		p.logger.Warn("failed to save volume preference", slog.Any("error", err))
	}
}

// OnMuteClicked handles the mute button click.
func (p *Presenter) OnMuteClicked() {
	state := p.playbackService.GetState()
	if err := p.playbackService.Mute(!state.IsMuted); err != nil {
		p.logger.Error("mute failed", slog.Any("error", err))
	}
}

// OnLoopClicked handles the loop button click.
func (p *Presenter) OnLoopClicked() {
	state := p.playbackService.GetState()
	newLoopState := !state.IsLooping
	p.playbackService.SetLoop(newLoopState)
	if err := p.preferenceService.SetLoopMode(newLoopState); err != nil {
		p.logger.Warn("failed to save loop preference", slog.Any("error", err))
	}
}

// OnSeekRequested handles seek requests from the progress slider.
func (p *Presenter) OnSeekRequested(position float64) {
	positionDuration := time.Duration(position * float64(time.Second))
	if err := p.playbackService.Seek(positionDuration); err != nil {
		p.logger.Error("seek failed", slog.Any("error", err))
	}
}

// OnFileOpened handles file open requests.
// Metadata is read first, then the source is prepared asynchronously and
// playback starts from the completion callback.
func (p *Presenter) OnFileOpened(filePath string) error {
	track, err := p.metadataReader.ReadMetadata(filePath)
	if err != nil {
		return err
	}

	rate := p.preferenceService.GetPlaybackRate()
	p.playbackService.SetDataSource(*track, rate, func(domain.TrackHandle, time.Duration) {
		if err := p.playbackService.Play(); err != nil {
			p.logger.Error("failed to start playback", slog.Any("error", err))
		}
	})

	return nil
}

// OnStreamOpened handles stream URL open requests.
func (p *Presenter) OnStreamOpened(url string) {
	track := domain.MusicTrack{
		Source: url,
		Title:  url,
	}

	rate := p.preferenceService.GetPlaybackRate()
	p.playbackService.SetDataSource(track, rate, func(domain.TrackHandle, time.Duration) {
		if err := p.playbackService.Play(); err != nil {
			p.logger.Error("failed to start stream playback", slog.Any("error", err))
		}
	})
}

// OnBuyProClicked handles the upgrade button click.
// The checkout flow runs off the UI goroutine; the result arrives later
// as a purchase-completed event.
func (p *Presenter) OnBuyProClicked() {
	p.actionWg.Add(1)
	go func() {
		defer p.actionWg.Done()

		if err := p.billingService.Purchase(context.Background()); err != nil {
			p.logger.Error("purchase failed", slog.Any("error", err))
			p.view.ShowNotification("Purchase Error", "Could not start the purchase. Please try again later.")
		}
	}()
}

// OnRestoreClicked handles the restore-purchases button click.
// The store query runs off the UI goroutine and reports its result
// directly when it completes.
func (p *Presenter) OnRestoreClicked() {
	p.view.ShowNotification("Restore", "Restoring purchases…")

	p.actionWg.Add(1)
	go func() {
		defer p.actionWg.Done()

		owned, err := p.billingService.Restore(context.Background())
		if err != nil {
			p.logger.Error("restore failed", slog.Any("error", err))
			p.view.ShowNotification("Restore Error", "Could not reach the store. Please try again later.")
			return
		}

		p.view.ShowRestoreResult(owned)
	}()
}

// IsProOwned reports the current entitlement for UI gating.
func (p *Presenter) IsProOwned() bool {
	return p.billingService.IsProOwned()
}

// Shutdown cleans up resources.
// It's safe to call multiple times (idempotent).
func (p *Presenter) Shutdown() {
	p.shutdownOnce.Do(func() {
		// Stop the ticker first to prevent new iterations
		if p.progressTicker != nil {
			p.progressTicker.Stop()
		}

		// Close channel to signal goroutine to exit
		close(p.stopProgressChan)

		// Wait for in-flight purchase/restore actions
		p.actionWg.Wait()
	})
}
