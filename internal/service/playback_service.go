package service

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tunecast/tunecast/internal/domain"
	"github.com/tunecast/tunecast/internal/ports"
)

// PreparedFunc is invoked once an asynchronously prepared data source is
// ready for playback.
type PreparedFunc func(handle domain.TrackHandle, duration time.Duration)

// PlaybackService orchestrates audio playback operations.
// It manages the current track, volume, mute state, playback rate and
// loop mode. All operations are thread-safe via sync.RWMutex.
type PlaybackService struct {
	// Dependencies (injected)
	logger *slog.Logger
	engine ports.AudioEngine
	bus    ports.EventBus

	// State
	currentTrack   *domain.MusicTrack
	currentHandle  domain.TrackHandle
	volume         float64
	savedVolume    float64 // Volume before mute
	rate           float64
	isMuted        bool
	isLooping      bool
	updateInterval time.Duration

	// Concurrency control
	mu            sync.RWMutex
	stopUpdate    chan struct{}
	updateRunning bool
	updateWg      sync.WaitGroup // Waits for the update goroutine
	prepareWg     sync.WaitGroup // Waits for in-flight async prepares
	manualStop    bool           // True if the user explicitly stopped playback
	hasPlayed     bool           // True if the current track has been played
}

// NewPlaybackService creates a new playback service.
func NewPlaybackService(
	logger *slog.Logger,
	engine ports.AudioEngine,
	bus ports.EventBus,
) *PlaybackService {
	service := &PlaybackService{
		logger:         logger,
		engine:         engine,
		bus:            bus,
		currentHandle:  domain.InvalidTrackHandle,
		volume:         0.8, // Default 80% volume
		rate:           1.0,
		updateInterval: 333 * time.Millisecond, // 3 times per second
		stopUpdate:     make(chan struct{}),
	}

	logger.Debug("playback service initialized")

	// Start update routine
	service.startUpdateRoutine()

	return service
}

// SetDataSource prepares a track for playback asynchronously.
//
// The source branch is chosen from the track's source string: file://
// URIs are stripped to plain paths, http(s):// URLs open the streaming
// branch, anything else is treated as a filesystem path. The rate is
// applied only when the engine supports rate changes; otherwise the
// track plays at normal speed.
//
// onPrepared is invoked once the source is ready. Preparation errors are
// published as TrackErrorEvent and the callback is not invoked. A panic
// in the callback is recovered and logged, never propagated.
func (s *PlaybackService) SetDataSource(track domain.MusicTrack, rate float64, onPrepared PreparedFunc) {
	s.prepareWg.Add(1)
	go func() {
		defer s.prepareWg.Done()

		handle, duration, err := s.prepare(track, rate)
		if err != nil {
			s.logger.Warn("failed to prepare data source",
				slog.String("source", track.Source),
				slog.Any("error", err))
			s.bus.Publish(domain.NewTrackErrorEvent(track, err))
			return
		}

		if onPrepared != nil {
			s.invokePrepared(onPrepared, handle, duration)
		}
	}()
}

// invokePrepared calls the completion callback and recovers from panics.
func (s *PlaybackService) invokePrepared(fn PreparedFunc, handle domain.TrackHandle, duration time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("prepared callback panicked", slog.Any("panic", r))
		}
	}()

	fn(handle, duration)
}

// prepare loads a track and applies the requested rate.
// This stops any currently loaded track first.
func (s *PlaybackService) prepare(track domain.MusicTrack, rate float64) (domain.TrackHandle, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Debug("preparing data source", slog.String("source", track.Source))

	// Stop the current track if any
	if s.currentHandle != domain.InvalidTrackHandle {
		s.logger.Debug("stopping current track")
		if err := s.stopInternal(); err != nil {
			s.logger.Warn("failed to stop current track", slog.Any("error", err))
		}
	}

	source := track.Source
	kind := domain.KindOfSource(source)
	if kind == domain.SourceFileURI {
		// file:// URIs open through the plain path branch
		source = strings.TrimPrefix(source, "file://")
		kind = domain.SourcePath
	}

	handle, err := s.engine.Load(source, kind)
	if err != nil {
		s.logger.Debug("failed to load track", slog.Any("error", err))
		return domain.InvalidTrackHandle, 0, err
	}

	// Set volume on the new track
	if err := s.engine.SetVolume(handle, s.volume); err != nil {
		s.unloadAfterError(handle, "volume")
		return domain.InvalidTrackHandle, 0, err
	}

	duration, err := s.engine.Duration(handle)
	if err != nil {
		s.unloadAfterError(handle, "duration")
		return domain.InvalidTrackHandle, 0, err
	}

	if rate != 1.0 {
		if s.engine.SupportsRate() {
			if err := s.engine.SetRate(handle, rate); err != nil {
				s.unloadAfterError(handle, "rate")
				return domain.InvalidTrackHandle, 0, err
			}
			s.rate = rate
		} else {
			s.logger.Debug("engine does not support rate changes, using normal speed")
			s.rate = 1.0
		}
	}

	// Update state
	s.currentTrack = &track
	s.currentHandle = handle
	s.manualStop = false
	s.hasPlayed = false

	s.logger.Debug("data source prepared", slog.Int64("handle", int64(handle)))

	// Publish event
	s.bus.Publish(domain.NewTrackLoadedEvent(track, handle, duration))

	return handle, duration, nil
}

// unloadAfterError releases a half-prepared handle.
func (s *PlaybackService) unloadAfterError(handle domain.TrackHandle, stage string) {
	if err := s.engine.Unload(handle); err != nil {
		s.logger.Warn("failed to unload track after "+stage+" error", slog.Any("error", err))
	}
}

// Play starts or resumes playback of the current track.
func (s *PlaybackService) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentHandle == domain.InvalidTrackHandle {
		return domain.ErrInvalidTrackHandle
	}

	// Check the current status
	status, err := s.engine.Status(s.currentHandle)
	if err != nil {
		return err
	}

	// Already playing
	if status == domain.StatusPlaying {
		return nil
	}

	// Start/resume playback
	s.manualStop = false
	s.hasPlayed = true
	if err := s.engine.Play(s.currentHandle); err != nil {
		s.logger.Debug("play failed", slog.Any("error", err))
		return err
	}

	// Publish event
	if s.currentTrack != nil {
		s.bus.Publish(domain.NewTrackStartedEvent(*s.currentTrack))
	}

	return nil
}

// Pause pauses playback of the current track.
func (s *PlaybackService) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentHandle == domain.InvalidTrackHandle {
		return domain.ErrInvalidTrackHandle
	}

	// Get the current position before pausing
	position, err := s.engine.Position(s.currentHandle)
	if err != nil {
		position = 0 // Default to 0 if position unavailable
	}

	if err := s.engine.Pause(s.currentHandle); err != nil {
		return err
	}

	// Publish event
	if s.currentTrack != nil {
		s.bus.Publish(domain.NewTrackPausedEvent(*s.currentTrack, position))
	}

	return nil
}

// Stop stops playback and unloads the current track.
func (s *PlaybackService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stopInternal()
}

// stopInternal stops playback without locking (caller must hold lock).
func (s *PlaybackService) stopInternal() error {
	if s.currentHandle == domain.InvalidTrackHandle {
		return nil
	}

	s.manualStop = true
	s.hasPlayed = false

	// Stop the track
	if err := s.engine.Stop(s.currentHandle); err != nil {
		// Even if stop fails, clear our state
		s.currentHandle = domain.InvalidTrackHandle
		s.currentTrack = nil
		return err
	}

	// Publish event before clearing state
	if s.currentTrack != nil {
		s.bus.Publish(domain.NewTrackStoppedEvent(*s.currentTrack))
	}

	// Clear state
	s.currentHandle = domain.InvalidTrackHandle
	s.currentTrack = nil

	return nil
}

// SetVolume sets the playback volume (0.0 to 1.0).
func (s *PlaybackService) SetVolume(volume float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if volume < 0.0 || volume > 1.0 {
		return domain.ErrInvalidVolume
	}

	s.volume = volume

	// If muted, save the volume but don't apply it
	if s.isMuted {
		s.savedVolume = volume
		s.bus.Publish(domain.NewVolumeChangedEvent(volume))
		return nil
	}

	// Apply volume to the current track if any
	if s.currentHandle != domain.InvalidTrackHandle {
		if err := s.engine.SetVolume(s.currentHandle, volume); err != nil {
			return err
		}
	}

	// Publish event
	s.bus.Publish(domain.NewVolumeChangedEvent(volume))

	return nil
}

// GetVolume returns the current volume (0.0 to 1.0).
func (s *PlaybackService) GetVolume() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.volume
}

// SetRate sets the playback speed multiplier.
// When the engine cannot change speed, the requested rate is remembered
// for state reporting but playback continues at normal speed.
func (s *PlaybackService) SetRate(rate float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rate < 0.25 || rate > 4.0 {
		return domain.ErrInvalidRate
	}

	if !s.engine.SupportsRate() {
		s.logger.Debug("engine does not support rate changes")
		return nil
	}

	if s.currentHandle != domain.InvalidTrackHandle {
		if err := s.engine.SetRate(s.currentHandle, rate); err != nil {
			return err
		}
	}

	s.rate = rate
	s.bus.Publish(domain.NewRateChangedEvent(rate))

	return nil
}

// GetRate returns the current playback speed multiplier.
func (s *PlaybackService) GetRate() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.rate
}

// Mute mutes or unmutes playback.
func (s *PlaybackService) Mute(mute bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isMuted == mute {
		return nil // Already in the desired state
	}

	s.isMuted = mute

	// Apply mute/unmute to the current track
	if s.currentHandle != domain.InvalidTrackHandle {
		targetVolume := s.volume
		if mute {
			s.savedVolume = s.volume
			targetVolume = 0.0
		}

		if err := s.engine.SetVolume(s.currentHandle, targetVolume); err != nil {
			return err
		}
	}

	// Publish event
	s.bus.Publish(domain.NewMuteToggledEvent(s.isMuted))

	return nil
}

// IsMuted returns true if playback is muted.
func (s *PlaybackService) IsMuted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.isMuted
}

// SetLoop enables or disables loop mode.
// When enabled, the current track will restart when it finishes.
func (s *PlaybackService) SetLoop(loop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isLooping == loop {
		return
	}

	s.isLooping = loop

	// Publish event
	s.bus.Publish(domain.NewLoopToggledEvent(loop))
}

// IsLooping returns true if loop mode is enabled.
func (s *PlaybackService) IsLooping() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.isLooping
}

// Seek sets the playback position.
func (s *PlaybackService) Seek(position time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentHandle == domain.InvalidTrackHandle {
		return domain.ErrInvalidTrackHandle
	}

	if err := s.engine.Seek(s.currentHandle, position); err != nil {
		return err
	}

	// Publish progress event with new position
	if s.currentTrack != nil {
		duration, err := s.engine.Duration(s.currentHandle)
		if err != nil {
			duration = 0 // Default to 0 if duration unavailable
		}
		s.bus.Publish(domain.NewTrackProgressEvent(position, duration))
	}

	return nil
}

// GetState returns the current playback state.
func (s *PlaybackService) GetState() domain.PlaybackState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := domain.PlaybackState{
		Volume:    s.volume,
		Rate:      s.rate,
		IsMuted:   s.isMuted,
		IsLooping: s.isLooping,
	}

	// Get current track info
	if s.currentTrack != nil {
		state.CurrentTrack = s.currentTrack
	}

	// Get status and position if the track is loaded
	if s.currentHandle != domain.InvalidTrackHandle {
		if status, err := s.engine.Status(s.currentHandle); err == nil {
			state.Status = status
		}

		if position, err := s.engine.Position(s.currentHandle); err == nil {
			state.Position = position
		}

		if duration, err := s.engine.Duration(s.currentHandle); err == nil {
			state.Duration = duration
		}
	} else {
		state.Status = domain.StatusStopped
	}

	return state
}

// Shutdown stops playback and cleans up resources.
func (s *PlaybackService) Shutdown() error {
	s.mu.Lock()

	// Stop update routine
	if s.updateRunning {
		close(s.stopUpdate)
		s.updateRunning = false
	}

	// Release lock before waiting for goroutines to exit (to avoid deadlock)
	s.mu.Unlock()

	// Wait for the update goroutine and any in-flight prepares
	s.updateWg.Wait()
	s.prepareWg.Wait()

	// Acquire lock again to stop the current track
	s.mu.Lock()
	defer s.mu.Unlock()

	// Stop the current track
	return s.stopInternal()
}

// startUpdateRoutine starts a goroutine that periodically publishes progress events.
func (s *PlaybackService) startUpdateRoutine() {
	s.mu.Lock()
	if s.updateRunning {
		s.mu.Unlock()
		return
	}
	s.updateRunning = true
	s.updateWg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.updateWg.Done()
		ticker := time.NewTicker(s.updateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopUpdate:
				return

			case <-ticker.C:
				s.publishProgressUpdate()
			}
		}
	}()
}

// publishProgressUpdate publishes a progress event if a track is playing.
func (s *PlaybackService) publishProgressUpdate() {
	s.mu.RLock()

	// Nothing to update if no track loaded
	if s.currentHandle == domain.InvalidTrackHandle || s.currentTrack == nil {
		s.mu.RUnlock()
		return
	}

	// Get current status
	status, err := s.engine.Status(s.currentHandle)
	if err != nil {
		s.mu.RUnlock()
		return
	}

	// Get position and duration
	position, err := s.engine.Position(s.currentHandle)
	if err != nil {
		s.mu.RUnlock()
		return
	}

	duration, err := s.engine.Duration(s.currentHandle)
	if err != nil {
		s.mu.RUnlock()
		return
	}

	// Determine if track finished while holding read lock
	shouldFinish := status == domain.StatusStopped && !s.manualStop && s.hasPlayed
	track := s.currentTrack // Copy pointer for later use

	// Release read lock BEFORE any further processing
	s.mu.RUnlock()

	// Publish progress event (no lock needed - event bus is thread-safe)
	s.bus.Publish(domain.NewTrackProgressEvent(position, duration))

	// Handle track finished with NO lock held
	if shouldFinish && track != nil {
		s.handleTrackFinished()
	}
}

// handleTrackFinished is called when a track finishes playing naturally.
func (s *PlaybackService) handleTrackFinished() {
	s.mu.Lock()

	if s.currentTrack == nil {
		s.mu.Unlock()
		return
	}

	track := *s.currentTrack
	shouldLoop := s.isLooping
	rate := s.rate

	// Reset state
	s.hasPlayed = false

	// Publish completed event
	s.bus.Publish(domain.NewTrackCompletedEvent(track))

	if !shouldLoop {
		if err := s.stopInternal(); err != nil {
			s.logger.Warn("failed to stop finished track", slog.Any("error", err))
		}
		s.mu.Unlock()
		return
	}

	// Restart the track for loop mode
	if err := s.stopInternal(); err != nil {
		s.logger.Warn("failed to stop track in loop", slog.Any("error", err))
	}
	s.mu.Unlock()

	// Reload and play (prepare and Play acquire their own locks)
	if _, _, err := s.prepare(track, rate); err != nil {
		s.logger.Warn("failed to reload track in loop", slog.Any("error", err))
		return
	}
	if err := s.Play(); err != nil {
		s.logger.Warn("failed to play track in loop", slog.Any("error", err))
	}
}

// Verify that PlaybackService implements the expected interface patterns
var _ interface {
	SetDataSource(domain.MusicTrack, float64, PreparedFunc)
	Play() error
	Pause() error
	Stop() error
	SetVolume(float64) error
	GetVolume() float64
	SetRate(float64) error
	GetRate() float64
	Mute(bool) error
	IsMuted() bool
	SetLoop(bool)
	IsLooping() bool
	Seek(time.Duration) error
	GetState() domain.PlaybackState
	Shutdown() error
} = (*PlaybackService)(nil)
